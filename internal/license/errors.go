package license

// Error codes grouped by how the HTTP layer reports them: invalid
// requests map to 400, business-rule failures ride a 200 response with
// success=false so extension clients never have to special-case
// transport errors.
const (
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeNotFound            = "NOT_FOUND"
	CodeStatusBlocked       = "STATUS_BLOCKED"
	CodeQuotaExceeded       = "QUOTA_EXCEEDED"
	CodeEmailMismatch       = "EMAIL_MISMATCH"
	CodeGenerationExhausted = "GENERATION_EXHAUSTED"
)

// Error is a typed business-rule failure
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrMissingKey          = &Error{Code: CodeInvalidRequest, Message: "license_key is required"}
	ErrMissingFields       = &Error{Code: CodeInvalidRequest, Message: "license_key and email are required"}
	ErrNotFound            = &Error{Code: CodeNotFound, Message: "license not found"}
	ErrSuspended           = &Error{Code: CodeStatusBlocked, Message: "license suspended"}
	ErrExpired             = &Error{Code: CodeStatusBlocked, Message: "license expired"}
	ErrAlreadyActivated    = &Error{Code: CodeQuotaExceeded, Message: "license already activated on another device"}
	ErrQuotaExceeded       = &Error{Code: CodeQuotaExceeded, Message: "activation limit reached"}
	ErrEmailMismatch       = &Error{Code: CodeEmailMismatch, Message: "email does not match this license"}
	ErrGenerationExhausted = &Error{Code: CodeGenerationExhausted, Message: "could not generate a unique license key"}
)

// statusError reports a non-active lifecycle state on validation,
// e.g. "license suspended".
func statusError(status string) *Error {
	return &Error{Code: CodeStatusBlocked, Message: "license " + status}
}

// IsInvalidRequest reports whether err is a missing-field failure that
// should surface as HTTP 400.
func IsInvalidRequest(err error) bool {
	licErr, ok := err.(*Error)
	return ok && licErr.Code == CodeInvalidRequest
}

// IsBusinessError reports whether err is a typed license failure (as
// opposed to a store or transport error).
func IsBusinessError(err error) bool {
	_, ok := err.(*Error)
	return ok
}
