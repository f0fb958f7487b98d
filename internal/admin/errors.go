package admin

import "fmt"

// Error codes
const (
	CodeUnknownAction  = "UNKNOWN_ACTION"
	CodeUnknownField   = "UNKNOWN_FIELD"
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeNotFound       = "NOT_FOUND"
)

// Error is a typed admin API failure. The HTTP layer maps every code
// except store errors to a 4xx response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrUnknownAction   = &Error{Code: CodeUnknownAction, Message: "unknown action"}
	ErrLicenseNotFound = &Error{Code: CodeNotFound, Message: "license not found"}
	ErrMissingID       = &Error{Code: CodeInvalidRequest, Message: "id is required"}
)

func errUnknownField(field string) *Error {
	return &Error{Code: CodeUnknownField, Message: fmt.Sprintf("unknown update field: %s", field)}
}

func errInvalid(msg string) *Error {
	return &Error{Code: CodeInvalidRequest, Message: msg}
}

// IsClientError reports whether err is a typed admin failure the HTTP
// layer should answer with 400 rather than 500.
func IsClientError(err error) bool {
	_, ok := err.(*Error)
	return ok
}
