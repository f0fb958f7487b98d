package auth

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthError is a typed authentication failure
type AuthError struct {
	Code    string
	Message string
}

func (e AuthError) Error() string {
	return e.Message
}

var (
	ErrBadPassword  = AuthError{Code: "BAD_PASSWORD", Message: "incorrect password"}
	ErrInvalidToken = AuthError{Code: "INVALID_TOKEN", Message: "invalid or expired token"}
)

// Admin gates the privileged API behind a single shared secret. Login
// issues an HS256 JWT; admin calls accept either a valid JWT or, when
// no bcrypt hash is configured, the raw secret itself (the legacy
// dashboard behavior). Tokens are signed with signingKey, which
// defaults to the secret so existing single-secret setups keep
// working, and must be set explicitly when only the hash is given.
type Admin struct {
	secret        []byte
	hash          []byte // bcrypt hash of the secret, optional
	signingKey    []byte
	tokenDuration time.Duration
}

type adminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// NewAdmin creates the admin authenticator. Either the plaintext
// secret or its bcrypt hash must be set; signingKey falls back to the
// secret, so it is only mandatory in hash-only deployments.
func NewAdmin(secret, hash, signingKey string, tokenDuration time.Duration) (*Admin, error) {
	if secret == "" && hash == "" {
		return nil, fmt.Errorf("admin secret or secret hash must be set")
	}
	if signingKey == "" {
		signingKey = secret
	}
	if signingKey == "" {
		return nil, fmt.Errorf("admin signing key must be set when only the secret hash is configured")
	}
	if tokenDuration <= 0 {
		tokenDuration = 12 * time.Hour
	}
	return &Admin{
		secret:        []byte(secret),
		hash:          []byte(hash),
		signingKey:    []byte(signingKey),
		tokenDuration: tokenDuration,
	}, nil
}

// Login verifies the operator password and returns a session token
func (a *Admin) Login(password string) (string, error) {
	if !a.checkPassword(password) {
		return "", ErrBadPassword
	}
	return a.issueToken()
}

// CheckToken reports whether a caller-supplied admin token is valid
func (a *Admin) CheckToken(token string) bool {
	if token == "" {
		return false
	}

	// Raw shared secret, accepted only when no hash is configured
	if len(a.hash) == 0 && len(a.secret) > 0 &&
		subtle.ConstantTimeCompare([]byte(token), a.secret) == 1 {
		return true
	}

	return a.validateJWT(token) == nil
}

func (a *Admin) checkPassword(password string) bool {
	if len(a.hash) > 0 {
		return bcrypt.CompareHashAndPassword(a.hash, []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(password), a.secret) == 1
}

func (a *Admin) issueToken() (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, adminClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenDuration)),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "license-server",
		},
	})

	signed, err := token.SignedString(a.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign admin token: %w", err)
	}
	return signed, nil
}

func (a *Admin) validateJWT(tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &adminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.signingKey, nil
	})
	if err != nil {
		return ErrInvalidToken
	}

	claims, ok := token.Claims.(*adminClaims)
	if !ok || !token.Valid || claims.Role != "admin" {
		return ErrInvalidToken
	}
	return nil
}

// HashSecret produces a bcrypt hash suitable for ADMIN_SECRET_HASH
func HashSecret(secret string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
