package identity

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUserNotFound       = errors.New("identity: no such user")
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	ErrEmailExists        = errors.New("identity: email already registered")
	ErrUserDisabled       = errors.New("identity: user disabled")
	ErrSessionInvalid     = errors.New("identity: session no longer valid")
)

// APIError is an error reported by the identity backend. Kind is one of the
// sentinel errors above, or nil for the generic class.
type APIError struct {
	Status  int
	Code    string
	Message string
	Kind    error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("identity error %d: %s (%s)", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("identity error %d: %s", e.Status, e.Code)
}

func (e *APIError) Unwrap() error { return e.Kind }

// newAPIError splits backend messages of the form "CODE : detail".
func newAPIError(status int, raw string) *APIError {
	code, detail, _ := strings.Cut(raw, ":")
	code = strings.TrimSpace(code)
	e := &APIError{Status: status, Code: code, Message: strings.TrimSpace(detail)}
	switch code {
	case "EMAIL_NOT_FOUND", "USER_NOT_FOUND":
		e.Kind = ErrUserNotFound
	case "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "INVALID_EMAIL":
		e.Kind = ErrInvalidCredentials
	case "EMAIL_EXISTS":
		e.Kind = ErrEmailExists
	case "USER_DISABLED":
		e.Kind = ErrUserDisabled
	case "INVALID_ID_TOKEN", "TOKEN_EXPIRED", "CREDENTIAL_TOO_OLD_LOGIN_AGAIN", "INVALID_REFRESH_TOKEN":
		e.Kind = ErrSessionInvalid
	}
	return e
}
