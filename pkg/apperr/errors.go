// Package apperr defines the error taxonomy shared by the workflow services
// and its mapping onto HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Type categorizes an application error.
type Type string

const (
	TypePermissionDenied  Type = "permission_denied"
	TypeInvalidTransition Type = "invalid_transition"
	TypeNotFound          Type = "not_found"
	TypeValidation        Type = "validation"
	TypeSessionExpired    Type = "session_expired"
)

// Sentinel values for errors.Is checks. Every *Error of a given Type matches
// the sentinel of the same Type.
var (
	ErrPermissionDenied  = &Error{Type: TypePermissionDenied, Message: "permission denied"}
	ErrInvalidTransition = &Error{Type: TypeInvalidTransition, Message: "invalid state transition"}
	ErrNotFound          = &Error{Type: TypeNotFound, Message: "not found"}
	ErrValidation        = &Error{Type: TypeValidation, Message: "validation failed"}
	ErrSessionExpired    = &Error{Type: TypeSessionExpired, Message: "session expired"}
)

// Error is a categorized error carrying a user-visible message.
type Error struct {
	Type    Type   `json:"type"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same Type.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

func PermissionDenied(format string, args ...any) *Error {
	return &Error{Type: TypePermissionDenied, Message: fmt.Sprintf(format, args...)}
}

func InvalidTransition(format string, args ...any) *Error {
	return &Error{Type: TypeInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

func NotFound(resource, id string) *Error {
	return &Error{Type: TypeNotFound, Message: fmt.Sprintf("%s %s not found", resource, id)}
}

// Validation reports a violated field constraint.
func Validation(field, format string, args ...any) *Error {
	return &Error{Type: TypeValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

func SessionExpired(message string) *Error {
	return &Error{Type: TypeSessionExpired, Message: message}
}

// TypeOf returns the Type of the first *Error in err's chain, or "" if none.
func TypeOf(err error) Type {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ""
}

// StatusCode maps an error to its HTTP status.
func StatusCode(err error) int {
	switch TypeOf(err) {
	case TypePermissionDenied:
		return http.StatusForbidden
	case TypeInvalidTransition:
		return http.StatusConflict
	case TypeNotFound:
		return http.StatusNotFound
	case TypeValidation:
		return http.StatusUnprocessableEntity
	case TypeSessionExpired:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// HTTP converts err into an *echo.HTTPError. Uncategorized errors become a
// generic 500 with the cause kept as Internal for the error handler to log.
func HTTP(err error) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	var e *Error
	if !errors.As(err, &e) {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
	body := map[string]string{"error": string(e.Type), "message": e.Message}
	if e.Field != "" {
		body["field"] = e.Field
	}
	return echo.NewHTTPError(StatusCode(err), body)
}
