// Package apperr carries the error taxonomy shared by every port.
// Handlers map errors to HTTP exactly once, at the boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindUnauthorized
	KindConflict
	KindRateLimited
)

// Error is the only error type crossing port boundaries. Storage and media
// implementations wrap driver errors into it; the pipeline never inspects
// SQL error codes.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(entity, key string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s not found: %s", entity, key)}
}

func Validation(reason string) *Error {
	return &Error{Kind: KindValidation, Message: reason}
}

func Unauthorized(reason string) *Error {
	return &Error{Kind: KindUnauthorized, Message: reason}
}

func Conflict(reason string) *Error {
	return &Error{Kind: KindConflict, Message: reason}
}

func RateLimited(reason string) *Error {
	return &Error{Kind: KindRateLimited, Message: reason}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Status maps an error to its HTTP status code. Unknown errors are 500.
func Status(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns the short fixed-vocabulary body for an error response.
// Internal causes are never echoed to the client.
func UserMessage(err error) string {
	switch Status(err) {
	case http.StatusNotFound:
		return "Not found"
	case http.StatusBadRequest:
		return "Invalid request"
	case http.StatusForbidden:
		return "Forbidden"
	case http.StatusConflict:
		return "Conflict"
	case http.StatusTooManyRequests:
		return "Too many requests"
	default:
		return "Internal server error"
	}
}
