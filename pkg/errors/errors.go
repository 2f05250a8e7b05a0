package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Every error returned by the services wraps exactly one of them.
var (
	ErrValidation      = errors.New("validation error")
	ErrUnauthenticated = errors.New("authentication required")
	ErrAuthorization   = errors.New("not authorized")
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state")
	ErrStorage         = errors.New("storage error")
	ErrRateLimited     = errors.New("rate limit exceeded")
)

const genericMessage = "service temporarily unavailable, please try again"

type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Validation(format string, args ...any) error {
	return New(ErrValidation, fmt.Sprintf(format, args...))
}

func Authorization(message string) error {
	return New(ErrAuthorization, message)
}

func NotFound(what string) error {
	return New(ErrNotFound, what+" not found")
}

func InvalidState(format string, args ...any) error {
	return New(ErrInvalidState, fmt.Sprintf(format, args...))
}

// Storage wraps a persistence failure. The cause stays available to errors.Is/As
// but is never shown to callers (see PublicMessage).
func Storage(op string, err error) error {
	return &Error{Kind: ErrStorage, Message: op, Err: err}
}

func Unauthenticated() error {
	return New(ErrUnauthenticated, "authentication required")
}

// IsRetryable reports whether a caller may retry the operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorage)
}

// APIError is the JSON body returned by the HTTP layer.
type APIError struct {
	Message string `json:"error"`
	Code    int    `json:"code"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(message string, code int) *APIError {
	return &APIError{
		Message: message,
		Code:    code,
	}
}

func HTTPStatusFromError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrStorage):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text safe to show to an end user.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) || errors.Is(err, ErrStorage) {
		return genericMessage
	}
	return e.Message
}

// ToAPIError converts any error into the response body and status code.
func ToAPIError(err error) *APIError {
	return NewAPIError(PublicMessage(err), HTTPStatusFromError(err))
}
