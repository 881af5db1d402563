// Package apperror defines the error kinds the service layer reports and
// the HTTP layer translates into status codes.
//
// Each kind is a sentinel. An *AppError wraps one sentinel together with a
// message that is safe to show to clients, so callers branch with
// errors.Is(err, apperror.ErrNotFound) and render err.Error() as-is.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrTooManyRequests = errors.New("too many requests")
)

type AppError struct {
	Err     error  // one of the sentinels above
	Message string // client-facing text
	Field   string // request field at fault, validation errors only
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newError(kind error, message string) *AppError {
	return &AppError{Err: kind, Message: message}
}

func NotFound(resource, id string) *AppError {
	return newError(ErrNotFound, fmt.Sprintf("%s not found with id %s", resource, id))
}

func ValidationFailed(field, message string) *AppError {
	e := newError(ErrValidation, message)
	e.Field = field
	return e
}

// Conflict reports a uniqueness violation. The message names the resource
// only; callers must not learn which unique column collided.
func Conflict(resource string) *AppError {
	return newError(ErrConflict, resource+" already exists")
}

// Forbidden: authenticated, but the role does not allow it (403).
func Forbidden(message string) *AppError {
	return newError(ErrForbidden, message)
}

// Unauthorized covers bad credentials and every kind of invalid session
// token (401).
func Unauthorized(message string) *AppError {
	return newError(ErrUnauthorized, message)
}

func TooManyRequests(message string) *AppError {
	return newError(ErrTooManyRequests, message)
}
