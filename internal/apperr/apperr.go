// Package apperr defines the error kinds surfaced to API callers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when the caller does not own the referenced resource.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation is returned when input does not satisfy the request schema.
	ErrValidation = errors.New("validation failed")
	// ErrUpstream is returned when the database or object store call failed.
	ErrUpstream = errors.New("upstream failure")
)

// Validation returns an ErrValidation carrying a user-facing message.
func Validation(format string, args ...any) error {
	return &kindError{kind: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

// NotFound returns an ErrNotFound naming the missing resource.
func NotFound(resource string) error {
	return &kindError{kind: ErrNotFound, msg: resource + " not found"}
}

// Upstream wraps err as an ErrUpstream for the named operation.
func Upstream(op string, err error) error {
	return &kindError{kind: ErrUpstream, msg: op, cause: err}
}

type kindError struct {
	kind  error
	msg   string
	cause error
}

func (e *kindError) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

// Is matches the error kind so errors.Is(err, ErrValidation) works.
func (e *kindError) Is(target error) bool { return target == e.kind }

func (e *kindError) Unwrap() error { return e.cause }

// Message returns the user-facing message for err. For a wrapped kind error it
// is the message it was built with; otherwise a generic text for the kind.
func Message(err error) string {
	var ke *kindError
	if errors.As(err, &ke) && ke.kind != ErrUpstream {
		return ke.msg
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "not found"
	case errors.Is(err, ErrUnauthorized):
		return "you do not have access to this resource"
	case errors.Is(err, ErrValidation):
		return "invalid request"
	case errors.Is(err, ErrUpstream):
		return "upstream service failed"
	}
	return "internal server error"
}
