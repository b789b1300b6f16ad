// Package access models ownership lookups as values. A lookup yields the
// resource, or says why the caller cannot have it, and chains of lookups
// (image → transaction → user) compose without nested error branches.
package access

import (
	"github.com/spendlog/service/internal/apperr"
)

// Outcome classifies a lookup.
type Outcome int

const (
	// Granted means the resource exists and belongs to the caller.
	Granted Outcome = iota
	// Missing means the resource does not exist.
	Missing
	// Denied means the resource exists but belongs to someone else.
	Denied
	// Failed means the lookup itself errored.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Granted:
		return "granted"
	case Missing:
		return "missing"
	case Denied:
		return "denied"
	}
	return "failed"
}

// Result is the typed outcome of an ownership lookup.
type Result[T any] struct {
	Value    T
	Outcome  Outcome
	resource string
	err      error
}

// Grant wraps a resource the caller owns.
func Grant[T any](v T) Result[T] {
	return Result[T]{Value: v, Outcome: Granted}
}

// NotFound reports a missing resource.
func NotFound[T any](resource string) Result[T] {
	return Result[T]{Outcome: Missing, resource: resource}
}

// Deny reports a resource owned by another user.
func Deny[T any](resource string) Result[T] {
	return Result[T]{Outcome: Denied, resource: resource}
}

// Fail reports a lookup error.
func Fail[T any](err error) Result[T] {
	return Result[T]{Outcome: Failed, err: err}
}

// Check builds a Result from a fetched resource and its owner.
func Check[T any](v T, ownerID, callerID, resource string) Result[T] {
	if ownerID != callerID {
		return Deny[T](resource)
	}
	return Grant(v)
}

// Err returns nil when granted, otherwise the matching apperr kind.
func (r Result[T]) Err() error {
	switch r.Outcome {
	case Granted:
		return nil
	case Missing:
		return apperr.NotFound(r.resource)
	case Denied:
		return apperr.ErrUnauthorized
	}
	return r.err
}

// Get returns the value and Err.
func (r Result[T]) Get() (T, error) {
	return r.Value, r.Err()
}

// Then continues a chain with next when r is granted; otherwise the failure
// carries over to the new result type.
func Then[T, U any](r Result[T], next func(T) Result[U]) Result[U] {
	if r.Outcome == Granted {
		return next(r.Value)
	}
	return Result[U]{Outcome: r.Outcome, resource: r.resource, err: r.err}
}
