// Package apperr defines the typed failures surfaced by the core
// services. Each failure belongs to exactly one kind; callers test the
// kind with errors.Is against the Err* sentinels.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the kind of failures for missing entities.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is the kind of failures for insufficient permissions.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState is the kind of failures for illegal state transitions.
	ErrInvalidState = errors.New("invalid state")

	// ErrValidation is the kind of failures for malformed input.
	ErrValidation = errors.New("validation error")

	// ErrConflict is the kind of failures for uniqueness or ownership conflicts.
	ErrConflict = errors.New("conflict")

	// ErrUnauthorized is the kind of failures for bad credentials.
	ErrUnauthorized = errors.New("unauthorized")
)

// ErrOutOfStock is returned when a product with limited stock has no
// units left. It is an invalid-state failure.
var ErrOutOfStock = &Error{Kind: ErrInvalidState, Reason: "product out of stock"}

// Error is a typed failure carrying a user-visible reason.
type Error struct {
	Kind   error
	Entity string
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Entity != "":
		return e.Reason
	case e.Field != "":
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	default:
		return e.Reason
	}
}

// Unwrap returns the kind sentinel so errors.Is(err, ErrNotFound) works.
func (e *Error) Unwrap() error {
	return e.Kind
}

func NotFound(entity string) *Error {
	return &Error{Kind: ErrNotFound, Entity: entity, Reason: entity + " not found"}
}

func Forbidden(reason string) *Error {
	return &Error{Kind: ErrForbidden, Reason: reason}
}

func InvalidState(reason string) *Error {
	return &Error{Kind: ErrInvalidState, Reason: reason}
}

func Validation(field, reason string) *Error {
	return &Error{Kind: ErrValidation, Field: field, Reason: reason}
}

func Conflict(reason string) *Error {
	return &Error{Kind: ErrConflict, Reason: reason}
}

func Unauthorized(reason string) *Error {
	return &Error{Kind: ErrUnauthorized, Reason: reason}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Message returns the user-visible reason of err, or a generic message
// when err is not an *Error.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return "internal error"
}
