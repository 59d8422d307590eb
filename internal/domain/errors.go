package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the usecases unwraps to one of them.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrInternal     = errors.New("internal error")
)

// Error carries a kind together with the offending field.
type Error struct {
	Kind  error
	Field string
	Msg   string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.Kind }

// NotFound reports a missing entity.
func NotFound(entity string, key any) error {
	return &Error{Kind: ErrNotFound, Field: entity, Msg: fmt.Sprintf("%v not found", key)}
}

// Invalid reports a malformed or missing field.
func Invalid(field, msg string) error {
	return &Error{Kind: ErrInvalidInput, Field: field, Msg: msg}
}

// Conflict reports a write that collides with existing state.
func Conflict(field, msg string) error {
	return &Error{Kind: ErrConflict, Field: field, Msg: msg}
}

// Internal wraps an unexpected collaborator failure.
func Internal(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrInternal, err))
}

// FieldOf returns the field attached to err, if any.
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}
