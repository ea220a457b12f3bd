package apperror

import (
	"errors"
	"fmt"
)

// Sentinel categories. Services wrap these into *Error values; the
// transport layer maps them to HTTP status codes with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrAuth       = errors.New("authentication failed")
	ErrState      = errors.New("step out of order")
	ErrNotFound   = errors.New("not found")
	ErrStorage    = errors.New("storage unavailable")
)

// Error is a categorized application error with a user-facing message.
// Message never contains internal details; wrapped causes stay in Err.
type Error struct {
	Err     error
	Message string
	Field   string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports missing or invalid user input on a specific field.
func Validation(field, message string) *Error {
	return &Error{Err: ErrValidation, Message: message, Field: field}
}

// Conflict reports a duplicate-resource condition, such as an email that
// is already registered.
func Conflict(message string) *Error {
	return &Error{Err: ErrConflict, Message: message}
}

// Auth reports failed authentication. The message is deliberately generic
// so callers cannot distinguish unknown emails from wrong passwords.
func Auth() *Error {
	return &Error{Err: ErrAuth, Message: "invalid email or password"}
}

// State reports a protocol step submitted out of order, such as an artisan
// step-2 form with no pending registration in the session.
func State(message string) *Error {
	return &Error{Err: ErrState, Message: message}
}

// NotFound reports a missing resource.
func NotFound(resource string) *Error {
	return &Error{Err: ErrNotFound, Message: fmt.Sprintf("%s not found", resource)}
}

// Storage reports an external storage dependency failure.
func Storage(cause error) *Error {
	return &Error{
		Err:     fmt.Errorf("%w: %w", ErrStorage, cause),
		Message: "storage temporarily unavailable",
	}
}
