// Package apperr defines the error taxonomy shared by the services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindConflict           Kind = "conflict"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindInvalidState       Kind = "invalid_state"
	KindInvariantViolation Kind = "invariant_violation"
	KindUnauthenticated    Kind = "unauthenticated"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInvalidState       = &Error{Kind: KindInvalidState}
	ErrInvariantViolation = &Error{Kind: KindInvariantViolation}
	ErrUnauthenticated    = &Error{Kind: KindUnauthenticated}
)

// Error is a classified error with a caller-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrConflict) works
// regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error { return newf(KindValidation, format, args...) }
func Conflict(format string, args ...any) *Error   { return newf(KindConflict, format, args...) }
func Forbidden(format string, args ...any) *Error  { return newf(KindForbidden, format, args...) }
func NotFound(format string, args ...any) *Error   { return newf(KindNotFound, format, args...) }
func InvalidState(format string, args ...any) *Error {
	return newf(KindInvalidState, format, args...)
}
func InvariantViolation(format string, args ...any) *Error {
	return newf(KindInvariantViolation, format, args...)
}
func Unauthenticated(format string, args ...any) *Error {
	return newf(KindUnauthenticated, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MessageOf returns the caller-safe message of the first *Error in err's chain.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		return string(e.Kind)
	}
	return ""
}
