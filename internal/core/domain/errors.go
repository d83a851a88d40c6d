package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can tell client mistakes from
// dependency outages without inspecting messages.
type Kind string

const (
	KindUnauthenticated   Kind = "unauthenticated"
	KindForbidden         Kind = "forbidden"
	KindNotFound          Kind = "not_found"
	KindInvalidArgument   Kind = "invalid_argument"
	KindInvalidOperation  Kind = "invalid_operation"
	KindConflict          Kind = "conflict"
	KindDependencyFailure Kind = "dependency_failure"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrUnauthenticated   = &Error{Kind: KindUnauthenticated}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidArgument   = &Error{Kind: KindInvalidArgument}
	ErrInvalidOperation  = &Error{Kind: KindInvalidOperation}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrDependencyFailure = &Error{Kind: KindDependencyFailure}
)

// Error is the typed failure returned by every core operation.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match when target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Unauthenticated(op, format string, args ...interface{}) *Error {
	return newError(KindUnauthenticated, op, format, args...)
}

func Forbidden(op, format string, args ...interface{}) *Error {
	return newError(KindForbidden, op, format, args...)
}

func NotFound(op, format string, args ...interface{}) *Error {
	return newError(KindNotFound, op, format, args...)
}

func InvalidArgument(op, format string, args ...interface{}) *Error {
	return newError(KindInvalidArgument, op, format, args...)
}

func InvalidOperation(op, format string, args ...interface{}) *Error {
	return newError(KindInvalidOperation, op, format, args...)
}

func Conflict(op, format string, args ...interface{}) *Error {
	return newError(KindConflict, op, format, args...)
}

// DependencyFailure wraps a store or asset-store error. Errors that already
// carry a kind pass through unchanged.
func DependencyFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Kind: KindDependencyFailure, Op: op, Message: "dependency call failed", Err: err}
}

// KindOf returns the kind carried by err, or "" for untyped errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
