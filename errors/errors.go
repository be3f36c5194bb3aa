package errors

import (
	stderrors "errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// New creates a new error with file and line number information.
func New(format string, a ...interface{}) error {
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file = "???"
		line = 0
	} else {
		file = filepath.Base(file)
	}
	return fmt.Errorf("[%s:%d] %s", file, line, fmt.Sprintf(format, a...))
}

// Wrapf adds context (including file and line number) to an existing error.
// If the provided error is nil, Wrapf returns nil.
func Wrapf(err error, format string, a ...interface{}) error {
	if err == nil {
		return nil
	}
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file = "???"
		line = 0
	} else {
		file = filepath.Base(file)
	}
	return fmt.Errorf("[%s:%d] %s: %w", file, line, fmt.Sprintf(format, a...), err)
}

// Kind classifies an error for the tool surface and the session manager.
type Kind string

const (
	// KindValidation is returned when a tool argument is malformed or missing.
	KindValidation Kind = "validation"

	// KindUnauthorized is returned when a session cannot authenticate or a
	// required bearer credential is absent.
	KindUnauthorized Kind = "unauthorized"

	// KindNotFound is returned when a chat, message or contact cannot be resolved.
	KindNotFound Kind = "not_found"

	// KindUnavailable is returned when the platform refuses a connection or
	// drops it after retries.
	KindUnavailable Kind = "unavailable"

	// KindInternal is returned for any uncaught failure in a tool body.
	KindInternal Kind = "internal"
)

// Error is a classified error. It wraps an optional cause and works with
// the standard errors.Is/As machinery.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewKind creates a classified error without a cause.
func NewKind(kind Kind, format string, a ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, a...)}
}

// WrapKind classifies an existing error. A nil cause yields nil.
func WrapKind(kind Kind, err error, format string, a ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, a...), Cause: err}
}

// KindOf returns the kind of err, or KindInternal if err carries no
// classification anywhere in its chain.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether any error in the chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
