// Package errors provides the single domain error used across polyglot.
//
// Every failure that crosses a component boundary (model loading, inference,
// localization, batch processing, persistence) is wrapped exactly once in an
// *Error that records the operation and the file:line of the wrap site.
// Wrapping an error that is already an *Error returns it unchanged, so the
// original context survives as the error travels up the call stack.
package errors

import (
	stderrors "errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// Sentinel causes that callers may test for with errors.Is.
var (
	// ErrNotLoaded is returned when the model handle is requested before it was loaded.
	ErrNotLoaded = stderrors.New("model not loaded")
	// ErrColumnNotFound is returned when a batch table lacks the requested text column.
	ErrColumnNotFound = stderrors.New("column not found")
	// ErrJobNotFound is returned when a batch job id is unknown.
	ErrJobNotFound = stderrors.New("job not found")
	// ErrJobNotReady is returned when the result of an unfinished job is requested.
	ErrJobNotReady = stderrors.New("job not finished")
)

// Error wraps a cause with the operation that failed and where it was wrapped.
type Error struct {
	// Op names the failing operation (e.g. "translate", "model.load").
	Op string
	// Location is the file:line of the wrap site.
	Location string
	// Err is the original cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Location, e.Err)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap returns err wrapped in an *Error for op. A nil err yields nil, and an
// err that already carries an *Error is returned as is.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var domainErr *Error
	if stderrors.As(err, &domainErr) {
		return err
	}
	return &Error{Op: op, Location: caller(2), Err: err}
}

// Wrapf is Wrap with a formatted cause.
func Wrapf(op, format string, args ...any) error {
	return &Error{Op: op, Location: caller(2), Err: fmt.Errorf(format, args...)}
}

// Is reports whether err matches target. It mirrors the standard library so
// callers importing this package under its own name still have it at hand.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As mirrors the standard library errors.As.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}
