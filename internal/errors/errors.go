// Package errors provides the error construction helpers used throughout
// raft. It is a thin wrapper over github.com/pkg/errors so that internal
// failures carry a stack trace back to the point they were first observed.
package errors

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// New creates an error with the given message and a captured stack trace.
func New(message string) error {
	return pkgerrors.New(message)
}

// Errorf creates a formatted error with a captured stack trace.
func Errorf(format string, args ...interface{}) error {
	return pkgerrors.New(fmt.Sprintf(format, args...))
}

// WrapError annotates err with a message (optionally formatted with args)
// and a stack trace. Returns nil if err is nil.
func WrapError(err error, message string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}
	return pkgerrors.Wrap(err, message)
}

// Cause returns the underlying cause of err, unwrapping any layers
// added by WrapError.
func Cause(err error) error {
	return pkgerrors.Cause(err)
}
