// Package errors wraps github.com/go-errors/errors so that every error created
// inside the module carries the stack of its origin.
package errors

import (
	stderrors "errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// New returns an error with the given message and a captured stack.
func New(msg string) error {
	return goerrors.Wrap(stderrors.New(msg), 1)
}

// Errorf formats according to a format specifier. %w verbs are honoured, so
// the result unwraps to its cause.
func Errorf(format string, args ...interface{}) error {
	return goerrors.Wrap(fmt.Errorf(format, args...), 1)
}

// Wrap annotates err with msg. It returns nil when err is nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(fmt.Errorf("%s: %w", msg, err), 1)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's tree that matches target.
func As(err error, target interface{}) bool { return stderrors.As(err, target) }

// Join returns an error that wraps the given errors.
func Join(errs ...error) error { return stderrors.Join(errs...) }

// Stack returns the formatted stack of err, or an empty string when err was
// not created by this package.
func Stack(err error) string {
	var e *goerrors.Error
	if stderrors.As(err, &e) {
		return string(e.Stack())
	}
	return ""
}

// Recover converts a panic into an error and hands it to onPanic. It must be
// deferred directly:
//
//	defer errors.Recover(log.FatalAndExit)
func Recover(onPanic func(cause error)) {
	if r := recover(); r != nil {
		onPanic(goerrors.Wrap(r, 2))
	}
}
