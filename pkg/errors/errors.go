package errors

import (
	stderrors "errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// New returns an error with the supplied message and the caller's stack.
func New(msg string) error {
	return pkgerrors.New(msg)
}

// NewWithReport is New and reports the error to every registered Reporter.
func NewWithReport(msg string) error {
	err := pkgerrors.New(msg)
	report(err)
	return err
}

// Errorf formats according to a format specifier and records the stack.
func Errorf(format string, args ...interface{}) error {
	return pkgerrors.Errorf(format, args...)
}

// ErrorfAndReport is Errorf and reports the error.
func ErrorfAndReport(format string, args ...interface{}) error {
	err := pkgerrors.Errorf(format, args...)
	report(err)
	return err
}

// Wrap annotates err with msg and a stack. A nil err yields nil.
func Wrap(err error, msg string) error {
	return pkgerrors.Wrap(err, msg)
}

// Wrapf annotates err with a formatted message and a stack. A nil err yields nil.
func Wrapf(err error, format string, args ...interface{}) error {
	return pkgerrors.Wrapf(err, format, args...)
}

// WrapAndReport is Wrap and reports the wrapped error.
func WrapAndReport(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrapped := pkgerrors.Wrap(err, msg)
	report(wrapped)
	return wrapped
}

// WrapfAndReport is Wrapf and reports the wrapped error.
func WrapfAndReport(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	wrapped := pkgerrors.Wrap(err, fmt.Sprintf(format, args...))
	report(wrapped)
	return wrapped
}

// WithStack records the stack at the point it was called. A nil err yields nil.
func WithStack(err error) error {
	return pkgerrors.WithStack(err)
}

// WithStackAndReport is WithStack and reports the error.
func WithStackAndReport(err error) error {
	if err == nil {
		return nil
	}
	err = pkgerrors.WithStack(err)
	report(err)
	return err
}

// Report sends err to the registered reporters without wrapping it.
func Report(err error) {
	report(err)
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

func Cause(err error) error {
	return pkgerrors.Cause(err)
}
