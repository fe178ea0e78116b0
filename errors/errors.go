// Package errors defines the error kinds surfaced by stok. Each kind is a distinct type so callers can
// tell "tried to listen twice" apart from other faults with errors.As, and each carries a stable Code.
package errors

import (
	"errors"
	"fmt"
)

// Code identifies an error kind independent of its message.
type Code string

const (
	CodeMissingField        Code = "E_MISSING_FIELD"
	CodeMultipleConnections Code = "E_MULTIPLE_CONNECTIONS"
	CodePrecondition        Code = "E_PRECONDITION"
)

// Coded is implemented by every error kind in this package.
type Coded interface {
	error
	Code() Code
}

var (
	_ Coded = (*MissingFieldError)(nil)
	_ Coded = (*MultipleConnectionsError)(nil)
	_ Coded = (*PreconditionError)(nil)
)

// ErrMultipleConnections matches any MultipleConnectionsError with errors.Is.
var ErrMultipleConnections = &MultipleConnectionsError{}

// MissingFieldError reports a required construction or registration field that was absent.
type MissingFieldError struct {
	Field string
}

// MissingField creates a MissingFieldError for the named field.
func MissingField(field string) *MissingFieldError {
	return &MissingFieldError{Field: field}
}

func (e *MissingFieldError) Error() string {
	return "missing required field: " + e.Field
}

// Code returns CodeMissingField.
func (e *MissingFieldError) Code() Code {
	return CodeMissingField
}

// MultipleConnectionsError is returned when a second connection is requested from a server that only
// supports one.
type MultipleConnectionsError struct{}

// MultipleConnections creates a MultipleConnectionsError.
func MultipleConnections() *MultipleConnectionsError {
	return &MultipleConnectionsError{}
}

func (e *MultipleConnectionsError) Error() string {
	return "only one connection per server is supported"
}

// Code returns CodeMultipleConnections.
func (e *MultipleConnectionsError) Code() Code {
	return CodeMultipleConnections
}

// Is makes every MultipleConnectionsError equal to ErrMultipleConnections.
func (e *MultipleConnectionsError) Is(target error) bool {
	_, ok := target.(*MultipleConnectionsError)
	return ok
}

// PreconditionError reports a method interception against a method that is not there, or not of the
// expected shape.
type PreconditionError struct {
	Target string
	Method string
	Reason string
}

// Precondition creates a PreconditionError.
func Precondition(target, method, format string, args ...interface{}) *PreconditionError {
	return &PreconditionError{
		Target: target,
		Method: method,
		Reason: fmt.Sprintf(format, args...),
	}
}

func (e *PreconditionError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("cannot intercept %q: %s", e.Method, e.Reason)
	}
	return fmt.Sprintf("cannot intercept %s.%s: %s", e.Target, e.Method, e.Reason)
}

// Code returns CodePrecondition.
func (e *PreconditionError) Code() Code {
	return CodePrecondition
}

// CodeOf extracts the code of the first Coded error in err's chain.
// Returns an empty Code if there is none.
func CodeOf(err error) Code {
	var coded Coded
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return ""
}

// Is reports whether any error in err's chain carries the given code.
func Is(err error, code Code) bool {
	return code != "" && CodeOf(err) == code
}
