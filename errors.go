package stok

import (
	"fmt"

	stokerrors "github.com/effxhq/go-stok/errors"
)

type (
	MissingFieldError        = stokerrors.MissingFieldError
	MultipleConnectionsError = stokerrors.MultipleConnectionsError
	PreconditionError        = stokerrors.PreconditionError
)

var (
	ErrMultipleConnections   = stokerrors.ErrMultipleConnections
	ErrRegisterAfterShutdown = fmt.Errorf("cannot register a module after shutdown started")
)

// PanicError is the shutdown error of a module whose shutdown function panicked.
type PanicError struct {
	Module string
	Value  interface{}
	Stack  []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("module %s panicked during shutdown: %v", e.Module, e.Value)
}
