// Package intercept layers behavior onto a collaborator's methods without touching its implementation.
//
// A collaborator that wants to be interceptable keeps its lifecycle methods in a Table and dispatches
// through it. Intercept then swaps exactly one named slot for a wrapper built around the original:
//
//	err := intercept.Intercept(srv, "start", func(original StartFunc) StartFunc {
//		return func(callback func(error)) {
//			// before
//			original(callback)
//		}
//	})
//
// Because the collaborator itself dispatches through the table, direct calls against the collaborator
// observe the wrapper too.
package intercept

import (
	"sync"

	stokerrors "github.com/effxhq/go-stok/errors"
)

// Target is implemented by collaborators that expose their method table.
type Target interface {
	Methods() *Table
}

// Table holds the replaceable methods of one collaborator.
type Table struct {
	owner string

	mu      sync.RWMutex
	methods map[string]interface{}
}

// NewTable creates an empty table. The owner name only shows up in errors.
func NewTable(owner string) *Table {
	return &Table{
		owner:   owner,
		methods: make(map[string]interface{}),
	}
}

// Define sets the initial implementation of a method. Collaborators call this during construction,
// typically with method values so the receiver is already bound.
func (t *Table) Define(name string, fn interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.methods[name] = fn
}

// Has reports whether a method is defined.
func (t *Table) Has(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	fn, ok := t.methods[name]
	return ok && fn != nil
}

// Owner returns the name the table was created with.
func (t *Table) Owner() string {
	return t.owner
}

// Lookup returns the current implementation of a method.
func Lookup[F any](target Target, name string) (F, error) {
	var zero F

	table, err := tableOf(target, name)
	if err != nil {
		return zero, err
	}

	table.mu.RLock()
	defer table.mu.RUnlock()

	return get[F](table, name)
}

// Intercept replaces the named method with wrap(original). The wrapper may call original any number of
// times, from any goroutine, and may change its arguments or results. wrap runs while the table is
// locked and must not use the table itself.
//
// It fails with a *errors.PreconditionError when the method is not defined or is not an F.
func Intercept[F any](target Target, name string, wrap func(original F) F) error {
	table, err := tableOf(target, name)
	if err != nil {
		return err
	}

	table.mu.Lock()
	defer table.mu.Unlock()

	original, err := get[F](table, name)
	if err != nil {
		return err
	}

	table.methods[name] = wrap(original)
	return nil
}

func tableOf(target Target, name string) (*Table, error) {
	if target == nil {
		return nil, stokerrors.Precondition("", name, "target is nil")
	}

	table := target.Methods()
	if table == nil {
		return nil, stokerrors.Precondition("", name, "target has no method table")
	}

	return table, nil
}

// get expects the caller to hold the lock.
func get[F any](t *Table, name string) (F, error) {
	var zero F

	raw, ok := t.methods[name]
	if !ok || raw == nil {
		return zero, stokerrors.Precondition(t.owner, name, "method is not defined")
	}

	fn, ok := raw.(F)
	if !ok {
		return zero, stokerrors.Precondition(t.owner, name, "method has type %T, want %T", raw, zero)
	}

	return fn, nil
}
