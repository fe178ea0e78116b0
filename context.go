package stok

import (
	"context"
)

// ContextKey is a generic structure that can be used to attach metadata to a context.
type ContextKey string

func (c ContextKey) String() string {
	return "stok." + string(c)
}

// Contextual represents an object that carries a context accessible via a Context() method.
type Contextual interface {
	Context() context.Context
}

const moduleNameKey = ContextKey("module")

// ModuleName returns the name of the module whose shutdown function received ctx.
func ModuleName(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(moduleNameKey).(string)
	return name, ok
}

func withModuleName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, moduleNameKey, name)
}
