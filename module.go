package stok

import (
	"context"
	"io"
)

// Module is a named participant in the shutdown sequence.
type Module struct {
	Name string

	// Shutdown releases the module's resources. The context carries the module name and a logger
	// scoped to the module, see ModuleName and logging.FromContext.
	Shutdown func(ctx context.Context) error
}

// CloserModule adapts an io.Closer.
func CloserModule(name string, closer io.Closer) Module {
	if closer == nil {
		return Module{Name: name}
	}

	return Module{
		Name: name,
		Shutdown: func(context.Context) error {
			return closer.Close()
		},
	}
}
