package stok

import (
	"context"
	"errors"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	stokerrors "github.com/effxhq/go-stok/errors"
	"github.com/effxhq/go-stok/logging"
)

// State of a Registry.
type State int32

const (
	StateInvalid State = iota
	StateIdle
	StateShuttingDown
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateShuttingDown:
		return "shutting_down"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "invalid"
}

// Registry keeps modules in registration order and shuts them down in reverse. The zero value is ready
// to use and logs nowhere.
type Registry struct {
	on sync.Once

	logger *zap.Logger

	mu      sync.Mutex
	modules []Module

	// components for managing state machine
	state int32
	run   sync.Once
	done  chan struct{}
	err   error
}

// NewRegistry creates a Registry that logs to logger.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{logger: logger}
}

func (r *Registry) init() {
	if r.logger == nil {
		r.logger = zap.NewNop()
	}

	r.done = make(chan struct{})
	atomic.StoreInt32(&r.state, int32(StateIdle))
}

// Register appends a module. It fails when the name is empty or once shutdown has started.
func (r *Registry) Register(module Module) error {
	r.on.Do(r.init)

	if strings.TrimSpace(module.Name) == "" {
		return stokerrors.MissingField("name")
	}

	r.mu.Lock()
	if r.State() != StateIdle {
		r.mu.Unlock()
		return ErrRegisterAfterShutdown
	}
	r.modules = append(r.modules, module)
	r.mu.Unlock()

	r.logger.Info("Module registered: "+module.Name, logging.Tags("module"), zap.String("module", module.Name))
	return nil
}

// Modules returns the registered modules in registration order.
func (r *Registry) Modules() []Module {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Module, len(r.modules))
	copy(out, r.modules)
	return out
}

// State returns the current state.
func (r *Registry) State() State {
	r.on.Do(r.init)
	return State(atomic.LoadInt32(&r.state))
}

// Done is closed once the shutdown run settles.
func (r *Registry) Done() <-chan struct{} {
	r.on.Do(r.init)
	return r.done
}

// Err returns the outcome of a settled shutdown run, and nil before that.
func (r *Registry) Err() error {
	select {
	case <-r.Done():
		return r.err
	default:
		return nil
	}
}

// Shutdown runs every module's shutdown function, last registered first, and stops at the first
// failure. Only the first call runs anything. Every call returns the outcome of that run, waiting for
// it when needed.
//
// ctx is handed to the shutdown functions as is. Shutdown must not be called from a shutdown function.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.on.Do(r.init)

	r.run.Do(func() {
		r.mu.Lock()
		atomic.StoreInt32(&r.state, int32(StateShuttingDown))
		modules := make([]Module, len(r.modules))
		copy(modules, r.modules)
		r.mu.Unlock()

		r.err = r.shutdown(ctx, modules)
		if r.err != nil {
			atomic.StoreInt32(&r.state, int32(StateFailed))
		} else {
			atomic.StoreInt32(&r.state, int32(StateCompleted))
		}
		close(r.done)
	})

	<-r.done
	return r.err
}

func (r *Registry) shutdown(ctx context.Context, modules []Module) error {
	for i := len(modules); i > 0; i-- {
		module := modules[i-1]

		r.logger.Info("Module shutdown starting: "+module.Name,
			logging.Tags("shutdown", "module"), zap.String("module", module.Name))

		if err := r.shutdownModule(ctx, module); err != nil {
			fields := []zap.Field{
				logging.Tags("shutdown", "module"),
				zap.String("module", module.Name),
				zap.Error(err),
			}

			var panicErr *PanicError
			if errors.As(err, &panicErr) {
				fields = append(fields, zap.ByteString("stack", panicErr.Stack))
			}

			r.logger.Error("Module shutdown error: "+module.Name, fields...)
			return err
		}

		r.logger.Info("Module shutdown complete: "+module.Name,
			logging.Tags("shutdown", "module"), zap.String("module", module.Name))
	}

	r.logger.Info("Shutdown complete", logging.Tags("shutdown"))
	return nil
}

func (r *Registry) shutdownModule(ctx context.Context, module Module) (err error) {
	if module.Shutdown == nil {
		return stokerrors.MissingField("shutdown")
	}

	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Module: module.Name, Value: v, Stack: debug.Stack()}
		}
	}()

	ctx = withModuleName(ctx, module.Name)
	ctx = logging.WithLogger(ctx, r.logger.With(zap.String("module", module.Name)))

	return module.Shutdown(ctx)
}
