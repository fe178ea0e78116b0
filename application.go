package stok

import (
	"context"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	stokerrors "github.com/effxhq/go-stok/errors"
	"github.com/effxhq/go-stok/internal/version"
	"github.com/effxhq/go-stok/logging"
	"github.com/effxhq/go-stok/proxy"
	"github.com/effxhq/go-stok/server"
)

// Version of stok, as reported by the health route.
const Version = version.Version

// ServerModuleName is the name of the module registered by CreateServer.
const ServerModuleName = "HTTP Server"

// Option configures an Application.
type Option func(*Application)

// WithLogging sets the logging context. Default is JSON at info level on stdout.
func WithLogging(factory *logging.Factory) Option {
	return func(app *Application) {
		if factory != nil {
			app.logging = factory
		}
	}
}

// WithShutdownSignals sets the signals that trigger Shutdown. Default is SIGINT and SIGTERM.
// Calling it without signals disables signal handling.
func WithShutdownSignals(signals ...os.Signal) Option {
	return func(app *Application) {
		app.signals = signals
	}
}

// WithRouteErrorHandler sets how servers created by CreateServer respond when a route handler fails.
// Default is a JSON error reply. Failures are logged either way.
func WithRouteErrorHandler(handler fiber.ErrorHandler) Option {
	return func(app *Application) {
		app.routeErrorHandler = handler
	}
}

// Application ties the module registry, signal handling and the HTTP server together.
type Application struct {
	appVersion string

	logging  *logging.Factory
	logger   *zap.Logger
	registry *Registry

	routeErrorHandler fiber.ErrorHandler

	signals []os.Signal
	signal  chan os.Signal
	stop    chan struct{}
	closed  sync.Once

	// canceled once the shutdown run settles
	context context.Context
	cancel  context.CancelFunc
}

var _ Contextual = &Application{}

// New creates an Application. Signal handling starts immediately and lasts until Close.
func New(appVersion string, opts ...Option) (*Application, error) {
	if strings.TrimSpace(appVersion) == "" {
		return nil, stokerrors.MissingField("appVersion")
	}

	app := &Application{
		appVersion: appVersion,
		signals:    []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
	for _, opt := range opts {
		opt(app)
	}

	if app.logging == nil {
		factory, err := logging.New(logging.Config{})
		if err != nil {
			return nil, err
		}
		app.logging = factory
	}

	app.logger = app.logging.Named("stok")
	app.registry = NewRegistry(app.logger)
	app.context, app.cancel = context.WithCancel(context.Background())

	app.notify()

	return app, nil
}

// AppVersion returns the version the application was created with.
func (app *Application) AppVersion() string {
	return app.appVersion
}

// Logging returns the logging context. Use it to change the level at runtime.
func (app *Application) Logging() *logging.Factory {
	return app.logging
}

// Logger returns a logger for one component.
func (app *Application) Logger(component string) *zap.Logger {
	return app.logging.Named(component)
}

// Context is canceled once the shutdown run settles.
func (app *Application) Context() context.Context {
	return app.context
}

// CreateServer creates the HTTP server and its only connection. The server is registered as a module
// that stops it on shutdown if it was started.
//
// Routes are registered on the returned server, and it is started with Start or StartContext.
func (app *Application) CreateServer(options proxy.ConnectionOptions, opts ...server.Option) (*server.Server, error) {
	opts = append([]server.Option{server.WithLogger(app.logging.Named("server"))}, opts...)
	srv := server.New(opts...)

	p, err := proxy.New(srv, proxy.Options{
		AppVersion:   app.appVersion,
		Logger:       app.logging.Named("request"),
		ErrorHandler: app.routeErrorHandler,
	})
	if err != nil {
		return nil, err
	}

	err = app.RegisterModule(Module{
		Name: ServerModuleName,
		Shutdown: func(ctx context.Context) error {
			if !p.IsStarted() {
				return nil
			}
			return srv.Stop(ctx)
		},
	})
	if err != nil {
		return nil, err
	}

	if _, err := p.CreateConnection(options); err != nil {
		return nil, err
	}

	return srv, nil
}

// RegisterModule adds a module to the shutdown sequence.
func (app *Application) RegisterModule(module Module) error {
	return app.registry.Register(module)
}

// Modules returns the registered modules in registration order.
func (app *Application) Modules() []Module {
	return app.registry.Modules()
}

// State returns the state of the shutdown sequence.
func (app *Application) State() State {
	return app.registry.State()
}

// Shutdown shuts every module down, see Registry.Shutdown.
func (app *Application) Shutdown(ctx context.Context) error {
	err := app.registry.Shutdown(ctx)
	app.cancel()
	return err
}

// Done is closed once the shutdown run settles.
func (app *Application) Done() <-chan struct{} {
	return app.registry.Done()
}

// Wait blocks until the shutdown run settles and returns its outcome, or until ctx is done.
func (app *Application) Wait(ctx context.Context) error {
	select {
	case <-app.registry.Done():
		return app.registry.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops signal handling and flushes the logs. It does not shut anything down.
func (app *Application) Close() {
	app.closed.Do(func() {
		if app.stop != nil {
			close(app.stop)
		}
	})
	_ = app.logging.Sync()
}
