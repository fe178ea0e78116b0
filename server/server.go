// Package server is the HTTP server stok drives: a fiber application with explicit connections and a
// callback-style start.
//
// Start, Connection and Route dispatch through the server's intercept.Table, so a wrapper installed
// with intercept.Intercept applies to every caller, including code holding the *Server directly.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/effxhq/go-stok/intercept"
)

// Names of the interceptable methods.
const (
	MethodStart      = "start"
	MethodConnection = "connection"
	MethodRoute      = "route"
)

// Method signatures stored in the method table.
type (
	StartFunc      func(callback func(error))
	ConnectionFunc func(options ConnectionOptions) (*Connection, error)
	RouteFunc      func(routes ...Route) error
)

var (
	// ErrNoConnections is reported to the start callback when no connection was created.
	ErrNoConnections = errors.New("no connections to start")

	// ErrInvalidRoute is returned for routes without a path, method or handler.
	ErrInvalidRoute = errors.New("invalid route")
)

// Route maps a method and path to a handler.
type Route struct {
	Method  string
	Path    string
	Handler fiber.Handler
}

// Server wraps a fiber application.
type Server struct {
	app     *fiber.App
	methods *intercept.Table
	logger  *zap.Logger

	mu          sync.Mutex
	connections []*Connection
	started     bool
	serving     sync.WaitGroup
}

var _ intercept.Target = (*Server)(nil)

type options struct {
	logger *zap.Logger
	config fiber.Config
}

// Option configures a Server.
type Option func(*options)

// WithLogger sets the logger for server lifecycle events. Default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithFiberConfig sets the configuration of the underlying fiber application.
// The startup banner is always disabled.
func WithFiberConfig(config fiber.Config) Option {
	return func(o *options) {
		o.config = config
	}
}

// New creates a server without connections.
func New(opts ...Option) *Server {
	o := &options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	o.config.DisableStartupMessage = true

	s := &Server{
		app:     fiber.New(o.config),
		methods: intercept.NewTable("server"),
		logger:  o.logger,
	}

	s.methods.Define(MethodStart, StartFunc(s.start))
	s.methods.Define(MethodConnection, ConnectionFunc(s.connection))
	s.methods.Define(MethodRoute, RouteFunc(s.route))

	return s
}

// Methods implements intercept.Target.
func (s *Server) Methods() *intercept.Table {
	return s.methods
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Logger returns the server's lifecycle logger.
func (s *Server) Logger() *zap.Logger {
	return s.logger
}

// Start begins listening on every connection and reports the outcome to callback exactly once.
// A nil callback is allowed.
func (s *Server) Start(callback func(error)) {
	start, err := intercept.Lookup[StartFunc](s, MethodStart)
	if err != nil {
		if callback != nil {
			callback(err)
		}
		return
	}
	start(callback)
}

// StartContext starts the server and waits for the start callback.
func (s *Server) StartContext(ctx context.Context) error {
	result := make(chan error, 1)
	s.Start(func(err error) {
		select {
		case result <- err:
		default:
		}
	})

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connection adds a listener configuration.
func (s *Server) Connection(options ConnectionOptions) (*Connection, error) {
	connection, err := intercept.Lookup[ConnectionFunc](s, MethodConnection)
	if err != nil {
		return nil, err
	}
	return connection(options)
}

// Route registers routes.
func (s *Server) Route(routes ...Route) error {
	route, err := intercept.Lookup[RouteFunc](s, MethodRoute)
	if err != nil {
		return err
	}
	return route(routes...)
}

// Use installs middleware ahead of routes registered afterwards.
func (s *Server) Use(handlers ...fiber.Handler) {
	args := make([]interface{}, len(handlers))
	for i, handler := range handlers {
		args[i] = handler
	}
	s.app.Use(args...)
}

// Test runs a request through the application without a network listener.
func (s *Server) Test(req *http.Request, msTimeout ...int) (*http.Response, error) {
	return s.app.Test(req, msTimeout...)
}

// IsListening reports whether Start succeeded and Stop has not been called.
func (s *Server) IsListening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.started
}

// Connections returns the configured connections in creation order.
func (s *Server) Connections() []*Connection {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Connection, len(s.connections))
	copy(out, s.connections)
	return out
}

// Stop stops accepting connections and waits for in-flight requests. Stopping a server that is not
// listening is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	s.logger.Info("Server stopping")

	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	for _, c := range s.Connections() {
		c.close()
	}
	s.serving.Wait()

	s.logger.Info("Server stopped")
	return nil
}

func (s *Server) start(callback func(error)) {
	if callback == nil {
		callback = func(error) {}
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		callback(nil)
		return
	}

	if len(s.connections) == 0 {
		s.mu.Unlock()
		callback(ErrNoConnections)
		return
	}

	listeners := make([]net.Listener, 0, len(s.connections))
	for _, c := range s.connections {
		ln, err := net.Listen(c.Options.network(), c.Options.Address())
		if err != nil {
			for _, opened := range listeners {
				_ = opened.Close()
			}
			s.mu.Unlock()

			s.logger.Error("Server start failed", zap.String("connection", c.ID), zap.Error(err))
			callback(err)
			return
		}
		listeners = append(listeners, ln)
	}

	for i, c := range s.connections {
		c.setListener(listeners[i])
	}
	s.started = true
	connections := append([]*Connection(nil), s.connections...)
	s.mu.Unlock()

	for i, ln := range listeners {
		c := connections[i]
		s.serving.Add(1)

		go func(ln net.Listener) {
			defer s.serving.Done()

			if err := s.app.Listener(ln); err != nil && !errors.Is(err, net.ErrClosed) {
				s.logger.Error("Connection stopped serving", zap.String("connection", c.ID), zap.Error(err))
			}
		}(ln)

		s.logger.Info("Server started", zap.String("connection", c.ID), zap.String("address", ln.Addr().String()))
	}

	callback(nil)
}

func (s *Server) connection(options ConnectionOptions) (*Connection, error) {
	if options.Port < 0 || options.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", options.Port)
	}

	c := &Connection{
		ID:      uuid.NewString(),
		Options: options,
	}

	s.mu.Lock()
	s.connections = append(s.connections, c)
	s.mu.Unlock()

	s.logger.Debug("Connection created", zap.String("connection", c.ID), zap.String("address", options.Address()))
	return c, nil
}

func (s *Server) route(routes ...Route) error {
	for _, r := range routes {
		if r.Handler == nil || r.Path == "" || !validMethod(r.Method) {
			return fmt.Errorf("%w: %s %s", ErrInvalidRoute, r.Method, r.Path)
		}
	}

	for _, r := range routes {
		method := strings.ToUpper(r.Method)
		if method == "*" {
			s.app.All(r.Path, r.Handler)
		} else {
			s.app.Add(method, r.Path, r.Handler)
		}
	}
	return nil
}

func validMethod(method string) bool {
	switch strings.ToUpper(method) {
	case "*",
		http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodConnect, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// ConnectionOptions describes where a connection listens.
type ConnectionOptions struct {
	Host string
	Port int

	// Network is passed to net.Listen. Default is "tcp".
	Network string
}

// Address returns host:port.
func (o ConnectionOptions) Address() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

func (o ConnectionOptions) network() string {
	if o.Network == "" {
		return "tcp"
	}
	return o.Network
}

// Connection is the handle for one listener.
type Connection struct {
	ID      string
	Options ConnectionOptions

	mu       sync.Mutex
	listener net.Listener
}

// Addr returns the bound address, or nil when the connection is not listening.
func (c *Connection) Addr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.listener == nil {
		return nil
	}
	return c.listener.Addr()
}

// URI returns the base URL of a listening connection, or "" otherwise.
func (c *Connection) URI() string {
	addr := c.Addr()
	if addr == nil {
		return ""
	}
	return "http://" + addr.String()
}

func (c *Connection) setListener(ln net.Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.listener = ln
}

func (c *Connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.listener != nil {
		_ = c.listener.Close()
		c.listener = nil
	}
}
