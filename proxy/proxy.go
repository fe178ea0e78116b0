// Package proxy adds stok's operational guarantees to a server.Server without changing it:
//
//   - Start resolves exactly once and tracks whether the server is started.
//   - A server gets one connection. Later attempts fail with a MultipleConnectionsError, including
//     attempts made directly against the server.
//   - Route handlers that fail, by returning an error or by panicking, produce an error response
//     instead of taking down the request loop.
//   - Every request is logged, and the connection gets a health route.
package proxy

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	stokerrors "github.com/effxhq/go-stok/errors"
	"github.com/effxhq/go-stok/intercept"
	"github.com/effxhq/go-stok/requestlog"
	"github.com/effxhq/go-stok/server"
)

// Options configures a Proxy.
type Options struct {
	// AppVersion is reported on the health route. Required.
	AppVersion string

	// Logger receives request logs. Default is the server's logger.
	Logger *zap.Logger

	// ErrorHandler writes the response for a failed route handler. The failure is logged either way.
	// Default replies with an ErrorReply.
	ErrorHandler fiber.ErrorHandler
}

// ConnectionOptions are the server's connection options plus the ones consumed by the proxy.
type ConnectionOptions struct {
	server.ConnectionOptions

	// IPHeader overrides the remote address in request logs. It never reaches the server.
	IPHeader string

	// LogFormat selects the request log format. It never reaches the server.
	LogFormat requestlog.Format
}

// Proxy wraps the lifecycle methods of one server.
type Proxy struct {
	server  *server.Server
	options Options

	started       atomic.Bool
	hasConnection atomic.Bool

	// holds the request logging fiber.Handler, replaced once the connection options are known
	requestLog atomic.Value
}

// New wraps srv. The start and route methods are intercepted and request logging is installed
// immediately, so routes registered before CreateConnection are covered too.
func New(srv *server.Server, options Options) (*Proxy, error) {
	if strings.TrimSpace(options.AppVersion) == "" {
		return nil, stokerrors.MissingField("appVersion")
	}
	if srv == nil {
		return nil, stokerrors.MissingField("server")
	}
	if options.Logger == nil {
		options.Logger = srv.Logger()
	}

	p := &Proxy{
		server:  srv,
		options: options,
	}

	if err := p.proxyStart(); err != nil {
		return nil, err
	}
	if err := p.proxyRoute(); err != nil {
		return nil, err
	}

	p.setRequestLog(requestlog.Config{})
	srv.Use(func(c *fiber.Ctx) error {
		return p.requestLog.Load().(fiber.Handler)(c)
	})

	return p, nil
}

// Server returns the wrapped server.
func (p *Proxy) Server() *server.Server {
	return p.server
}

// IsStarted reports whether start was requested and has not failed.
func (p *Proxy) IsStarted() bool {
	return p.started.Load()
}

// HasConnection reports whether the connection was created.
func (p *Proxy) HasConnection() bool {
	return p.hasConnection.Load()
}

// Start starts the server and waits for the outcome. A start failure is returned exactly as the
// server reported it.
func (p *Proxy) Start(ctx context.Context) error {
	result := make(chan error, 1)
	p.server.Start(func(err error) {
		result <- err
	})

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CreateConnection creates the server's only connection, applies IPHeader and LogFormat to request
// logging, and installs the health route.
func (p *Proxy) CreateConnection(options ConnectionOptions) (*server.Connection, error) {
	if !p.hasConnection.CompareAndSwap(false, true) {
		return nil, stokerrors.MultipleConnections()
	}

	connection, err := p.server.Connection(options.ConnectionOptions)
	if err != nil {
		p.hasConnection.Store(false)
		return nil, err
	}

	err = intercept.Intercept(p.server, server.MethodConnection, func(server.ConnectionFunc) server.ConnectionFunc {
		return func(server.ConnectionOptions) (*server.Connection, error) {
			return nil, stokerrors.MultipleConnections()
		}
	})
	if err != nil {
		return nil, err
	}

	p.setRequestLog(requestlog.Config{
		IPHeader: options.IPHeader,
		Format:   options.LogFormat,
	})

	if err := p.server.Route(p.healthRoute()); err != nil {
		return nil, err
	}

	return connection, nil
}

func (p *Proxy) setRequestLog(cfg requestlog.Config) {
	cfg.Logger = p.options.Logger
	p.requestLog.Store(requestlog.New(cfg))
}

// proxyStart supplies the start callback itself, so the server's own StartContext bridge is never
// re-entered from here.
func (p *Proxy) proxyStart() error {
	return intercept.Intercept(p.server, server.MethodStart, func(original server.StartFunc) server.StartFunc {
		return func(callback func(error)) {
			var once sync.Once

			p.started.Store(true)

			original(func(err error) {
				once.Do(func() {
					if err != nil {
						p.started.Store(false)
					}
					if callback != nil {
						callback(err)
					}
				})
			})
		}
	})
}

func (p *Proxy) proxyRoute() error {
	return intercept.Intercept(p.server, server.MethodRoute, func(original server.RouteFunc) server.RouteFunc {
		return func(routes ...server.Route) error {
			wrapped := make([]server.Route, len(routes))
			for i, route := range routes {
				if route.Handler != nil {
					route.Handler = p.catch(route.Handler)
				}
				wrapped[i] = route
			}
			return original(wrapped...)
		}
	})
}
