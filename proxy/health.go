package proxy

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/effxhq/go-stok/internal/version"
	"github.com/effxhq/go-stok/requestlog"
	"github.com/effxhq/go-stok/server"
)

// HealthPath is the path of the health route.
const HealthPath = "/_health"

var processStart = time.Now()

// Health is the body of the health route.
type Health struct {
	Status      string  `json:"status"`
	PID         int     `json:"pid"`
	Uptime      float64 `json:"uptime"`
	AppVersion  string  `json:"appVersion"`
	StokVersion string  `json:"stokVersion"`
}

// ErrorReply is the body written when a route handler fails.
type ErrorReply struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

const internalErrorMessage = "An internal server error occurred"

func (p *Proxy) healthRoute() server.Route {
	return server.Route{
		Method: fiber.MethodGet,
		Path:   HealthPath,
		Handler: func(c *fiber.Ctx) error {
			return c.JSON(Health{
				Status:      "ok",
				PID:         os.Getpid(),
				Uptime:      time.Since(processStart).Seconds(),
				AppVersion:  p.options.AppVersion,
				StokVersion: version.Version,
			})
		},
	}
}

// catch turns a returned error or a panic into an error response.
func (p *Proxy) catch(handler fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = p.fail(c, fmt.Errorf("panic: %v", r), debug.Stack())
			}
		}()

		if handlerErr := handler(c); handlerErr != nil {
			return p.fail(c, handlerErr, nil)
		}
		return nil
	}
}

func (p *Proxy) fail(c *fiber.Ctx, err error, stack []byte) error {
	code := fiber.StatusInternalServerError
	message := internalErrorMessage

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	fields := []zap.Field{
		zap.Error(err),
		zap.Int("statusCode", code),
		zap.String("method", c.Method()),
		zap.String("path", c.OriginalURL()),
	}
	if stack != nil {
		fields = append(fields, zap.ByteString("stack", stack))
	}

	logger := requestlog.Logger(c)
	if code >= fiber.StatusInternalServerError {
		logger.Error("Request handler failed", fields...)
	} else {
		logger.Warn("Request handler failed", fields...)
	}

	if p.options.ErrorHandler != nil {
		return p.options.ErrorHandler(c, err)
	}

	return c.Status(code).JSON(ErrorReply{
		StatusCode: code,
		Error:      http.StatusText(code),
		Message:    message,
	})
}
