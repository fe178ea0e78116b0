// Package requestlog is fiber middleware that gives every request its own logger and writes one entry
// per finished request.
package requestlog

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/effxhq/go-stok/logging"
)

// HeaderRequestID carries the request id. An incoming value is reused, otherwise one is generated.
const HeaderRequestID = "X-Request-Id"

const localsLogger = "stok.requestlog.logger"

// Format selects how finished requests are written.
type Format string

const (
	// FormatFields writes one structured entry with a field per attribute.
	FormatFields Format = "fields"

	// FormatCommon writes the Common Log Format line as the message.
	FormatCommon Format = "common"
)

// Config configures the middleware.
type Config struct {
	Logger *zap.Logger

	// IPHeader names a header that overrides the remote address as the client IP, for servers behind
	// a proxy or load balancer.
	IPHeader string

	Format Format
}

// Info is what gets logged about one request.
type Info struct {
	RequestID  string
	ClientIP   string
	Method     string
	Path       string
	Protocol   string
	StatusCode int
	Size       int
	UserAgent  string
	Time       time.Time
	Latency    time.Duration
	Duration   time.Duration
}

// New creates the middleware.
func New(cfg Config) fiber.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		start := time.Now()

		requestID := c.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(HeaderRequestID, requestID)

		requestLogger := logger.With(zap.String("request_id", requestID))
		c.Locals(localsLogger, requestLogger)
		c.SetUserContext(logging.WithLogger(c.UserContext(), requestLogger))

		if err := c.Next(); err != nil {
			if handlerErr := c.App().ErrorHandler(c, err); handlerErr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		latency := time.Since(start)

		info := Info{
			RequestID:  requestID,
			ClientIP:   clientIP(c, cfg.IPHeader),
			Method:     c.Method(),
			Path:       c.OriginalURL(),
			Protocol:   string(c.Request().Header.Protocol()),
			StatusCode: c.Response().StatusCode(),
			Size:       len(c.Response().Body()),
			UserAgent:  c.Get(fiber.HeaderUserAgent),
			Time:       start,
			Latency:    latency,
			Duration:   time.Since(start),
		}

		var fields []zap.Field
		if sc := trace.SpanContextFromContext(c.UserContext()); sc.IsValid() {
			fields = append(fields,
				zap.String("trace_id", sc.TraceID().String()),
				zap.String("span_id", sc.SpanID().String()),
			)
		}

		if cfg.Format == FormatCommon {
			requestLogger.Info(CommonLogFormat(info), fields...)
			return nil
		}

		requestLogger.Info("HTTP request", append(fields,
			zap.String("clientIp", info.ClientIP),
			zap.Float64("duration", milliseconds(info.Duration)),
			zap.Float64("latency", milliseconds(info.Latency)),
			zap.String("method", info.Method),
			zap.String("path", info.Path),
			zap.String("protocol", info.Protocol),
			zap.Int("statusCode", info.StatusCode),
			zap.String("userAgent", info.UserAgent),
		)...)

		return nil
	}
}

// Logger returns the logger of the current request, or a no-op logger outside the middleware.
func Logger(c *fiber.Ctx) *zap.Logger {
	if logger, ok := c.Locals(localsLogger).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return zap.NewNop()
}

// CommonLogFormat renders info as an Apache Common Log Format line. The request id stands in for the
// user id. An empty body is reported as "-".
func CommonLogFormat(info Info) string {
	size := "-"
	if info.Size > 0 {
		size = strconv.Itoa(info.Size)
	}

	return strings.Join([]string{
		info.ClientIP,
		"-",
		info.RequestID,
		info.Time.Format("[02/Jan/2006:15:04:05 -0700]"),
		`"` + info.Method + " " + info.Path + " " + info.Protocol + `"`,
		strconv.Itoa(info.StatusCode),
		size,
	}, " ")
}

func clientIP(c *fiber.Ctx, header string) string {
	if header != "" {
		if value := c.Get(header); value != "" {
			return value
		}
	}
	return c.IP()
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
