package logging

import (
	"context"

	"go.uber.org/zap"
)

// ContextKey is used to attach logging metadata to a context.
type ContextKey string

func (c ContextKey) String() string {
	return "stok.logging." + string(c)
}

const loggerKey = ContextKey("logger")

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger carried by ctx, or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return zap.NewNop()
	}

	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return zap.NewNop()
}
