// Package logging builds the structured loggers used across stok.
//
// A Factory owns one base zap logger and the level it runs at. Components get named children of that
// logger, and the level can be changed at runtime for every child at once.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Encoding selects the output format.
type Encoding string

const (
	EncodingJSON    Encoding = "json"
	EncodingConsole Encoding = "console"
)

// Config contains the logger initialization inputs. The zero value logs JSON at info level to stdout.
type Config struct {
	Level    string
	Encoding Encoding
	Output   zapcore.WriteSyncer
}

// Factory creates component loggers that share an output and a level.
type Factory struct {
	base  *zap.Logger
	level zap.AtomicLevel
}

// New creates a Factory.
func New(cfg Config) (*Factory, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if strings.TrimSpace(cfg.Level) != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid level %q: %w", cfg.Level, err)
		}
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch cfg.Encoding {
	case "", EncodingJSON:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	case EncodingConsole:
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("invalid encoding %q", cfg.Encoding)
	}

	output := cfg.Output
	if output == nil {
		output = zapcore.Lock(os.Stdout)
	}

	core := zapcore.NewCore(encoder, output, level)

	return &Factory{
		base:  zap.New(core, zap.AddCaller()).With(zap.Int("pid", os.Getpid())),
		level: level,
	}, nil
}

// NewNop creates a Factory whose loggers discard everything.
func NewNop() *Factory {
	return &Factory{
		base:  zap.NewNop(),
		level: zap.NewAtomicLevel(),
	}
}

// FromLogger creates a Factory around an existing logger. SetLevel only affects the level handle
// returned by Level; the logger's own core decides what is written.
func FromLogger(logger *zap.Logger) *Factory {
	if logger == nil {
		return NewNop()
	}

	return &Factory{
		base:  logger,
		level: zap.NewAtomicLevel(),
	}
}

// Named returns a logger for one component.
func (f *Factory) Named(component string) *zap.Logger {
	return f.logger().Named(component)
}

// SetLevel changes the level of every logger created by this factory.
func (f *Factory) SetLevel(level string) error {
	if f == nil {
		return nil
	}

	if err := f.level.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid level %q: %w", level, err)
	}
	return nil
}

// Level returns the current level.
func (f *Factory) Level() zapcore.Level {
	if f == nil {
		return zapcore.InfoLevel
	}
	return f.level.Level()
}

// Sync flushes buffered entries.
func (f *Factory) Sync() error {
	return f.logger().Sync()
}

func (f *Factory) logger() *zap.Logger {
	if f == nil || f.base == nil {
		return zap.NewNop()
	}
	return f.base
}

// Tags creates the conventional tags field.
func Tags(tags ...string) zap.Field {
	return zap.Strings("tags", tags)
}
