package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newBufferedFactory(t *testing.T, level string) (*Factory, *bytes.Buffer) {
	t.Helper()

	buf := &bytes.Buffer{}
	factory, err := New(Config{Level: level, Output: zapcore.AddSync(buf)})
	require.NoError(t, err)

	return factory, buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()

	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]interface{}{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func Test_Factory_Named(t *testing.T) {
	factory, buf := newBufferedFactory(t, "")

	factory.Named("stok").Info("Module registered: db", Tags("module"))

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	require.Equal(t, "stok", entries[0]["logger"])
	require.Equal(t, "Module registered: db", entries[0]["msg"])
	require.Equal(t, []interface{}{"module"}, entries[0]["tags"])
}

func Test_Factory_SetLevel(t *testing.T) {
	factory, buf := newBufferedFactory(t, "error")
	logger := factory.Named("server")

	logger.Info("hidden")
	require.Empty(t, decodeLines(t, buf))

	require.NoError(t, factory.SetLevel("debug"))
	require.Equal(t, zapcore.DebugLevel, factory.Level())

	logger.Debug("visible")
	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	require.Equal(t, "visible", entries[0]["msg"])
}

func Test_Factory_InvalidConfig(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	require.Error(t, err)

	_, err = New(Config{Encoding: "xml"})
	require.Error(t, err)

	factory := NewNop()
	require.Error(t, factory.SetLevel("loud"))
}

func Test_Factory_Nil(t *testing.T) {
	var factory *Factory

	require.NotPanics(t, func() {
		factory.Named("x").Info("discarded")
		require.NoError(t, factory.SetLevel("debug"))
		require.Equal(t, zapcore.InfoLevel, factory.Level())
	})
}

func Test_FromLogger(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	factory := FromLogger(zap.New(core))

	factory.Named("stok").Info("hello")

	require.Equal(t, 1, observed.Len())
	require.Equal(t, "stok", observed.All()[0].LoggerName)
}

func Test_Context(t *testing.T) {
	require.NotNil(t, FromContext(context.Background()))
	require.NotNil(t, FromContext(nil)) //nolint:staticcheck

	core, observed := observer.New(zapcore.InfoLevel)
	ctx := WithLogger(context.Background(), zap.New(core))

	FromContext(ctx).Info("from context")
	require.Equal(t, 1, observed.FilterMessage("from context").Len())
	require.Equal(t, "stok.logging.logger", loggerKey.String())
}
