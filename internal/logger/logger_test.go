package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "default config", config: nil},
		{name: "json config", config: &Config{Level: "debug", Format: "json"}},
		{name: "console config", config: &Config{Level: "info", Format: "console", Output: io.Discard}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, New(tt.config))
		})
	}
}

func TestLogger_JSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "info", Format: "json", Output: buf})

	log.Info("engine created")

	entry := decode(t, buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "engine created", entry["message"])
	assert.NotEmpty(t, entry["time"])
}

func TestLogger_WithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "info", Format: "json", Output: buf})

	child := log.With().
		Str("connection_id", "c-42").
		Str("dialect", "postgres").
		Int("max_rows", 10000).
		Int64("row_count", 7).
		Bool("truncated", false).
		Dur("elapsed", 1500*time.Millisecond).
		Logger()

	child.Info("statement executed")

	entry := decode(t, buf)
	assert.Equal(t, "c-42", entry["connection_id"])
	assert.Equal(t, "postgres", entry["dialect"])
	assert.Equal(t, float64(10000), entry["max_rows"])
	assert.Equal(t, float64(7), entry["row_count"])
	assert.Equal(t, false, entry["truncated"])
	assert.Contains(t, entry, "elapsed")
}

func TestLogger_ErrorWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "error", Format: "json", Output: buf})

	log.ErrorWith("credential unavailable", errors.New("invalid token"), map[string]any{
		"connection_id": "c-1",
		"port":          5432,
	})

	entry := decode(t, buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "credential unavailable", entry["message"])
	assert.Equal(t, "invalid token", entry["error"])
	assert.Equal(t, "c-1", entry["connection_id"])
	assert.Equal(t, float64(5432), entry["port"])
}

func TestLogger_WarnWith(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "warn", Format: "json", Output: buf})

	log.WarnWith("statement rejected", map[string]any{"rule": "block_comment"})

	entry := decode(t, buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "block_comment", entry["rule"])
}

func TestLogger_Context(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "info", Format: "json", Output: buf})

	ctx := log.WithContext(context.Background())
	FromContext(ctx).Info("from context")

	entry := decode(t, buf)
	assert.Equal(t, "from context", entry["message"])
}

func TestFromContext_FallsBackToGlobal(t *testing.T) {
	prev := Global()
	defer SetGlobal(prev)

	buf := &bytes.Buffer{}
	SetGlobal(New(&Config{Level: "info", Format: "json", Output: buf}))

	FromContext(context.Background()).Info("global")

	entry := decode(t, buf)
	assert.Equal(t, "global", entry["message"])
}

func TestLogger_ForConnection(t *testing.T) {
	buf := new(bytes.Buffer)
	log := New(&Config{Level: "info", Format: "json", Output: buf})

	log.ForConnection("warehouse", "postgres").Info("engine created")

	entry := decode(t, buf)
	assert.Equal(t, "warehouse", entry[FieldConnectionID])
	assert.Equal(t, "postgres", entry[FieldDialect])
	assert.Equal(t, "engine created", entry["message"])
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().With().Str("k", "v").Logger().Error("discarded")
	})
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		logFunc  func(*Logger)
		expected bool
	}{
		{
			name:     "debug level logs debug",
			level:    "debug",
			logFunc:  func(l *Logger) { l.Debug("debug message") },
			expected: true,
		},
		{
			name:     "info level skips debug",
			level:    "info",
			logFunc:  func(l *Logger) { l.Debugf("pool %s", "stats") },
			expected: false,
		},
		{
			name:     "warn level logs warn",
			level:    "warn",
			logFunc:  func(l *Logger) { l.Warnf("legacy credential on %s", "c-9") },
			expected: true,
		},
		{
			name:     "error level skips info",
			level:    "error",
			logFunc:  func(l *Logger) { l.Info("info message") },
			expected: false,
		},
		{
			name:     "unknown level defaults to info",
			level:    "verbose",
			logFunc:  func(l *Logger) { l.Infof("row count %d", 3) },
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			log := New(&Config{Level: tt.level, Format: "json", Output: buf})

			tt.logFunc(log)

			if tt.expected {
				assert.NotEmpty(t, buf.String(), "expected log output")
			} else {
				assert.Empty(t, buf.String(), "expected no log output")
			}
		})
	}
}

func BenchmarkLogger_WithFields(b *testing.B) {
	log := New(&Config{Level: "info", Format: "json", Output: io.Discard})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		log.With().
			Str("connection_id", "c-1").
			Int("row_count", i).
			Logger().
			Info("statement executed")
	}
}
