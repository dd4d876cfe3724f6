package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNew_JSONWithServiceAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := newLogger(&buf, Options{Level: "info", Format: "json", Env: "production", Version: "1.2.3"})
	defer closer.Close()

	logger.Debug("hidden")
	logger.Info("appointment_event", "event", "appointment_created", "appointment_id", "a-1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec), buf.String())
	assert.Equal(t, "appointment_event", rec["msg"])
	assert.Equal(t, "appointment_created", rec["event"])
	assert.Equal(t, "shepherd", rec["service"])
	assert.Equal(t, "production", rec["env"])
	assert.Equal(t, "1.2.3", rec["version"])
	assert.NotContains(t, rec, "source")
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := newLogger(&buf, Options{Level: "debug", Format: "text", Env: "development"})
	logger.Debug("request", "status", 200)
	assert.Contains(t, buf.String(), "msg=request")
	assert.Contains(t, buf.String(), "status=200")
	assert.Contains(t, buf.String(), "source=")
}

func TestNew_FileFanOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "shepherd.log")
	var buf bytes.Buffer
	logger, closer := newLogger(&buf, Options{Format: "json", FilePath: path, MaxSizeMB: 1})

	logger.Warn("slow_request", "duration_ms", 250.0)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"slow_request"`)
	assert.Equal(t, buf.String(), string(data))
}
