package logger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLoggerWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "maestro.log")
	log, err := NewLogger(LoggingConfig{Level: "debug", Format: "json", OutputPath: path})
	require.NoError(t, err)

	log.WithSessionID("s-1").WithAgentID("copilot-cli").Info("spawned", zap.Int("pid", 42))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := string(data)
	assert.Contains(t, line, `"session_id":"s-1"`)
	assert.Contains(t, line, `"agent_id":"copilot-cli"`)
	assert.Contains(t, line, `"pid":42`)
	assert.Contains(t, line, `"level":"info"`)
}

func TestNewLoggerRespectsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "maestro.log")
	log, err := NewLogger(LoggingConfig{Level: "error", Format: "json", OutputPath: path})
	require.NoError(t, err)

	log.Info("hidden")
	log.Error("shown")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestWithContextAddsIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "maestro.log")
	log, err := NewLogger(LoggingConfig{Level: "info", Format: "json", OutputPath: path})
	require.NoError(t, err)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-9")
	log.WithContext(ctx).Info("handled")
	assert.Same(t, log, log.WithContext(context.Background()))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"request_id":"req-9"`))
}

func TestDetectFormat(t *testing.T) {
	t.Setenv("KUBERNETES_SERVICE_HOST", "")
	t.Setenv("MAESTRO_ENV", "prod")
	assert.Equal(t, "json", DetectFormat())

	t.Setenv("MAESTRO_ENV", "")
	assert.Equal(t, "text", DetectFormat())
}
