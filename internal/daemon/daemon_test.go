package daemon

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chr1syy/maestro/internal/common/config"
	"github.com/chr1syy/maestro/internal/common/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server:    config.ServerConfig{Host: "127.0.0.1", Port: freePort(t), ReadTimeout: 5, WriteTimeout: 5},
		Logging:   config.LoggingConfig{Level: "info", Format: "console"},
		Process:   config.ProcessConfig{KillGracePeriodMs: 200, BufferMaxBytes: 1 << 20, RawFlushMs: 10},
		TabNaming: config.TabNamingConfig{TimeoutSeconds: 5},
		NATS:      config.NATSConfig{SubjectPrefix: "maestro"},
		Settings:  config.SettingsConfig{Driver: "memory"},
		Agents: map[string]config.AgentOverride{
			"claude-code": {Model: "sonnet"},
		},
		DataDir: t.TempDir(),
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestAcquireLockIsExclusive(t *testing.T) {
	dir := t.TempDir()

	first, err := AcquireLock(dir)
	require.NoError(t, err)

	_, err = AcquireLock(dir)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	require.NoError(t, first.Unlock())
	second, err := AcquireLock(dir)
	require.NoError(t, err)
	require.NoError(t, second.Unlock())
}

func TestNewServicesSeedsSettings(t *testing.T) {
	cfg := testConfig(t)
	svc, err := NewServices(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	defer func() { require.NoError(t, svc.Close(context.Background())) }()

	stored, err := svc.Settings.AgentConfig(context.Background(), "claude-code")
	require.NoError(t, err)
	assert.Equal(t, "sonnet", stored.Model)
	assert.Empty(t, svc.Manager.List())
	assert.NotNil(t, svc.TabNamer)
}

func TestNewServicesRejectsBadOverrideFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.ErrorPatterns.OverridePath = cfg.DataDir + "/missing.yaml"

	_, err := NewServices(context.Background(), cfg, logger.NewNop())
	assert.Error(t, err)
}

func TestRunServesUntilCancelled(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, logger.NewNop()) }()

	url := fmt.Sprintf("http://%s/health", cfg.Server.Addr())
	assert.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	_, err := AcquireLock(cfg.DataDir)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + 5*time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
