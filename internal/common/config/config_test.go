package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644))
	return dir
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadWithPath(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 7420, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Settings.Driver)
	assert.Equal(t, 30, cfg.TabNaming.TimeoutSeconds)
	assert.Equal(t, int64(2*1024*1024), cfg.Process.BufferMaxBytes)
	assert.Empty(t, cfg.NATS.URL)
}

func TestLoadAgentsAndRemotes(t *testing.T) {
	dir := writeConfig(t, `
agents:
  claude-code:
    model: anthropic/claude-sonnet
    customArgs: "--verbose --add-dir '/tmp/with space'"
    customEnv:
      - ANTHROPIC_LOG=debug
sshRemotes:
  - id: dev
    name: Dev box
    host: dev.example.com
    username: alice
    port: 2222
    enabled: true
`)
	cfg, err := LoadWithPath(dir)
	require.NoError(t, err)

	override, ok := cfg.Agents["claude-code"]
	require.True(t, ok)
	assert.Equal(t, "anthropic/claude-sonnet", override.Model)
	assert.Equal(t, map[string]string{"ANTHROPIC_LOG": "debug"}, ParseEnvList(override.CustomEnv))

	require.Len(t, cfg.SSHRemotes, 1)
	assert.Equal(t, "dev.example.com", cfg.SSHRemotes[0].Host)
	assert.Equal(t, 2222, cfg.SSHRemotes[0].Port)
	assert.True(t, cfg.SSHRemotes[0].Enabled)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("MAESTRO_SERVER_PORT", "9001")
	cfg, err := LoadWithPath(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.Server.Port)
}

func TestValidateCollectsErrors(t *testing.T) {
	dir := writeConfig(t, `
server:
  port: 0
settings:
  driver: postgres
sshRemotes:
  - id: a
  - id: a
    host: h
`)
	_, err := LoadWithPath(dir)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "server.port")
	assert.Contains(t, msg, "settings.dsn is required")
	assert.Contains(t, msg, "sshRemotes[0].host is required")
	assert.Contains(t, msg, `sshRemotes[1].id "a" is duplicated`)
}

func TestSQLiteDefaultsPathUnderDataDir(t *testing.T) {
	dir := writeConfig(t, `
dataDir: /var/lib/maestro
settings:
  driver: sqlite
`)
	cfg, err := LoadWithPath(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/var/lib/maestro", "settings.db"), cfg.Settings.Path)
}

func TestParseEnvList(t *testing.T) {
	assert.Nil(t, ParseEnvList(nil))
	assert.Equal(t, map[string]string{"A": "1", "B": "x=y"}, ParseEnvList([]string{"A=1", "B=x=y", "broken", "=nokey"}))
}
