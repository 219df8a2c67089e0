package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chr1syy/maestro/internal/common/config"
)

func TestOpenSQLiteMemoryMigrates(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(ctx, config.SettingsConfig{Driver: "sqlite", Path: MemoryPath}, "")
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	version, err := Version(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	var n int
	require.NoError(t, conn.GetContext(ctx, &n, `SELECT COUNT(*) FROM ssh_remotes`))
	assert.Zero(t, n)

	// Re-running is a no-op.
	require.NoError(t, Migrate(ctx, conn))
}

func TestOpenSQLiteFileUnderDataDir(t *testing.T) {
	dir := t.TempDir()
	conn, err := Open(context.Background(), config.SettingsConfig{Driver: "sqlite", Path: "nested/settings.db"}, dir)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	assert.FileExists(t, filepath.Join(dir, "nested", "settings.db"))
	assert.Equal(t, DriverSQLite, conn.DriverName())
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.SettingsConfig{Driver: "oracle"}, "")
	assert.ErrorContains(t, err, "unsupported database driver")

	_, err = Open(context.Background(), config.SettingsConfig{Driver: "postgres"}, "")
	assert.ErrorContains(t, err, "settings.dsn")
}
