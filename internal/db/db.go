// Package db opens the settings database and keeps its schema current.
package db

import (
	"context"
	"embed"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/chr1syy/maestro/internal/common/config"
)

// Driver names as registered with database/sql.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Open connects to the database selected by cfg and applies pending
// migrations. A relative or empty sqlite path lives under dataDir.
func Open(ctx context.Context, cfg config.SettingsConfig, dataDir string) (*sqlx.DB, error) {
	var conn *sqlx.DB
	switch strings.ToLower(cfg.Driver) {
	case "sqlite", DriverSQLite:
		path := cfg.Path
		if path == "" {
			path = "maestro.db"
		}
		if path != MemoryPath && !filepath.IsAbs(path) && dataDir != "" {
			path = filepath.Join(dataDir, path)
		}
		sqlDB, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		conn = sqlx.NewDb(sqlDB, DriverSQLite)
	case "postgres", "postgresql", DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("settings.dsn is required for the postgres driver")
		}
		sqlDB, err := OpenPostgres(cfg.DSN, cfg.MaxConns, cfg.MinConns)
		if err != nil {
			return nil, err
		}
		conn = sqlx.NewDb(sqlDB, DriverPostgres)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	if err := Migrate(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// Migrate applies all pending goose migrations from the embedded SQL files.
func Migrate(ctx context.Context, conn *sqlx.DB) error {
	dialect := goose.DialectSQLite3
	if conn.DriverName() == DriverPostgres {
		dialect = goose.DialectPostgres
	}
	provider, err := goose.NewProvider(dialect, conn.DB, migrationsFS())
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Version returns the current schema version.
func Version(ctx context.Context, conn *sqlx.DB) (int64, error) {
	dialect := goose.DialectSQLite3
	if conn.DriverName() == DriverPostgres {
		dialect = goose.DialectPostgres
	}
	provider, err := goose.NewProvider(dialect, conn.DB, migrationsFS())
	if err != nil {
		return 0, fmt.Errorf("init migrations: %w", err)
	}
	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("get version: %w", err)
	}
	return version, nil
}
