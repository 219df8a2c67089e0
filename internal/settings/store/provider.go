package store

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/chr1syy/maestro/internal/agent/args"
	"github.com/chr1syy/maestro/internal/agent/ssh"
	"github.com/chr1syy/maestro/internal/common/config"
	"github.com/chr1syy/maestro/internal/common/logger"
	"github.com/chr1syy/maestro/internal/db"
)

// Provide builds the configured repository and seeds it with the agent
// overrides and SSH remotes from cfg. Config entries overwrite stored ones
// with the same id.
func Provide(ctx context.Context, cfg *config.Config, log *logger.Logger) (Repository, func() error, error) {
	var repo Repository
	driver := strings.ToLower(strings.TrimSpace(cfg.Settings.Driver))
	switch driver {
	case "", "memory":
		driver = "memory"
		repo = NewMemoryRepository()
	default:
		conn, err := db.Open(ctx, cfg.Settings, cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open settings database: %w", err)
		}
		repo = NewSQLRepository(conn, true)
	}

	if err := Seed(ctx, repo, cfg); err != nil {
		_ = repo.Close()
		return nil, nil, err
	}
	log.Info("Settings store initialized",
		zap.String("driver", driver),
		zap.Int("agent_overrides", len(cfg.Agents)),
		zap.Int("ssh_remotes", len(cfg.SSHRemotes)))
	return repo, repo.Close, nil
}

// Seed writes the config file's agent overrides and SSH remotes into repo.
func Seed(ctx context.Context, repo Repository, cfg *config.Config) error {
	for id, o := range cfg.Agents {
		err := repo.PutAgentConfig(ctx, id, args.AgentConfig{
			Model:      o.Model,
			CustomArgs: o.CustomArgs,
			CustomEnv:  config.ParseEnvList(o.CustomEnv),
			CustomPath: o.CustomPath,
		})
		if err != nil {
			return fmt.Errorf("seed agent %s: %w", id, err)
		}
	}
	for _, r := range cfg.SSHRemotes {
		err := repo.PutSSHRemote(ctx, &ssh.RemoteConfig{
			ID:             r.ID,
			Name:           r.Name,
			Host:           r.Host,
			Port:           r.Port,
			Username:       r.Username,
			PrivateKeyPath: r.PrivateKeyPath,
			RemoteEnv:      config.ParseEnvList(r.RemoteEnv),
			Enabled:        r.Enabled,
		})
		if err != nil {
			return fmt.Errorf("seed ssh remote %s: %w", r.ID, err)
		}
	}
	return nil
}
