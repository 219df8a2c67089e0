package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chr1syy/maestro/internal/agent/args"
	"github.com/chr1syy/maestro/internal/agent/ssh"
	"github.com/chr1syy/maestro/internal/common/config"
	"github.com/chr1syy/maestro/internal/common/logger"
	"github.com/chr1syy/maestro/internal/db"
)

func newSQLiteRepo(t *testing.T) Repository {
	t.Helper()
	conn, err := db.Open(context.Background(), config.SettingsConfig{Driver: "sqlite", Path: db.MemoryPath}, "")
	require.NoError(t, err)
	repo := NewSQLRepository(conn, true)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func backends(t *testing.T) map[string]func(t *testing.T) Repository {
	t.Helper()
	return map[string]func(t *testing.T) Repository{
		"memory": func(*testing.T) Repository { return NewMemoryRepository() },
		"sqlite": newSQLiteRepo,
	}
}

func TestAgentConfigs(t *testing.T) {
	for name, newRepo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()

			empty, err := repo.AgentConfig(ctx, "codex")
			require.NoError(t, err)
			assert.Equal(t, args.AgentConfig{}, empty)

			want := args.AgentConfig{
				Model:      "openai/gpt-5",
				CustomArgs: "--log-level warn",
				CustomEnv:  map[string]string{"FOO": "bar"},
				CustomPath: "/opt/codex",
			}
			require.NoError(t, repo.PutAgentConfig(ctx, "codex", want))
			got, err := repo.AgentConfig(ctx, "codex")
			require.NoError(t, err)
			assert.Equal(t, want, got)

			want.Model = "openai/gpt-5-mini"
			want.CustomEnv = nil
			require.NoError(t, repo.PutAgentConfig(ctx, "codex", want))
			got, err = repo.AgentConfig(ctx, "codex")
			require.NoError(t, err)
			assert.Equal(t, want, got)

			all, err := repo.ListAgentConfigs(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 1)

			require.NoError(t, repo.DeleteAgentConfig(ctx, "codex"))
			all, err = repo.ListAgentConfigs(ctx)
			require.NoError(t, err)
			assert.Empty(t, all)

			assert.Error(t, repo.PutAgentConfig(ctx, "", want))
		})
	}
}

func TestSSHRemotes(t *testing.T) {
	for name, newRepo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()

			_, err := repo.GetSSHRemote(ctx, "missing")
			assert.ErrorIs(t, err, ssh.ErrRemoteNotFound)

			remote := &ssh.RemoteConfig{
				ID: "dev", Name: "Dev box", Host: "dev.example.com", Port: 2222,
				Username: "alice", PrivateKeyPath: "~/.ssh/id_ed25519",
				RemoteEnv: map[string]string{"LANG": "C.UTF-8"}, Enabled: true,
			}
			require.NoError(t, repo.PutSSHRemote(ctx, remote))
			require.NoError(t, repo.PutSSHRemote(ctx, &ssh.RemoteConfig{ID: "a", Host: "a.local"}))

			got, err := repo.GetSSHRemote(ctx, "dev")
			require.NoError(t, err)
			assert.Equal(t, remote, got)

			list, err := repo.ListSSHRemotes(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "a", list[0].ID)
			assert.False(t, list[0].Enabled)

			assert.ErrorIs(t, repo.PutSSHRemote(ctx, &ssh.RemoteConfig{ID: "x"}), ErrInvalidRemote)
			assert.ErrorIs(t, repo.PutSSHRemote(ctx, &ssh.RemoteConfig{Host: "h"}), ErrInvalidRemote)

			require.NoError(t, repo.DeleteSSHRemote(ctx, "dev"))
			assert.ErrorIs(t, repo.DeleteSSHRemote(ctx, "dev"), ssh.ErrRemoteNotFound)
		})
	}
}

func TestResolveThroughRepository(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, repo.PutSSHRemote(ctx, &ssh.RemoteConfig{ID: "off", Host: "h", Enabled: false}))

	_, err := ssh.Resolve(ctx, repo, ssh.SessionConfig{Enabled: true, RemoteID: "off"})
	assert.ErrorIs(t, err, ssh.ErrRemoteDisabled)
	_, err = ssh.Resolve(ctx, repo, ssh.SessionConfig{Enabled: true, RemoteID: "nope"})
	assert.ErrorIs(t, err, ssh.ErrRemoteNotFound)
}

func TestProvideSeedsFromConfig(t *testing.T) {
	cfg := &config.Config{
		Settings: config.SettingsConfig{Driver: "sqlite", Path: db.MemoryPath},
		Agents: map[string]config.AgentOverride{
			"claude-code": {Model: "anthropic/claude-opus", CustomEnv: []string{"A=1", "bogus"}},
		},
		SSHRemotes: []config.SSHRemote{
			{ID: "r1", Host: "r1.example.com", RemoteEnv: []string{"X=y=z"}, Enabled: true},
		},
	}
	repo, cleanup, err := Provide(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	defer func() { _ = cleanup() }()

	ac, err := repo.AgentConfig(context.Background(), "claude-code")
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-opus", ac.Model)
	assert.Equal(t, map[string]string{"A": "1"}, ac.CustomEnv)

	r, err := repo.GetSSHRemote(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"X": "y=z"}, r.RemoteEnv)
	assert.True(t, r.Enabled)
}

func TestProvideRejectsBadSeed(t *testing.T) {
	cfg := &config.Config{SSHRemotes: []config.SSHRemote{{ID: "r1"}}}
	_, _, err := Provide(context.Background(), cfg, logger.NewNop())
	assert.ErrorIs(t, err, ErrInvalidRemote)
}
