package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/chr1syy/maestro/internal/agent/args"
	"github.com/chr1syy/maestro/internal/agent/ssh"
)

type sqlRepository struct {
	db     *sqlx.DB
	ownsDB bool
	now    func() time.Time
}

var _ Repository = (*sqlRepository)(nil)

type agentConfigRow struct {
	AgentID    string    `db:"agent_id"`
	Model      string    `db:"model"`
	CustomArgs string    `db:"custom_args"`
	CustomEnv  string    `db:"custom_env"`
	CustomPath string    `db:"custom_path"`
	UpdatedAt  time.Time `db:"updated_at"`
}

type sshRemoteRow struct {
	ID             string    `db:"id"`
	Name           string    `db:"name"`
	Host           string    `db:"host"`
	Port           int       `db:"port"`
	Username       string    `db:"username"`
	PrivateKeyPath string    `db:"private_key_path"`
	RemoteEnv      string    `db:"remote_env"`
	Enabled        bool      `db:"enabled"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// NewSQLRepository returns a Repository on an already migrated database.
// When ownsDB is set, Close closes db.
func NewSQLRepository(db *sqlx.DB, ownsDB bool) Repository {
	return &sqlRepository{db: db, ownsDB: ownsDB, now: func() time.Time { return time.Now().UTC() }}
}

func (r *sqlRepository) AgentConfig(ctx context.Context, agentID string) (args.AgentConfig, error) {
	var row agentConfigRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`
		SELECT agent_id, model, custom_args, custom_env, custom_path, updated_at
		FROM agent_configs WHERE agent_id = ?`), agentID)
	if errors.Is(err, sql.ErrNoRows) {
		return args.AgentConfig{}, nil
	}
	if err != nil {
		return args.AgentConfig{}, fmt.Errorf("get agent config %s: %w", agentID, err)
	}
	return row.toAgentConfig()
}

func (r *sqlRepository) ListAgentConfigs(ctx context.Context) (map[string]args.AgentConfig, error) {
	var rows []agentConfigRow
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT agent_id, model, custom_args, custom_env, custom_path, updated_at
		FROM agent_configs ORDER BY agent_id`); err != nil {
		return nil, fmt.Errorf("list agent configs: %w", err)
	}
	out := make(map[string]args.AgentConfig, len(rows))
	for _, row := range rows {
		cfg, err := row.toAgentConfig()
		if err != nil {
			return nil, err
		}
		out[row.AgentID] = cfg
	}
	return out, nil
}

func (r *sqlRepository) PutAgentConfig(ctx context.Context, agentID string, cfg args.AgentConfig) error {
	if agentID == "" {
		return fmt.Errorf("agent id is required")
	}
	env, err := encodeEnv(cfg.CustomEnv)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO agent_configs (agent_id, model, custom_args, custom_env, custom_path, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (agent_id) DO UPDATE SET
			model = excluded.model,
			custom_args = excluded.custom_args,
			custom_env = excluded.custom_env,
			custom_path = excluded.custom_path,
			updated_at = excluded.updated_at`),
		agentID, cfg.Model, cfg.CustomArgs, env, cfg.CustomPath, r.now())
	if err != nil {
		return fmt.Errorf("put agent config %s: %w", agentID, err)
	}
	return nil
}

func (r *sqlRepository) DeleteAgentConfig(ctx context.Context, agentID string) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM agent_configs WHERE agent_id = ?`), agentID); err != nil {
		return fmt.Errorf("delete agent config %s: %w", agentID, err)
	}
	return nil
}

func (r *sqlRepository) GetSSHRemote(ctx context.Context, id string) (*ssh.RemoteConfig, error) {
	var row sshRemoteRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`
		SELECT id, name, host, port, username, private_key_path, remote_env, enabled, created_at, updated_at
		FROM ssh_remotes WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ssh.ErrRemoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ssh remote %s: %w", id, err)
	}
	return row.toRemote()
}

func (r *sqlRepository) ListSSHRemotes(ctx context.Context) ([]*ssh.RemoteConfig, error) {
	var rows []sshRemoteRow
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT id, name, host, port, username, private_key_path, remote_env, enabled, created_at, updated_at
		FROM ssh_remotes ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list ssh remotes: %w", err)
	}
	out := make([]*ssh.RemoteConfig, 0, len(rows))
	for _, row := range rows {
		remote, err := row.toRemote()
		if err != nil {
			return nil, err
		}
		out = append(out, remote)
	}
	return out, nil
}

func (r *sqlRepository) PutSSHRemote(ctx context.Context, remote *ssh.RemoteConfig) error {
	if err := validateRemote(remote); err != nil {
		return err
	}
	env, err := encodeEnv(remote.RemoteEnv)
	if err != nil {
		return err
	}
	now := r.now()
	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO ssh_remotes (id, name, host, port, username, private_key_path, remote_env, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			host = excluded.host,
			port = excluded.port,
			username = excluded.username,
			private_key_path = excluded.private_key_path,
			remote_env = excluded.remote_env,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at`),
		remote.ID, remote.Name, remote.Host, remote.Port, remote.Username, remote.PrivateKeyPath,
		env, remote.Enabled, now, now)
	if err != nil {
		return fmt.Errorf("put ssh remote %s: %w", remote.ID, err)
	}
	return nil
}

func (r *sqlRepository) DeleteSSHRemote(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM ssh_remotes WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete ssh remote %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ssh.ErrRemoteNotFound
	}
	return nil
}

func (r *sqlRepository) Close() error {
	if !r.ownsDB {
		return nil
	}
	return r.db.Close()
}

func (row agentConfigRow) toAgentConfig() (args.AgentConfig, error) {
	env, err := decodeEnv(row.CustomEnv)
	if err != nil {
		return args.AgentConfig{}, fmt.Errorf("agent config %s: %w", row.AgentID, err)
	}
	return args.AgentConfig{
		Model:      row.Model,
		CustomArgs: row.CustomArgs,
		CustomEnv:  env,
		CustomPath: row.CustomPath,
	}, nil
}

func (row sshRemoteRow) toRemote() (*ssh.RemoteConfig, error) {
	env, err := decodeEnv(row.RemoteEnv)
	if err != nil {
		return nil, fmt.Errorf("ssh remote %s: %w", row.ID, err)
	}
	return &ssh.RemoteConfig{
		ID:             row.ID,
		Name:           row.Name,
		Host:           row.Host,
		Port:           row.Port,
		Username:       row.Username,
		PrivateKeyPath: row.PrivateKeyPath,
		RemoteEnv:      env,
		Enabled:        row.Enabled,
	}, nil
}

func encodeEnv(env map[string]string) (string, error) {
	if len(env) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("encode env: %w", err)
	}
	return string(b), nil
}

func decodeEnv(s string) (map[string]string, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var env map[string]string
	if err := json.Unmarshal([]byte(s), &env); err != nil {
		return nil, fmt.Errorf("decode env: %w", err)
	}
	return env, nil
}
