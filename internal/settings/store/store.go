// Package store persists per-agent user configuration and SSH remote
// definitions.
package store

import (
	"context"
	"errors"

	"github.com/chr1syy/maestro/internal/agent/args"
	"github.com/chr1syy/maestro/internal/agent/ssh"
)

// ErrInvalidRemote is returned when a remote fails validation on write.
var ErrInvalidRemote = errors.New("invalid ssh remote")

// Repository stores agent configs and SSH remotes. Unknown agents have an
// empty config; unknown remotes yield ssh.ErrRemoteNotFound.
type Repository interface {
	AgentConfig(ctx context.Context, agentID string) (args.AgentConfig, error)
	ListAgentConfigs(ctx context.Context) (map[string]args.AgentConfig, error)
	PutAgentConfig(ctx context.Context, agentID string, cfg args.AgentConfig) error
	DeleteAgentConfig(ctx context.Context, agentID string) error

	GetSSHRemote(ctx context.Context, id string) (*ssh.RemoteConfig, error)
	ListSSHRemotes(ctx context.Context) ([]*ssh.RemoteConfig, error)
	PutSSHRemote(ctx context.Context, remote *ssh.RemoteConfig) error
	DeleteSSHRemote(ctx context.Context, id string) error

	Close() error
}

var _ ssh.RemoteStore = Repository(nil)

func validateRemote(r *ssh.RemoteConfig) error {
	switch {
	case r == nil:
		return ErrInvalidRemote
	case r.ID == "":
		return errors.Join(ErrInvalidRemote, errors.New("id is required"))
	case r.Host == "":
		return errors.Join(ErrInvalidRemote, errors.New("host is required"))
	case r.Port < 0 || r.Port > 65535:
		return errors.Join(ErrInvalidRemote, errors.New("port out of range"))
	}
	return nil
}

func cloneRemote(r *ssh.RemoteConfig) *ssh.RemoteConfig {
	out := *r
	if r.RemoteEnv != nil {
		out.RemoteEnv = make(map[string]string, len(r.RemoteEnv))
		for k, v := range r.RemoteEnv {
			out.RemoteEnv[k] = v
		}
	}
	return &out
}

func cloneAgentConfig(c args.AgentConfig) args.AgentConfig {
	if c.CustomEnv != nil {
		env := make(map[string]string, len(c.CustomEnv))
		for k, v := range c.CustomEnv {
			env[k] = v
		}
		c.CustomEnv = env
	}
	return c
}
