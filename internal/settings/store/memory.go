package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/chr1syy/maestro/internal/agent/args"
	"github.com/chr1syy/maestro/internal/agent/ssh"
)

type memoryRepository struct {
	mu      sync.RWMutex
	configs map[string]args.AgentConfig
	remotes map[string]*ssh.RemoteConfig
}

var _ Repository = (*memoryRepository)(nil)

// NewMemoryRepository returns a Repository that keeps everything in memory.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		configs: make(map[string]args.AgentConfig),
		remotes: make(map[string]*ssh.RemoteConfig),
	}
}

func (r *memoryRepository) AgentConfig(_ context.Context, agentID string) (args.AgentConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneAgentConfig(r.configs[agentID]), nil
}

func (r *memoryRepository) ListAgentConfigs(context.Context) (map[string]args.AgentConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]args.AgentConfig, len(r.configs))
	for id, c := range r.configs {
		out[id] = cloneAgentConfig(c)
	}
	return out, nil
}

func (r *memoryRepository) PutAgentConfig(_ context.Context, agentID string, cfg args.AgentConfig) error {
	if agentID == "" {
		return fmt.Errorf("agent id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[agentID] = cloneAgentConfig(cfg)
	return nil
}

func (r *memoryRepository) DeleteAgentConfig(_ context.Context, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.configs, agentID)
	return nil
}

func (r *memoryRepository) GetSSHRemote(_ context.Context, id string) (*ssh.RemoteConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	remote, ok := r.remotes[id]
	if !ok {
		return nil, ssh.ErrRemoteNotFound
	}
	return cloneRemote(remote), nil
}

func (r *memoryRepository) ListSSHRemotes(context.Context) ([]*ssh.RemoteConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ssh.RemoteConfig, 0, len(r.remotes))
	for _, remote := range r.remotes {
		out = append(out, cloneRemote(remote))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepository) PutSSHRemote(_ context.Context, remote *ssh.RemoteConfig) error {
	if err := validateRemote(remote); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remotes[remote.ID] = cloneRemote(remote)
	return nil
}

func (r *memoryRepository) DeleteSSHRemote(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.remotes[id]; !ok {
		return ssh.ErrRemoteNotFound
	}
	delete(r.remotes, id)
	return nil
}

func (r *memoryRepository) Close() error { return nil }
