//go:build unix

package tabnaming

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chr1syy/maestro/internal/agent/agents"
	"github.com/chr1syy/maestro/internal/agent/args"
	"github.com/chr1syy/maestro/internal/common/logger"
	"github.com/chr1syy/maestro/internal/process"
)

func agentScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "copilot")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func newManager(t *testing.T) *process.Manager {
	t.Helper()
	m := process.NewManager(process.ManagerConfig{KillGracePeriod: 200 * time.Millisecond}, logger.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.KillAll(ctx)
		m.Close()
	})
	return m
}

func TestGenerateTabNameWithManager(t *testing.T) {
	m := newManager(t)
	script := agentScript(t, `echo "Here's the tab name:"
echo "**Speed Up CI Cache**"
echo "ignored" >&2
`)
	g := NewGenerator(m, fakeConfigs{agents.IDCopilotCLI: args.AgentConfig{CustomPath: script}}, nil, logger.NewNop())

	name, ok := g.GenerateTabName(context.Background(), Request{
		UserMessage: "ci cache misses all the time",
		AgentType:   agents.IDCopilotCLI,
		Cwd:         t.TempDir(),
	})
	require.True(t, ok)
	assert.Equal(t, "Speed Up CI Cache", name)
	assert.Eventually(t, func() bool { return len(m.List()) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestGenerateTabNameTimeoutKillsProcess(t *testing.T) {
	m := newManager(t)
	script := agentScript(t, "sleep 30\n")
	g := NewGenerator(m, fakeConfigs{agents.IDCopilotCLI: args.AgentConfig{CustomPath: script}}, nil, logger.NewNop(),
		WithTimeout(300*time.Millisecond))

	_, ok := g.GenerateTabName(context.Background(), Request{
		UserMessage: "anything",
		AgentType:   agents.IDCopilotCLI,
		Cwd:         t.TempDir(),
	})
	assert.False(t, ok)
	assert.Empty(t, m.List())
}
