package process

import (
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chr1syy/maestro/internal/agent/parsers"
	"github.com/chr1syy/maestro/internal/common/logger"
)

// managedProcess is one spawned process owned by the Manager registry.
type managedProcess struct {
	mu   sync.Mutex
	info Info

	// cmd, pipes and pty are set before started is.
	started bool
	cmd     *exec.Cmd
	pipes   [2]io.ReadCloser
	parser  *parsers.Parser
	logger  *logger.Logger

	stdinMu sync.Mutex
	stdin   io.WriteCloser

	pty    ptyHandle
	screen *screen

	stdout *tailBuffer
	stderr *tailBuffer

	killed           atomic.Bool
	killOnce         sync.Once
	errorEmitted     bool
	sessionIDEmitted bool
	// assistantText is only touched by the stdout reader.
	assistantText bool

	done chan struct{}
}

func (p *managedProcess) snapshot() Info {
	p.mu.Lock()
	defer p.mu.Unlock()
	info := p.info
	info.Args = append([]string(nil), p.info.Args...)
	return info
}

func (p *managedProcess) pid() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.info.PID
}

func (p *managedProcess) isStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

func (p *managedProcess) touch(t time.Time) {
	p.mu.Lock()
	p.info.LastActivity = t
	p.mu.Unlock()
}

// claimError reports whether the caller may emit this process's one error.
func (p *managedProcess) claimError() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.errorEmitted {
		return false
	}
	p.errorEmitted = true
	return true
}

// claimSessionID records id as the agent session id unless one was already set.
func (p *managedProcess) claimSessionID(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sessionIDEmitted || id == "" {
		return false
	}
	p.sessionIDEmitted = true
	p.info.AgentSessionID = id
	return true
}

func (p *managedProcess) closeStdin() {
	p.stdinMu.Lock()
	defer p.stdinMu.Unlock()
	if p.stdin != nil {
		_ = p.stdin.Close()
		p.stdin = nil
	}
}

func (p *managedProcess) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}
