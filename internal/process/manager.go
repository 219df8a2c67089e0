// Package process spawns agent CLIs and terminals, streams their output
// through the agent's parser and publishes lifecycle events.
//
// Every process is tracked by session id in a registry owned by the
// Manager. For each process one goroutine per output stream feeds a line
// buffer (or, for terminals, a raw coalescer and a virtual screen), and a
// waiter goroutine publishes the exit only after both readers drained.
//
// Events for one session reach each subscriber in production order; an
// error is published at most once per process and exactly one exit follows.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chr1syy/maestro/internal/agent/agents"
	"github.com/chr1syy/maestro/internal/agent/parsers"
	"github.com/chr1syy/maestro/internal/common/constants"
	"github.com/chr1syy/maestro/internal/common/logger"
	"github.com/chr1syy/maestro/pkg/agent"
)

// ManagerConfig tunes process handling.
type ManagerConfig struct {
	KillGracePeriod  time.Duration
	BufferMaxBytes   int64
	RawFlushInterval time.Duration
	RawFlushBytes    int
	TerminalCols     int
	TerminalRows     int
}

// DefaultManagerConfig returns the built-in limits.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		KillGracePeriod:  constants.KillGracePeriod,
		BufferMaxBytes:   constants.OutputBufferMaxBytes,
		RawFlushInterval: constants.RawFlushInterval,
		RawFlushBytes:    constants.RawFlushBytes,
		TerminalCols:     defaultCols,
		TerminalRows:     defaultRows,
	}
}

// Manager owns the process registry.
type Manager struct {
	logger  *logger.Logger
	cfg     ManagerConfig
	emitter *Emitter
	tracer  trace.Tracer
	now     func() time.Time

	mu        sync.RWMutex
	processes map[string]*managedProcess
}

// NewManager creates a Manager. Zero fields in cfg take their defaults.
func NewManager(cfg ManagerConfig, log *logger.Logger) *Manager {
	def := DefaultManagerConfig()
	if cfg.KillGracePeriod <= 0 {
		cfg.KillGracePeriod = def.KillGracePeriod
	}
	if cfg.BufferMaxBytes <= 0 {
		cfg.BufferMaxBytes = def.BufferMaxBytes
	}
	if cfg.RawFlushInterval <= 0 {
		cfg.RawFlushInterval = def.RawFlushInterval
	}
	if cfg.RawFlushBytes <= 0 {
		cfg.RawFlushBytes = def.RawFlushBytes
	}
	if cfg.TerminalCols <= 0 {
		cfg.TerminalCols = def.TerminalCols
	}
	if cfg.TerminalRows <= 0 {
		cfg.TerminalRows = def.TerminalRows
	}
	if log == nil {
		log = logger.Default()
	}
	return &Manager{
		logger:    log.WithFields(zap.String("component", "process-manager")),
		cfg:       cfg,
		emitter:   NewEmitter(),
		tracer:    otel.Tracer("github.com/chr1syy/maestro/internal/process"),
		now:       time.Now,
		processes: make(map[string]*managedProcess),
	}
}

// Subscribe returns a new ordered view of all process events.
func (m *Manager) Subscribe() *Subscription {
	return m.emitter.Subscribe()
}

// Close ends all subscriptions. Running processes are left alone; call
// KillAll first during shutdown.
func (m *Manager) Close() {
	m.emitter.Close()
}

// Spawn starts the process described by cfg and begins streaming its
// output. Spawn failures are returned here and leave nothing registered.
func (m *Manager) Spawn(ctx context.Context, cfg Config) (*Info, error) {
	ctx, span := m.tracer.Start(ctx, "process.spawn", trace.WithAttributes(
		attribute.String("session.id", cfg.SessionID),
		attribute.String("tool.type", cfg.ToolType),
	))
	defer span.End()

	info, err := m.spawn(ctx, cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("process.pid", info.PID))
	return info, nil
}

// IsSSHCommand reports whether command runs the ssh client.
func IsSSHCommand(command string) bool {
	base := strings.TrimSuffix(filepath.Base(command), ".exe")
	return base == "ssh"
}

func (m *Manager) spawn(ctx context.Context, cfg Config) (*Info, error) {
	if cfg.SessionID == "" {
		return nil, errors.New("session_id is required")
	}
	if cfg.Command == "" {
		return nil, errors.New("command is required")
	}
	if cfg.SSHRemoteID != "" && !IsSSHCommand(cfg.Command) {
		return nil, fmt.Errorf("%w: %s", ErrRemoteCommand, cfg.Command)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Cwd != "" {
		st, err := os.Stat(cfg.Cwd)
		if err != nil {
			return nil, fmt.Errorf("working directory: %w", err)
		}
		if !st.IsDir() {
			return nil, fmt.Errorf("working directory %s is not a directory", cfg.Cwd)
		}
	}

	def, _ := agents.Get(cfg.ToolType)
	parser, _ := parsers.GetOutputParser(cfg.ToolType)
	isTerminal := cfg.ToolType == agents.IDTerminal || (def != nil && def.Capabilities.RequiresPTY)

	now := m.now()
	p := &managedProcess{
		info: Info{
			SessionID:        cfg.SessionID,
			ProcessID:        uuid.New().String(),
			ToolType:         cfg.ToolType,
			Command:          cfg.Command,
			Args:             append([]string(nil), cfg.Args...),
			Cwd:              cfg.Cwd,
			IsTerminal:       isTerminal,
			IsStreamJSONMode: IsStreamJSONMode(cfg),
			IsBatchMode:      IsBatchMode(cfg),
			SSHRemoteID:      cfg.SSHRemoteID,
			SSHRemoteHost:    cfg.SSHRemoteHost,
			StartTime:        now,
			LastActivity:     now,
		},
		parser: parser,
		stdout: newTailBuffer(m.cfg.BufferMaxBytes),
		stderr: newTailBuffer(m.cfg.BufferMaxBytes),
		done:   make(chan struct{}),
	}
	p.logger = m.logger.WithSessionID(cfg.SessionID).WithFields(
		zap.String("process_id", p.info.ProcessID),
		zap.String("tool_type", cfg.ToolType),
	)

	m.mu.Lock()
	if _, exists := m.processes[cfg.SessionID]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, cfg.SessionID)
	}
	m.processes[cfg.SessionID] = p
	m.mu.Unlock()

	payload, keepOpen, err := stdinPayload(cfg)
	if err == nil {
		if isTerminal {
			err = m.startTerminal(p, cfg)
		} else {
			err = m.startChild(p, cfg, payload != "" || keepOpen)
		}
	}
	if err != nil {
		m.deregister(p)
		p.logger.Warn("spawn failed", zap.String("command", cfg.Command), zap.Error(err))
		return nil, fmt.Errorf("spawn %s: %w", cfg.Command, err)
	}

	// Interactive writes must queue behind the bootstrap payload.
	initialStdin := p.stdin != nil
	if initialStdin {
		p.stdinMu.Lock()
	}

	p.mu.Lock()
	p.info.PID = p.cmd.Process.Pid
	p.started = true
	p.mu.Unlock()
	if p.killed.Load() {
		// Killed while starting.
		_ = m.signalKill(p)
	}

	p.logger.Info("process spawned",
		zap.Int("pid", p.pid()),
		zap.String("command", cfg.Command),
		zap.Strings("args", cfg.Args),
		zap.Bool("stream_json", p.info.IsStreamJSONMode),
		zap.Bool("batch", p.info.IsBatchMode),
		zap.Bool("terminal", isTerminal),
	)

	if def != nil && !isTerminal && !def.Capabilities.InBandSessionID {
		m.emitSessionID(p, fmt.Sprintf("%s-session-%d", cfg.ToolType, now.UnixMilli()))
	}

	var readers sync.WaitGroup
	if isTerminal {
		readers.Add(1)
		go m.readTerminal(p, &readers)
		if payload != "" {
			go func() {
				if _, err := io.WriteString(p.pty, payload); err != nil {
					p.logger.Debug("terminal stdin write failed", zap.Error(err))
				}
			}()
		}
	} else {
		readers.Add(2)
		go m.readStream(p, p.pipes[0], StreamStdout, &readers)
		go m.readStream(p, p.pipes[1], StreamStderr, &readers)
		if initialStdin {
			go m.writeInitialStdin(p, payload, keepOpen)
		}
	}
	go m.wait(p, &readers)

	info := p.snapshot()
	return &info, nil
}

func (m *Manager) startChild(p *managedProcess, cfg Config, wantStdin bool) error {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Cwd
	cmd.Env = mergeEnv(cfg.CustomEnv)
	setProcGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("attach stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("attach stderr: %w", err)
	}
	var stdin io.WriteCloser
	if wantStdin {
		if stdin, err = cmd.StdinPipe(); err != nil {
			return fmt.Errorf("attach stdin: %w", err)
		}
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	p.cmd = cmd
	p.stdin = stdin
	p.pipes = [2]io.ReadCloser{stdout, stderr}
	return nil
}

func (m *Manager) startTerminal(p *managedProcess, cfg Config) error {
	cols, rows := cfg.Cols, cfg.Rows
	if cols <= 0 {
		cols = m.cfg.TerminalCols
	}
	if rows <= 0 {
		rows = m.cfg.TerminalRows
	}
	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Cwd
	cmd.Env = append(mergeEnv(cfg.CustomEnv), "TERM=xterm-256color")
	setPTYProcAttr(cmd)

	handle, err := startPTY(cmd, cols, rows)
	if err != nil {
		return err
	}
	p.cmd = cmd
	p.pty = handle
	p.screen = newScreen(cols, rows)
	return nil
}

// writeInitialStdin runs with stdinMu already held by Spawn.
func (m *Manager) writeInitialStdin(p *managedProcess, payload string, keepOpen bool) {
	defer p.stdinMu.Unlock()
	if payload != "" {
		if _, err := io.WriteString(p.stdin, payload); err != nil {
			p.logger.Debug("stdin write failed", zap.Error(err))
		}
	}
	if !keepOpen {
		_ = p.stdin.Close()
		p.stdin = nil
	}
}

func (m *Manager) readStream(p *managedProcess, r io.Reader, stream Stream, wg *sync.WaitGroup) {
	defer wg.Done()
	acc := p.stdout
	if stream == StreamStderr {
		acc = p.stderr
	}

	var lines lineBuffer
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			_, _ = acc.Write(buf[:n])
			p.touch(m.now())
			for _, line := range lines.write(buf[:n]) {
				m.handleLine(p, stream, line)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				p.logger.Debug("output read ended", zap.String("stream", string(stream)), zap.Error(err))
			}
			break
		}
	}
	if line, ok := lines.flush(); ok {
		m.handleLine(p, stream, line)
	}
}

func (m *Manager) readTerminal(p *managedProcess, wg *sync.WaitGroup) {
	defer wg.Done()
	coalescer := newRawCoalescer(m.cfg.RawFlushInterval, m.cfg.RawFlushBytes, func(data []byte) {
		if p.killed.Load() {
			return
		}
		m.publish(p, Event{Type: EventData, Data: string(data), Stream: StreamStdout})
	})
	defer coalescer.close()

	buf := make([]byte, 32*1024)
	for {
		n, err := p.pty.Read(buf)
		if n > 0 {
			_, _ = p.stdout.Write(buf[:n])
			_, _ = p.screen.Write(buf[:n])
			p.touch(m.now())
			coalescer.write(buf[:n])
		}
		if err != nil {
			// A PTY master reports EIO once the child side closes.
			return
		}
	}
}

func (m *Manager) handleLine(p *managedProcess, stream Stream, line string) {
	if p.killed.Load() {
		return
	}

	if stream == StreamStderr || p.parser == nil {
		if strings.TrimSpace(line) == "" {
			return
		}
		m.publish(p, Event{Type: EventData, Data: line, Stream: stream})
		m.detectLineError(p, line)
		return
	}

	m.detectLineError(p, line)
	if !p.info.IsStreamJSONMode {
		m.handleTextLine(p, stream, line)
		return
	}

	ev := p.parser.ParseLine(line)
	if ev == nil {
		if strings.TrimSpace(line) != "" && !strings.HasPrefix(strings.TrimSpace(line), "{") {
			m.publish(p, Event{Type: EventData, Data: line, Stream: stream})
		}
		return
	}

	if id := p.parser.ExtractSessionID(ev); id != "" {
		m.emitSessionID(p, id)
	}
	if usage := p.parser.ExtractUsage(ev); usage != nil {
		m.publish(p, Event{Type: EventUsage, Usage: usage})
	}
	if cmds := p.parser.ExtractSlashCommands(ev); len(cmds) > 0 {
		m.publish(p, Event{Type: EventSlashCommands, SlashCommands: cmds})
	}

	switch {
	case ev.Type == agent.EventText && ev.Text != "":
		p.assistantText = true
		m.publish(p, Event{Type: EventData, Data: ev.Text, Stream: stream, Parsed: ev})
	case p.parser.IsResultMessage(ev) && ev.Text != "" && !p.assistantText:
		// Agents that only report the final answer in their result record.
		m.publish(p, Event{Type: EventData, Data: ev.Text, Stream: stream, Parsed: ev})
	}
}

// handleTextLine forwards a stdout line of a process that is not in
// stream-json mode verbatim, blank lines included. The parsed event is
// attached only when the parser reads the line back as the same text.
func (m *Manager) handleTextLine(p *managedProcess, stream Stream, line string) {
	out := Event{Type: EventData, Data: line, Stream: stream}
	if strings.TrimSpace(line) != "" {
		if ev := p.parser.ParseLine(line); ev != nil && ev.Type == agent.EventText && ev.Text == line {
			out.Parsed = ev
		}
	}
	m.publish(p, out)
}

func (m *Manager) detectLineError(p *managedProcess, line string) {
	if p.parser == nil {
		return
	}
	if agentErr := p.parser.DetectErrorFromLine(line); agentErr != nil {
		m.emitError(p, agentErr)
	}
}

func (m *Manager) wait(p *managedProcess, readers *sync.WaitGroup) {
	readers.Wait()

	var err error
	if p.pty != nil {
		err = waitPTY(p.cmd)
		_ = p.pty.Close()
	} else {
		err = p.cmd.Wait()
	}
	code := exitCodeOf(err)
	p.closeStdin()

	killed := p.killed.Load()
	if !killed && p.parser != nil {
		if agentErr := p.parser.DetectErrorFromExit(code, p.stderr.String(), p.stdout.String()); agentErr != nil {
			m.emitError(p, agentErr)
		}
	}

	_, span := m.tracer.Start(context.Background(), "process.exit", trace.WithAttributes(
		attribute.String("session.id", p.info.SessionID),
		attribute.Int("process.exit_code", code),
		attribute.Bool("process.killed", killed),
	))
	span.End()

	p.logger.Info("process exited", zap.Int("exit_code", code), zap.Bool("killed", killed))
	m.publish(p, Event{Type: EventExit, ExitCode: &code})
	m.deregister(p)
	close(p.done)
}

func (m *Manager) emitError(p *managedProcess, agentErr *agent.AgentError) {
	if !p.claimError() {
		return
	}
	if agentErr.AgentID == "" {
		agentErr.AgentID = p.info.ToolType
	}
	p.logger.Warn("agent error detected",
		zap.String("error_type", string(agentErr.Type)),
		zap.String("message", agentErr.Message),
		zap.Bool("recoverable", agentErr.Recoverable),
	)
	m.publish(p, Event{Type: EventError, Error: agentErr})
}

func (m *Manager) emitSessionID(p *managedProcess, id string) {
	if !p.claimSessionID(id) {
		return
	}
	m.publish(p, Event{Type: EventSessionID, AgentSessionID: id})
}

func (m *Manager) publish(p *managedProcess, ev Event) {
	ev.SessionID = p.info.SessionID
	ev.ProcessID = p.info.ProcessID
	ev.Timestamp = m.now()
	m.emitter.Publish(ev)
}

// deregister removes p unless the session id has been reused since.
func (m *Manager) deregister(p *managedProcess) {
	m.mu.Lock()
	if m.processes[p.info.SessionID] == p {
		delete(m.processes, p.info.SessionID)
	}
	m.mu.Unlock()
}

// Kill stops the session's process. It returns immediately: the registry
// entry is removed at once, the process group gets SIGTERM, and SIGKILL
// follows after the grace period if it is still alive. Unknown or already
// killed sessions are a no-op.
func (m *Manager) Kill(sessionID string) error {
	m.mu.Lock()
	p, ok := m.processes[sessionID]
	if ok {
		delete(m.processes, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return m.kill(p)
}

func (m *Manager) kill(p *managedProcess) error {
	if !p.killed.CompareAndSwap(false, true) {
		return nil
	}
	if !p.isStarted() {
		// Spawn signals it once the process is up.
		return nil
	}
	return m.signalKill(p)
}

func (m *Manager) signalKill(p *managedProcess) error {
	var err error
	p.killOnce.Do(func() {
		pid := p.pid()
		if pid <= 0 {
			return
		}
		p.logger.Info("killing process", zap.Int("pid", pid))

		err = terminateGroup(pid)
		if p.pty != nil {
			// Closing the master hangs up the terminal's foreground job.
			_ = p.pty.Close()
		}
		go func() {
			timer := time.NewTimer(m.cfg.KillGracePeriod)
			defer timer.Stop()
			select {
			case <-p.done:
			case <-timer.C:
				if err := killGroup(pid); err != nil {
					p.logger.Debug("force kill failed", zap.Error(err))
				}
			}
		}()
		if err != nil && p.exited() {
			err = nil
		}
	})
	if err != nil {
		return fmt.Errorf("terminate %s: %w", p.info.SessionID, err)
	}
	return nil
}

// KillAll kills every tracked process in parallel and waits until they have
// exited or ctx is done.
func (m *Manager) KillAll(ctx context.Context) error {
	m.mu.Lock()
	procs := make([]*managedProcess, 0, len(m.processes))
	for id, p := range m.processes {
		procs = append(procs, p)
		delete(m.processes, id)
	}
	m.mu.Unlock()

	var g errgroup.Group
	for _, p := range procs {
		g.Go(func() error {
			killErr := m.kill(p)
			select {
			case <-p.done:
				return killErr
			case <-ctx.Done():
				return errors.Join(killErr, fmt.Errorf("wait for %s: %w", p.info.SessionID, ctx.Err()))
			}
		})
	}
	return g.Wait()
}

// Write sends data to the session's stdin (or terminal input).
func (m *Manager) Write(sessionID string, data []byte) error {
	p, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	if p.pty != nil {
		_, err = p.pty.Write(data)
		return err
	}
	p.stdinMu.Lock()
	defer p.stdinMu.Unlock()
	if p.stdin == nil {
		return fmt.Errorf("stdin of %s is closed", sessionID)
	}
	_, err = p.stdin.Write(data)
	return err
}

// Interrupt sends Ctrl-C to a terminal or SIGINT to a piped process group.
func (m *Manager) Interrupt(sessionID string) error {
	p, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	if p.pty != nil {
		_, err = p.pty.Write([]byte{0x03})
		return err
	}
	return interruptGroup(p.pid())
}

// Resize changes a terminal session's size.
func (m *Manager) Resize(sessionID string, cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return fmt.Errorf("invalid terminal size %dx%d", cols, rows)
	}
	p, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	if p.pty == nil {
		return ErrNotTerminal
	}
	if err := p.pty.Resize(uint16(cols), uint16(rows)); err != nil {
		return err
	}
	p.screen.resize(cols, rows)
	return nil
}

// Screen returns the visible lines of a terminal session.
func (m *Manager) Screen(sessionID string) ([]string, error) {
	p, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	if p.screen == nil {
		return nil, ErrNotTerminal
	}
	return p.screen.lines(), nil
}

// Get returns a snapshot of the session's process.
func (m *Manager) Get(sessionID string) (*Info, bool) {
	p, err := m.lookup(sessionID)
	if err != nil {
		return nil, false
	}
	info := p.snapshot()
	return &info, true
}

// List returns snapshots of all tracked processes, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	out := make([]Info, 0, len(m.processes))
	for _, p := range m.processes {
		out = append(out, p.snapshot())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

func (m *Manager) lookup(sessionID string) (*managedProcess, error) {
	m.mu.RLock()
	p, ok := m.processes[sessionID]
	m.mu.RUnlock()
	if !ok || !p.isStarted() {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return p, nil
}
