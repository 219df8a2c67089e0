package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chr1syy/maestro/internal/agent/args"
	"github.com/chr1syy/maestro/internal/common/logger"
	"github.com/chr1syy/maestro/internal/events"
	"github.com/chr1syy/maestro/internal/events/bus"
	"github.com/chr1syy/maestro/internal/process"
	"github.com/chr1syy/maestro/internal/settings/store"
	"github.com/chr1syy/maestro/internal/tabnaming"
)

type fakeManager struct {
	mu       sync.Mutex
	procs    map[string]process.Info
	writes   map[string]string
	spawnErr error
	last     process.Config
}

func newFakeManager() *fakeManager {
	return &fakeManager{procs: map[string]process.Info{}, writes: map[string]string{}}
}

func (f *fakeManager) Spawn(_ context.Context, cfg process.Config) (*process.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.spawnErr != nil {
		return nil, f.spawnErr
	}
	if _, ok := f.procs[cfg.SessionID]; ok {
		return nil, process.ErrSessionExists
	}
	info := process.Info{SessionID: cfg.SessionID, ToolType: cfg.ToolType, Command: cfg.Command, PID: 42}
	f.procs[cfg.SessionID] = info
	f.last = cfg
	return &info, nil
}

func (f *fakeManager) Kill(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.procs, id)
	return nil
}

func (f *fakeManager) KillAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.procs = map[string]process.Info{}
	return nil
}

func (f *fakeManager) List() []process.Info {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]process.Info, 0, len(f.procs))
	for _, p := range f.procs {
		out = append(out, p)
	}
	return out
}

func (f *fakeManager) Get(id string) (*process.Info, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.procs[id]
	return &p, ok
}

func (f *fakeManager) Write(id string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.procs[id]; !ok {
		return fmt.Errorf("%w: %s", process.ErrSessionNotFound, id)
	}
	f.writes[id] += string(data)
	return nil
}

func (f *fakeManager) Interrupt(id string) error { return f.Write(id, []byte{0x03}) }

func (f *fakeManager) Resize(id string, _, _ int) error {
	if _, ok := f.Get(id); !ok {
		return process.ErrSessionNotFound
	}
	return process.ErrNotTerminal
}

func (f *fakeManager) Screen(id string) ([]string, error) {
	if _, ok := f.Get(id); !ok {
		return nil, process.ErrSessionNotFound
	}
	return []string{"$ ls"}, nil
}

type fakeNamer struct{ name string }

func (f fakeNamer) GenerateTabName(context.Context, tabnaming.Request) (string, bool) {
	return f.name, f.name != ""
}

type testEnv struct {
	router  *gin.Engine
	manager *fakeManager
	bus     *bus.MemoryEventBus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	b := bus.NewMemoryEventBus(logger.NewNop())
	t.Cleanup(b.Close)
	m := newFakeManager()
	router := NewRouter(Deps{
		Manager:       m,
		Bus:           b,
		SubjectPrefix: "test",
		Settings:      store.NewMemoryRepository(),
		TabNamer:      fakeNamer{name: "Fix Flaky Test"},
		Logger:        logger.NewNop(),
	})
	return &testEnv{router: router, manager: m, bus: b}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"event_bus":true`)
}

func TestProcessLifecycleRoutes(t *testing.T) {
	env := newTestEnv(t)
	spawn := map[string]any{"session_id": "s1", "tool_type": "codex", "command": "codex"}

	rec := env.do(t, http.MethodPost, "/api/v1/processes", spawn)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var info process.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "s1", info.SessionID)

	rec = env.do(t, http.MethodPost, "/api/v1/processes", spawn)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/processes", map[string]any{"session_id": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/processes/s1/write", map[string]string{"data": "hi\n"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "hi\n", env.manager.writes["s1"])

	rec = env.do(t, http.MethodPost, "/api/v1/processes/nope/write", map[string]string{"data": "hi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/processes/s1/resize", map[string]int{"cols": 80, "rows": 24})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/processes/s1/resize", map[string]int{"cols": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/processes/s1/screen", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"lines":["$ ls"]}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/v1/processes", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"session_id":"s1"`)

	rec = env.do(t, http.MethodDelete, "/api/v1/processes/s1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/v1/processes/s1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/processes/s1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/processes/kill-all", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSpawnFailureIsReported(t *testing.T) {
	env := newTestEnv(t)
	env.manager.spawnErr = fmt.Errorf("spawn s2: exec: \"nope\": executable file not found in $PATH")
	rec := env.do(t, http.MethodPost, "/api/v1/processes", map[string]any{"session_id": "s2", "command": "nope"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "executable file not found")
}

func TestArgsRouteAppliesStoredConfig(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPut, "/api/v1/agents/claude-code/config", args.AgentConfig{
		Model: "anthropic/claude-opus", CustomArgs: "--add-dir /tmp", CustomPath: "/opt/claude",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/args", map[string]any{
		"agent_id": "claude-code", "prompt": "hello", "read_only_mode": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Command     string   `json:"command"`
		Args        []string `json:"args"`
		ModelSource string   `json:"model_source"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "/opt/claude", resp.Command)
	assert.Equal(t, "agent-config", resp.ModelSource)
	assert.Contains(t, resp.Args, "--model=anthropic/claude-opus")
	assert.Contains(t, resp.Args, "--add-dir")
	assert.Equal(t, "hello", resp.Args[len(resp.Args)-1])

	rec = env.do(t, http.MethodPost, "/api/v1/args", map[string]any{"agent_id": "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/agents", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"opencode"`)
}

func putDevRemote(t *testing.T, env *testEnv) {
	t.Helper()
	rec := env.do(t, http.MethodPut, "/api/v1/ssh-remotes/dev", map[string]any{
		"host": "dev.example.com", "username": "me", "enabled": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestAgentSpawnRouteWrapsSSH(t *testing.T) {
	env := newTestEnv(t)
	putDevRemote(t, env)

	rec := env.do(t, http.MethodPost, "/api/v1/processes/agent", map[string]any{
		"agent_id":   "claude-code",
		"session_id": "a1",
		"prompt":     "fix the build",
		"model":      "sonnet",
		"resume":     "abc",
		"ssh_remote_config": map[string]any{
			"enabled": true, "remote_id": "dev", "working_dir_override": "/srv/app",
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	cfg := env.manager.last
	assert.Equal(t, "a1", cfg.SessionID)
	assert.Equal(t, "ssh", cfg.Command)
	assert.Equal(t, "dev", cfg.SSHRemoteID)
	assert.Contains(t, cfg.Args, "me@dev.example.com")
	assert.Equal(t, "/bin/bash", cfg.Args[len(cfg.Args)-1])
	assert.True(t, cfg.SendPromptViaStdin)
	assert.Contains(t, cfg.SSHStdinScript, "cd /srv/app")
	assert.Contains(t, cfg.SSHStdinScript, "--input-format stream-json")
	assert.Contains(t, cfg.SSHStdinScript, "--resume abc")
	assert.NotContains(t, cfg.SSHStdinScript, "fix the build")
}

func TestAgentSpawnRouteLocal(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/processes/agent", map[string]any{
		"agent_id": "codex", "prompt": "hi", "cwd": t.TempDir(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cfg := env.manager.last
	assert.NotEmpty(t, cfg.SessionID)
	assert.Equal(t, "codex", cfg.Command)
	assert.Empty(t, cfg.SSHRemoteID)
	assert.Equal(t, "hi", cfg.Args[len(cfg.Args)-1])

	rec = env.do(t, http.MethodPost, "/api/v1/processes/agent", map[string]any{"agent_id": "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/processes/agent", map[string]any{
		"agent_id": "codex", "ssh_remote_config": map[string]any{"enabled": true, "remote_id": "missing"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/processes/agent", map[string]any{"prompt": "hi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRawSpawnRejectsRemoteWithoutSSH(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/processes", map[string]any{
		"session_id": "r1", "command": "claude", "ssh_remote_id": "dev",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "not ssh")
	assert.Empty(t, env.manager.procs)

	rec = env.do(t, http.MethodPost, "/api/v1/processes", map[string]any{
		"session_id": "r2", "command": "/usr/bin/ssh", "ssh_remote_id": "dev",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestArgsRouteOverSSH(t *testing.T) {
	env := newTestEnv(t)
	putDevRemote(t, env)

	rec := env.do(t, http.MethodPost, "/api/v1/args", map[string]any{
		"agent_id": "claude-code", "prompt": "hello",
		"ssh_remote_config": map[string]any{"enabled": true, "remote_id": "dev"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Command        string   `json:"command"`
		Args           []string `json:"args"`
		SSHRemoteID    string   `json:"ssh_remote_id"`
		SSHStdinScript string   `json:"ssh_stdin_script"`
		PromptViaStdin bool     `json:"prompt_via_stdin"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ssh", resp.Command)
	assert.Equal(t, "dev", resp.SSHRemoteID)
	assert.True(t, resp.PromptViaStdin)
	assert.NotContains(t, resp.SSHStdinScript, "hello")

	rec = env.do(t, http.MethodPost, "/api/v1/args", map[string]any{
		"agent_id":          "claude-code",
		"ssh_remote_config": map[string]any{"enabled": true, "remote_id": "missing"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSSHRemoteRoutes(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPut, "/api/v1/ssh-remotes/dev", map[string]any{"host": "dev.example.com", "enabled": true})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/ssh-remotes/dev", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"host":"dev.example.com"`)

	rec = env.do(t, http.MethodPut, "/api/v1/ssh-remotes/bad", map[string]any{"enabled": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/ssh-remotes/dev", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/v1/ssh-remotes/dev", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTabNameRoute(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/tab-name", map[string]string{"user_message": "tests flake", "agent_type": "codex"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"tab_name":"Fix Flaky Test"}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/v1/tab-name", map[string]string{"agent_type": "codex"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventStream(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events?session_id=s1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	bridge := events.NewBridge(env.bus, "test", logger.NewNop())
	publish := func(ev process.Event) { bridge.Forward(context.Background(), ev) }

	// The subscription is registered during the upgrade, which may finish
	// after Dial returns; keep publishing until the first event arrives.
	got := make(chan bus.Event, 4)
	go func() {
		for {
			var e bus.Event
			if err := conn.ReadJSON(&e); err != nil {
				close(got)
				return
			}
			got <- e
		}
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		publish(process.Event{Type: process.EventData, SessionID: "other", Data: "skip"})
		publish(process.Event{Type: process.EventData, SessionID: "s1", Data: "hello"})
		select {
		case e, ok := <-got:
			require.True(t, ok)
			assert.Equal(t, events.ProcessData, e.Type)
			ev, err := events.DecodeProcessEvent(&e)
			require.NoError(t, err)
			assert.Equal(t, "s1", ev.SessionID)
			assert.Equal(t, "hello", ev.Data)
			return
		case <-tick.C:
		case <-deadline:
			t.Fatal("no event received")
		}
	}
}
