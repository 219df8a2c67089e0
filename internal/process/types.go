package process

import (
	"errors"
	"time"

	"github.com/chr1syy/maestro/pkg/agent"
)

var (
	// ErrSessionExists is returned by Spawn when a live process already owns the session id.
	ErrSessionExists = errors.New("session already has a running process")
	// ErrSessionNotFound is returned by operations addressing an unknown session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNotTerminal is returned by terminal-only operations on piped processes.
	ErrNotTerminal = errors.New("session is not a terminal")
	// ErrRemoteCommand is returned by Spawn when a config names an SSH remote
	// but its command is not an ssh invocation.
	ErrRemoteCommand = errors.New("ssh remote set but command is not ssh")
)

// Stream identifies the output stream a chunk came from.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// Config is the intent of one spawn.
type Config struct {
	SessionID string `json:"session_id"`
	// ToolType is the agent id; it selects the output parser.
	ToolType string   `json:"tool_type"`
	Cwd      string   `json:"cwd"`
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	// Prompt switches the process into batch mode.
	Prompt string `json:"prompt,omitempty"`
	// SendPromptViaStdin frames the prompt as a stream-json user message on stdin.
	SendPromptViaStdin bool `json:"send_prompt_via_stdin,omitempty"`
	// SendPromptViaStdinRaw writes the prompt to stdin verbatim.
	SendPromptViaStdinRaw bool   `json:"send_prompt_via_stdin_raw,omitempty"`
	SSHRemoteID           string `json:"ssh_remote_id,omitempty"`
	SSHRemoteHost         string `json:"ssh_remote_host,omitempty"`
	// SSHStdinScript is written to stdin before any prompt.
	SSHStdinScript string `json:"ssh_stdin_script,omitempty"`
	// Images are data URLs attached to a stream-json prompt.
	Images    []string          `json:"images,omitempty"`
	CustomEnv map[string]string `json:"custom_env,omitempty"`
	Cols      int               `json:"cols,omitempty"`
	Rows      int               `json:"rows,omitempty"`
}

// Info is a point-in-time snapshot of a managed process.
type Info struct {
	SessionID        string    `json:"session_id"`
	ProcessID        string    `json:"process_id"`
	ToolType         string    `json:"tool_type"`
	PID              int       `json:"pid"`
	Command          string    `json:"command"`
	Args             []string  `json:"args"`
	Cwd              string    `json:"cwd"`
	IsTerminal       bool      `json:"is_terminal"`
	IsStreamJSONMode bool      `json:"is_stream_json_mode"`
	IsBatchMode      bool      `json:"is_batch_mode"`
	SSHRemoteID      string    `json:"ssh_remote_id,omitempty"`
	SSHRemoteHost    string    `json:"ssh_remote_host,omitempty"`
	AgentSessionID   string    `json:"agent_session_id,omitempty"`
	StartTime        time.Time `json:"start_time"`
	LastActivity     time.Time `json:"last_activity"`
}

// EventType names a process lifecycle event.
type EventType string

const (
	EventData          EventType = "data"
	EventSessionID     EventType = "session-id"
	EventUsage         EventType = "usage"
	EventSlashCommands EventType = "slash-commands"
	EventError         EventType = "error"
	EventExit          EventType = "exit"
)

// Event is one notification published by the Manager. Only the fields
// relevant to Type are set.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	ProcessID string    `json:"process_id"`
	Timestamp time.Time `json:"timestamp"`

	Data   string             `json:"data,omitempty"`
	Stream Stream             `json:"stream,omitempty"`
	Parsed *agent.ParsedEvent `json:"parsed,omitempty"`

	AgentSessionID string            `json:"agent_session_id,omitempty"`
	Usage          *agent.Usage      `json:"usage,omitempty"`
	SlashCommands  []string          `json:"slash_commands,omitempty"`
	Error          *agent.AgentError `json:"error,omitempty"`
	ExitCode       *int              `json:"exit_code,omitempty"`
}
