// Package agent provides the value types shared between output parsers,
// the process manager and its subscribers.
package agent

import "encoding/json"

// EventType discriminates ParsedEvent.
type EventType string

const (
	// EventText carries assistant-visible text.
	EventText EventType = "text"
	// EventUsage carries token/cost counters.
	EventUsage EventType = "usage"
	// EventResult is the agent-native completion marker.
	EventResult EventType = "result"
	// EventInit announces session identity and capabilities.
	EventInit EventType = "init"
	// EventToolUse reports a tool invocation by the agent.
	EventToolUse EventType = "tool_use"
	// EventError is an in-band error record.
	EventError EventType = "error"
	// EventSystem is any other structured system message.
	EventSystem EventType = "system"
)

// Usage holds token and cost counters reported by an agent.
type Usage struct {
	InputTokens         int64   `json:"input_tokens"`
	OutputTokens        int64   `json:"output_tokens"`
	CacheReadTokens     int64   `json:"cache_read_tokens,omitempty"`
	CacheCreationTokens int64   `json:"cache_creation_tokens,omitempty"`
	TotalCostUSD        float64 `json:"total_cost_usd,omitempty"`
	ContextWindow       int64   `json:"context_window,omitempty"`
}

// ParsedEvent is one typed event decoded from a line of agent output.
// It is never mutated after a parser returns it.
type ParsedEvent struct {
	Type          EventType       `json:"type"`
	Text          string          `json:"text,omitempty"`
	SessionID     string          `json:"session_id,omitempty"`
	Usage         *Usage          `json:"usage,omitempty"`
	SlashCommands []string        `json:"slash_commands,omitempty"`
	ToolName      string          `json:"tool_name,omitempty"`
	IsPartial     bool            `json:"is_partial,omitempty"`
	Raw           json.RawMessage `json:"raw,omitempty"`
}
