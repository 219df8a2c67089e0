package parsers

import (
	"encoding/json"

	"github.com/chr1syy/maestro/internal/agent/agents"
	"github.com/chr1syy/maestro/pkg/agent"
)

// codexEvent is one record of `codex exec --json`.
type codexEvent struct {
	Type     string          `json:"type"`
	ThreadID string          `json:"thread_id,omitempty"`
	Item     *codexItem      `json:"item,omitempty"`
	Usage    *codexUsage     `json:"usage,omitempty"`
	Error    json.RawMessage `json:"error,omitempty"`
	Message  string          `json:"message,omitempty"`
}

type codexItem struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type codexUsage struct {
	InputTokens       int64 `json:"input_tokens"`
	CachedInputTokens int64 `json:"cached_input_tokens"`
	OutputTokens      int64 `json:"output_tokens"`
}

func (e *codexEvent) errorText() string {
	switch e.Type {
	case "turn.failed":
		if msg := jsonErrorMessage(e.Error); msg != "" {
			return msg
		}
		return "turn failed"
	case "error":
		if e.Message != "" {
			return e.Message
		}
		if msg := jsonErrorMessage(e.Error); msg != "" {
			return msg
		}
		return "error"
	}
	return ""
}

func parseCodexLine(line string) *agent.ParsedEvent {
	var ev codexEvent
	if !decodeJSONLine(line, &ev) {
		return nil
	}
	raw := rawLine(line)

	switch ev.Type {
	case "thread.started":
		return &agent.ParsedEvent{Type: agent.EventInit, SessionID: ev.ThreadID, Raw: raw}

	case "item.completed", "item.started", "item.updated":
		if ev.Item == nil {
			break
		}
		switch ev.Item.Type {
		case "agent_message":
			if ev.Type != "item.completed" || ev.Item.Text == "" {
				break
			}
			return &agent.ParsedEvent{Type: agent.EventText, Text: ev.Item.Text, Raw: raw}
		case "command_execution", "file_change", "mcp_tool_call", "web_search":
			if ev.Type == "item.started" {
				return &agent.ParsedEvent{Type: agent.EventToolUse, ToolName: ev.Item.Type, Raw: raw}
			}
		}

	case "turn.completed":
		out := &agent.ParsedEvent{Type: agent.EventResult, Raw: raw}
		if ev.Usage != nil {
			out.Usage = &agent.Usage{
				InputTokens:     ev.Usage.InputTokens,
				OutputTokens:    ev.Usage.OutputTokens,
				CacheReadTokens: ev.Usage.CachedInputTokens,
			}
		}
		return out

	case "turn.failed", "error":
		return &agent.ParsedEvent{Type: agent.EventError, Text: ev.errorText(), Raw: raw}
	}

	return &agent.ParsedEvent{Type: agent.EventSystem, Raw: raw}
}

func newCodexParser() *Parser {
	id := agents.IDCodex
	return &Parser{
		AgentID:       id,
		ParseLineFunc: parseCodexLine,
		IsResultMessageFunc: func(ev *agent.ParsedEvent) bool {
			return ev.Type == agent.EventResult
		},
		ExtractSessionIDFunc: func(ev *agent.ParsedEvent) string {
			if ev.Type != agent.EventInit {
				return ""
			}
			return ev.SessionID
		},
		ExtractUsageFunc: func(ev *agent.ParsedEvent) *agent.Usage {
			return ev.Usage
		},
		DetectErrorFromLineFunc: withStructuredLineErrors(id, func(line string) (string, bool) {
			var ev codexEvent
			if !decodeJSONLine(line, &ev) {
				return "", false
			}
			return ev.errorText(), true
		}),
		DetectErrorFromExitFunc: exitDetector(id),
	}
}
