package parsers

import (
	"encoding/json"

	"github.com/chr1syy/maestro/internal/agent/agents"
	"github.com/chr1syy/maestro/pkg/agent"
)

// opencodeEvent is one record of `opencode run --format json`.
type opencodeEvent struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionID,omitempty"`
	Part      *opencodePart   `json:"part,omitempty"`
	Error     json.RawMessage `json:"error,omitempty"`
}

type opencodePart struct {
	Type   string          `json:"type"`
	Text   string          `json:"text,omitempty"`
	Tool   string          `json:"tool,omitempty"`
	Reason string          `json:"reason,omitempty"`
	Cost   float64         `json:"cost,omitempty"`
	Tokens *opencodeTokens `json:"tokens,omitempty"`
}

type opencodeTokens struct {
	Input     int64 `json:"input"`
	Output    int64 `json:"output"`
	Reasoning int64 `json:"reasoning"`
	Cache     struct {
		Read  int64 `json:"read"`
		Write int64 `json:"write"`
	} `json:"cache"`
}

func (p *opencodePart) usage() *agent.Usage {
	if p == nil || (p.Tokens == nil && p.Cost == 0) {
		return nil
	}
	u := &agent.Usage{TotalCostUSD: p.Cost}
	if p.Tokens != nil {
		u.InputTokens = p.Tokens.Input
		u.OutputTokens = p.Tokens.Output + p.Tokens.Reasoning
		u.CacheReadTokens = p.Tokens.Cache.Read
		u.CacheCreationTokens = p.Tokens.Cache.Write
	}
	return u
}

func parseOpenCodeLine(line string) *agent.ParsedEvent {
	var ev opencodeEvent
	if !decodeJSONLine(line, &ev) {
		return nil
	}
	raw := rawLine(line)

	switch ev.Type {
	case "step_start":
		return &agent.ParsedEvent{Type: agent.EventInit, SessionID: ev.SessionID, Raw: raw}

	case "text":
		if ev.Part == nil || ev.Part.Text == "" {
			break
		}
		return &agent.ParsedEvent{Type: agent.EventText, Text: ev.Part.Text, SessionID: ev.SessionID, Raw: raw}

	case "tool_use":
		tool := ""
		if ev.Part != nil {
			tool = ev.Part.Tool
		}
		return &agent.ParsedEvent{Type: agent.EventToolUse, ToolName: tool, SessionID: ev.SessionID, Raw: raw}

	case "step_finish":
		// A step that ends in tool calls is followed by another step; only
		// the final one marks completion.
		t := agent.EventResult
		if ev.Part != nil && ev.Part.Reason == "tool-calls" {
			t = agent.EventUsage
		}
		return &agent.ParsedEvent{Type: t, SessionID: ev.SessionID, Usage: ev.Part.usage(), Raw: raw}

	case "error":
		return &agent.ParsedEvent{Type: agent.EventError, Text: jsonErrorMessage(ev.Error), SessionID: ev.SessionID, Raw: raw}
	}

	return &agent.ParsedEvent{Type: agent.EventSystem, SessionID: ev.SessionID, Raw: raw}
}

func newOpenCodeParser() *Parser {
	id := agents.IDOpenCode
	return &Parser{
		AgentID:       id,
		ParseLineFunc: parseOpenCodeLine,
		IsResultMessageFunc: func(ev *agent.ParsedEvent) bool {
			return ev.Type == agent.EventResult
		},
		ExtractSessionIDFunc: func(ev *agent.ParsedEvent) string {
			return ev.SessionID
		},
		ExtractUsageFunc: func(ev *agent.ParsedEvent) *agent.Usage {
			return ev.Usage
		},
		DetectErrorFromLineFunc: withStructuredLineErrors(id, func(line string) (string, bool) {
			var ev opencodeEvent
			if !decodeJSONLine(line, &ev) {
				return "", false
			}
			if ev.Type != "error" {
				return "", true
			}
			if msg := jsonErrorMessage(ev.Error); msg != "" {
				return msg, true
			}
			return "error", true
		}),
		DetectErrorFromExitFunc: exitDetector(id),
	}
}
