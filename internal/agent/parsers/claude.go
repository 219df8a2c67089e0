package parsers

import (
	"encoding/json"
	"strings"

	"github.com/chr1syy/maestro/internal/agent/agents"
	"github.com/chr1syy/maestro/pkg/agent"
)

// claudeMessage is one record of `claude --output-format stream-json`.
type claudeMessage struct {
	Type          string                      `json:"type"`
	Subtype       string                      `json:"subtype,omitempty"`
	SessionID     string                      `json:"session_id,omitempty"`
	SlashCommands []string                    `json:"slash_commands,omitempty"`
	Message       *claudeAssistantMessage     `json:"message,omitempty"`
	Result        json.RawMessage             `json:"result,omitempty"`
	IsError       bool                        `json:"is_error,omitempty"`
	TotalCostUSD  float64                     `json:"total_cost_usd,omitempty"`
	Usage         *claudeUsage                `json:"usage,omitempty"`
	ModelUsage    map[string]claudeModelUsage `json:"modelUsage,omitempty"`
	Error         json.RawMessage             `json:"error,omitempty"`
}

type claudeAssistantMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type claudeContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Name string `json:"name,omitempty"`
}

type claudeUsage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens,omitempty"`
}

type claudeModelUsage struct {
	ContextWindow int64 `json:"contextWindow"`
}

// contentBlocks returns the message content as blocks. Content may also be a
// bare string.
func (m *claudeAssistantMessage) contentBlocks() []claudeContentBlock {
	if m == nil || len(m.Content) == 0 {
		return nil
	}
	var blocks []claudeContentBlock
	if json.Unmarshal(m.Content, &blocks) == nil {
		return blocks
	}
	var s string
	if json.Unmarshal(m.Content, &s) == nil && s != "" {
		return []claudeContentBlock{{Type: "text", Text: s}}
	}
	return nil
}

func (m *claudeMessage) resultText() string {
	if len(m.Result) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(m.Result, &s) == nil {
		return s
	}
	var obj struct {
		Text string `json:"text"`
	}
	if json.Unmarshal(m.Result, &obj) == nil {
		return obj.Text
	}
	return ""
}

func (m *claudeMessage) usage() *agent.Usage {
	if m.Usage == nil && m.TotalCostUSD == 0 {
		return nil
	}
	u := &agent.Usage{TotalCostUSD: m.TotalCostUSD}
	if m.Usage != nil {
		u.InputTokens = m.Usage.InputTokens
		u.OutputTokens = m.Usage.OutputTokens
		u.CacheReadTokens = m.Usage.CacheReadInputTokens
		u.CacheCreationTokens = m.Usage.CacheCreationInputTokens
	}
	for _, mu := range m.ModelUsage {
		if mu.ContextWindow > u.ContextWindow {
			u.ContextWindow = mu.ContextWindow
		}
	}
	return u
}

// errorText returns the failure message of an error record, or "".
func (m *claudeMessage) errorText() string {
	switch m.Type {
	case "result":
		if !m.IsError {
			return ""
		}
		if text := m.resultText(); text != "" {
			return text
		}
		if m.Subtype != "" {
			return m.Subtype
		}
		return "result reported an error"
	case "error":
		if msg := jsonErrorMessage(m.Error); msg != "" {
			return msg
		}
		return "error"
	}
	return ""
}

func parseClaudeLine(line string) *agent.ParsedEvent {
	var msg claudeMessage
	if !decodeJSONLine(line, &msg) {
		return nil
	}
	raw := rawLine(line)

	switch msg.Type {
	case "system":
		if msg.Subtype == "init" {
			return &agent.ParsedEvent{
				Type:          agent.EventInit,
				SessionID:     msg.SessionID,
				SlashCommands: msg.SlashCommands,
				Raw:           raw,
			}
		}
		return &agent.ParsedEvent{Type: agent.EventSystem, SessionID: msg.SessionID, Raw: raw}

	case "assistant":
		var text []string
		var tool string
		for _, block := range msg.Message.contentBlocks() {
			switch block.Type {
			case "text":
				if block.Text != "" {
					text = append(text, block.Text)
				}
			case "tool_use":
				if tool == "" {
					tool = block.Name
				}
			}
		}
		if len(text) > 0 {
			return &agent.ParsedEvent{
				Type:      agent.EventText,
				Text:      strings.Join(text, ""),
				SessionID: msg.SessionID,
				Raw:       raw,
			}
		}
		if tool != "" {
			return &agent.ParsedEvent{Type: agent.EventToolUse, ToolName: tool, SessionID: msg.SessionID, Raw: raw}
		}
		return &agent.ParsedEvent{Type: agent.EventSystem, SessionID: msg.SessionID, Raw: raw}

	case "result":
		return &agent.ParsedEvent{
			Type:      agent.EventResult,
			Text:      msg.resultText(),
			SessionID: msg.SessionID,
			Usage:     msg.usage(),
			Raw:       raw,
		}

	case "error":
		return &agent.ParsedEvent{Type: agent.EventError, Text: msg.errorText(), SessionID: msg.SessionID, Raw: raw}
	}

	return &agent.ParsedEvent{Type: agent.EventSystem, SessionID: msg.SessionID, Raw: raw}
}

func newClaudeParser() *Parser {
	id := agents.IDClaudeCode
	return &Parser{
		AgentID:       id,
		ParseLineFunc: parseClaudeLine,
		IsResultMessageFunc: func(ev *agent.ParsedEvent) bool {
			return ev.Type == agent.EventResult
		},
		ExtractSessionIDFunc: func(ev *agent.ParsedEvent) string {
			return ev.SessionID
		},
		ExtractUsageFunc: func(ev *agent.ParsedEvent) *agent.Usage {
			if ev.Type != agent.EventResult {
				return nil
			}
			return ev.Usage
		},
		ExtractSlashCommandsFunc: func(ev *agent.ParsedEvent) []string {
			if ev.Type != agent.EventInit {
				return nil
			}
			return ev.SlashCommands
		},
		DetectErrorFromLineFunc: withStructuredLineErrors(id, func(line string) (string, bool) {
			var msg claudeMessage
			if !decodeJSONLine(line, &msg) {
				return "", false
			}
			return msg.errorText(), true
		}),
		DetectErrorFromExitFunc: exitDetector(id),
	}
}
