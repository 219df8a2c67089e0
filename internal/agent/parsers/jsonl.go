package parsers

import (
	"encoding/json"
	"strings"

	"github.com/chr1syy/maestro/internal/common/stringutil"
	"github.com/chr1syy/maestro/pkg/agent"
)

const maxErrorMessageRunes = 500

// decodeJSONLine unmarshals one JSON-lines record. Blank lines and lines that
// are not JSON objects report false.
func decodeJSONLine(line string, v any) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || trimmed[0] != '{' {
		return false
	}
	return json.Unmarshal([]byte(trimmed), v) == nil
}

// rawLine returns the line as a RawMessage when it is valid JSON.
func rawLine(line string) json.RawMessage {
	trimmed := strings.TrimSpace(line)
	if !json.Valid([]byte(trimmed)) {
		return nil
	}
	return json.RawMessage(trimmed)
}

// structuredError classifies an error message an agent reported in-band.
// Unrecognised messages are still failures and surface as agent_crashed.
func structuredError(agentID, message, line string) *agent.AgentError {
	raw := &agent.ErrorContext{ErrorLine: line}
	if m := matchText(agentID, message); m != nil {
		return newAgentError(agentID, m, raw)
	}
	return &agent.AgentError{
		Type:        agent.ErrorAgentCrashed,
		Message:     stringutil.TruncateStringWithEllipsis(message, maxErrorMessageRunes),
		Recoverable: true,
		AgentID:     agentID,
		Timestamp:   now(),
		Raw:         raw,
	}
}

// jsonErrorMessage extracts a message from an error field that may be a
// plain string or an object with a message (optionally nested under data).
func jsonErrorMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Name    string `json:"name"`
		Message string `json:"message"`
		Data    struct {
			Message string `json:"message"`
		} `json:"data"`
	}
	if json.Unmarshal(raw, &obj) != nil {
		return ""
	}
	msg := obj.Message
	if msg == "" {
		msg = obj.Data.Message
	}
	switch {
	case obj.Name != "" && msg != "":
		return obj.Name + ": " + msg
	case msg != "":
		return msg
	default:
		return obj.Name
	}
}

// withStructuredLineErrors wraps decode so that JSON records are only
// classified when decode extracts an error message, while non-JSON lines
// fall through to the plain-text pattern table.
func withStructuredLineErrors(agentID string, decode func(line string) (msg string, isJSON bool)) func(string) *agent.AgentError {
	plain := lineDetector(agentID)
	return func(line string) *agent.AgentError {
		if strings.TrimSpace(line) == "" {
			return nil
		}
		msg, isJSON := decode(line)
		if !isJSON {
			return plain(line)
		}
		if msg == "" {
			return nil
		}
		return structuredError(agentID, msg, line)
	}
}
