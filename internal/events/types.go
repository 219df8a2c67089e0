// Package events maps process manager events onto the event bus.
package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/chr1syy/maestro/internal/events/bus"
	"github.com/chr1syy/maestro/internal/process"
)

// DefaultSubjectPrefix is used when the configured prefix is empty.
const DefaultSubjectPrefix = "maestro"

// Event types carried in bus.Event.Type for process events.
const (
	ProcessData          = "process.data"
	ProcessSessionID     = "process.session_id"
	ProcessUsage         = "process.usage"
	ProcessSlashCommands = "process.slash_commands"
	ProcessError         = "process.error"
	ProcessExit          = "process.exit"
)

var processEventTypes = map[process.EventType]string{
	process.EventData:          ProcessData,
	process.EventSessionID:     ProcessSessionID,
	process.EventUsage:         ProcessUsage,
	process.EventSlashCommands: ProcessSlashCommands,
	process.EventError:         ProcessError,
	process.EventExit:          ProcessExit,
}

// BusEventType returns the bus event type for a process event type.
func BusEventType(t process.EventType) string {
	if s, ok := processEventTypes[t]; ok {
		return s
	}
	return "process." + string(t)
}

// ProcessSubject returns "<prefix>.process.<session>.<type>".
func ProcessSubject(prefix, sessionID string, t process.EventType) string {
	return fmt.Sprintf("%s.process.%s.%s", normalizePrefix(prefix), SanitizeToken(sessionID), SanitizeToken(string(t)))
}

// ProcessSessionWildcard matches every event of one session.
func ProcessSessionWildcard(prefix, sessionID string) string {
	return fmt.Sprintf("%s.process.%s.>", normalizePrefix(prefix), SanitizeToken(sessionID))
}

// ProcessWildcard matches every process event.
func ProcessWildcard(prefix string) string {
	return normalizePrefix(prefix) + ".process.>"
}

// SanitizeToken makes s usable as a single subject token.
func SanitizeToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		if r == '.' || r == '*' || r == '>' || unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, s)
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		return DefaultSubjectPrefix
	}
	return prefix
}

// DecodeProcessEvent recovers the process event carried by a bus event.
// Events that crossed NATS arrive with Data decoded as a generic map.
func DecodeProcessEvent(e *bus.Event) (process.Event, error) {
	switch v := e.Data.(type) {
	case process.Event:
		return v, nil
	case *process.Event:
		if v == nil {
			return process.Event{}, fmt.Errorf("event %s has no data", e.ID)
		}
		return *v, nil
	}
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return process.Event{}, fmt.Errorf("marshal event data: %w", err)
	}
	var ev process.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return process.Event{}, fmt.Errorf("decode process event: %w", err)
	}
	return ev, nil
}
