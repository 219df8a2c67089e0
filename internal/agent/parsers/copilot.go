package parsers

import (
	"strings"

	"github.com/chr1syy/maestro/internal/agent/agents"
	"github.com/chr1syy/maestro/pkg/agent"
)

// Copilot CLI in batch mode (-p ... --silent) prints plain text only: no
// session id, usage or completion marker. Completion is signalled by exit.
func newCopilotParser() *Parser {
	id := agents.IDCopilotCLI
	return &Parser{
		AgentID: id,
		ParseLineFunc: func(line string) *agent.ParsedEvent {
			if strings.TrimSpace(line) == "" {
				return nil
			}
			return &agent.ParsedEvent{Type: agent.EventText, Text: line}
		},
		DetectErrorFromLineFunc: lineDetector(id),
		DetectErrorFromExitFunc: exitDetector(id),
	}
}
