package parsers

import (
	"fmt"
	"strings"
	"time"

	"github.com/chr1syy/maestro/internal/agent/agents"
	"github.com/chr1syy/maestro/internal/agent/errpatterns"
	"github.com/chr1syy/maestro/pkg/agent"
)

var now = time.Now

func newAgentError(agentID string, m *errpatterns.Match, raw *agent.ErrorContext) *agent.AgentError {
	return &agent.AgentError{
		Type:        m.Type,
		Message:     m.Message,
		Recoverable: m.Recoverable,
		AgentID:     agentID,
		Timestamp:   now(),
		Raw:         raw,
	}
}

// matchText classifies text against agentID's table. The table is looked up
// per call so override files loaded at startup apply.
func matchText(agentID, text string) *errpatterns.Match {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return errpatterns.MatchPattern(errpatterns.ForAgent(agentID), text)
}

// lineDetector classifies a plain text line.
func lineDetector(agentID string) func(string) *agent.AgentError {
	return func(line string) *agent.AgentError {
		m := matchText(agentID, line)
		if m == nil {
			return nil
		}
		return newAgentError(agentID, m, &agent.ErrorContext{ErrorLine: line})
	}
}

// exitDetector implements the exit-time policy shared by every agent:
//   - exit 0 is success unless the agent reports false success and its
//     stderr carries a known failure phrase;
//   - a non-zero exit is classified from stderr then stdout, falling back
//     to agent_crashed with the exit code in the message.
func exitDetector(agentID string) func(int, string, string) *agent.AgentError {
	name := agentID
	var falseSuccess bool
	if def, ok := agents.Get(agentID); ok {
		name = def.Name
		falseSuccess = def.Capabilities.ReportsFalseSuccess
	}

	return func(exitCode int, stderr, stdout string) *agent.AgentError {
		code := exitCode
		raw := &agent.ErrorContext{ExitCode: &code, Stderr: stderr, Stdout: stdout}

		if exitCode == 0 {
			if !falseSuccess {
				return nil
			}
			if m := matchText(agentID, stderr); m != nil {
				return newAgentError(agentID, m, raw)
			}
			return nil
		}

		if m := matchText(agentID, stderr+"\n"+stdout); m != nil {
			return newAgentError(agentID, m, raw)
		}
		return &agent.AgentError{
			Type:        agent.ErrorAgentCrashed,
			Message:     fmt.Sprintf("%s exited with code %d", name, exitCode),
			Recoverable: true,
			AgentID:     agentID,
			Timestamp:   now(),
			Raw:         raw,
		}
	}
}
