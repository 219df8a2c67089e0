// Package parsers turns raw agent output lines into typed events and
// classifies agent failures. Each supported agent contributes one Parser,
// a table of functions bound to its output contract.
package parsers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/chr1syy/maestro/pkg/agent"
)

// Parser is the per-agent output contract. Any nil function behaves as
// "not supported" and yields nil/false.
type Parser struct {
	AgentID string

	ParseLineFunc            func(line string) *agent.ParsedEvent
	IsResultMessageFunc      func(ev *agent.ParsedEvent) bool
	ExtractSessionIDFunc     func(ev *agent.ParsedEvent) string
	ExtractUsageFunc         func(ev *agent.ParsedEvent) *agent.Usage
	ExtractSlashCommandsFunc func(ev *agent.ParsedEvent) []string
	DetectErrorFromLineFunc  func(line string) *agent.AgentError
	DetectErrorFromExitFunc  func(exitCode int, stderr, stdout string) *agent.AgentError
}

// ParseLine decodes one line. Blank or undecodable lines yield nil.
func (p *Parser) ParseLine(line string) *agent.ParsedEvent {
	if p.ParseLineFunc == nil {
		return nil
	}
	return p.ParseLineFunc(line)
}

// IsResultMessage reports whether ev is the agent's native completion marker.
func (p *Parser) IsResultMessage(ev *agent.ParsedEvent) bool {
	if p.IsResultMessageFunc == nil || ev == nil {
		return false
	}
	return p.IsResultMessageFunc(ev)
}

// ExtractSessionID returns the agent-native session id carried by ev, or "".
func (p *Parser) ExtractSessionID(ev *agent.ParsedEvent) string {
	if p.ExtractSessionIDFunc == nil || ev == nil {
		return ""
	}
	return p.ExtractSessionIDFunc(ev)
}

// ExtractUsage returns usage counters carried by ev, or nil.
func (p *Parser) ExtractUsage(ev *agent.ParsedEvent) *agent.Usage {
	if p.ExtractUsageFunc == nil || ev == nil {
		return nil
	}
	return p.ExtractUsageFunc(ev)
}

// ExtractSlashCommands returns slash commands announced by ev, or nil.
func (p *Parser) ExtractSlashCommands(ev *agent.ParsedEvent) []string {
	if p.ExtractSlashCommandsFunc == nil || ev == nil {
		return nil
	}
	return p.ExtractSlashCommandsFunc(ev)
}

// DetectErrorFromLine classifies a single output line.
func (p *Parser) DetectErrorFromLine(line string) *agent.AgentError {
	if p.DetectErrorFromLineFunc == nil {
		return nil
	}
	return p.DetectErrorFromLineFunc(line)
}

// DetectErrorFromExit classifies a finished process from its exit code and
// accumulated output.
func (p *Parser) DetectErrorFromExit(exitCode int, stderr, stdout string) *agent.AgentError {
	if p.DetectErrorFromExitFunc == nil {
		return nil
	}
	return p.DetectErrorFromExitFunc(exitCode, stderr, stdout)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]*Parser)
)

// Register adds a parser. Ids must be unique.
func Register(p *Parser) error {
	if p == nil || p.AgentID == "" {
		return fmt.Errorf("parser must have an agent id")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[p.AgentID]; exists {
		return fmt.Errorf("parser for agent %q already registered", p.AgentID)
	}
	registry[p.AgentID] = p
	return nil
}

func mustRegister(p *Parser) {
	if err := Register(p); err != nil {
		panic(err)
	}
}

// GetOutputParser returns the parser for agentID.
func GetOutputParser(agentID string) (*Parser, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := registry[agentID]
	return p, ok
}

// RegisteredIDs returns the agent ids that have a parser, sorted.
func RegisteredIDs() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func init() {
	mustRegister(newCopilotParser())
	mustRegister(newClaudeParser())
	mustRegister(newCodexParser())
	mustRegister(newOpenCodeParser())
}
