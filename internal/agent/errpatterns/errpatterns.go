// Package errpatterns classifies raw agent output into the fixed error
// taxonomy using ordered, per-agent regex tables.
package errpatterns

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/chr1syy/maestro/pkg/agent"
)

//go:embed patterns.yaml
var builtinYAML []byte

// Pattern is one compiled classification rule.
type Pattern struct {
	Regex       *regexp.Regexp
	Type        agent.ErrorType
	Message     string
	Recoverable bool
}

// Match is the classification produced by MatchPattern.
type Match struct {
	Type        agent.ErrorType
	Message     string
	Recoverable bool
}

type rule struct {
	Type        agent.ErrorType `yaml:"type"`
	Message     string          `yaml:"message"`
	Recoverable bool            `yaml:"recoverable"`
	Regex       []string        `yaml:"regex"`
}

// MatchPattern returns the first pattern in table order that matches text,
// or nil when nothing matches.
func MatchPattern(patterns []Pattern, text string) *Match {
	if text == "" {
		return nil
	}
	for _, p := range patterns {
		if p.Regex.MatchString(text) {
			return &Match{Type: p.Type, Message: p.Message, Recoverable: p.Recoverable}
		}
	}
	return nil
}

// Parse decodes a YAML pattern document into compiled per-agent tables.
// Rule order within an agent is preserved.
func Parse(data []byte) (map[string][]Pattern, error) {
	var doc map[string][]rule
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode error patterns: %w", err)
	}

	tables := make(map[string][]Pattern, len(doc))
	for agentID, rules := range doc {
		var patterns []Pattern
		for i, r := range rules {
			if !r.Type.IsValid() {
				return nil, fmt.Errorf("%s rule %d: unknown error type %q", agentID, i, r.Type)
			}
			if r.Message == "" {
				return nil, fmt.Errorf("%s rule %d: message is required", agentID, i)
			}
			if len(r.Regex) == 0 {
				return nil, fmt.Errorf("%s rule %d: at least one regex is required", agentID, i)
			}
			for _, expr := range r.Regex {
				re, err := regexp.Compile("(?i)" + expr)
				if err != nil {
					return nil, fmt.Errorf("%s rule %d: compile %q: %w", agentID, i, expr, err)
				}
				patterns = append(patterns, Pattern{
					Regex:       re,
					Type:        r.Type,
					Message:     r.Message,
					Recoverable: r.Recoverable,
				})
			}
		}
		tables[agentID] = patterns
	}
	return tables, nil
}

// Table holds the active pattern tables for every agent.
type Table struct {
	mu     sync.RWMutex
	tables map[string][]Pattern
}

// NewTable builds a table from the embedded built-in patterns.
func NewTable() (*Table, error) {
	tables, err := Parse(builtinYAML)
	if err != nil {
		return nil, err
	}
	return &Table{tables: tables}, nil
}

// ForAgent returns the ordered patterns for agentID. Unknown agents have none.
func (t *Table) ForAgent(agentID string) []Pattern {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tables[agentID]
}

// Agents returns the agent ids that have a table, sorted.
func (t *Table) Agents() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.tables))
	for id := range t.tables {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Override replaces whole per-agent tables. Agents absent from overrides keep
// their current table.
func (t *Table) Override(overrides map[string][]Pattern) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for agentID, patterns := range overrides {
		t.tables[agentID] = patterns
	}
}

// LoadOverrides reads a YAML file in the built-in format and applies it.
// An empty path is a no-op.
func (t *Table) LoadOverrides(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read error pattern overrides: %w", err)
	}
	overrides, err := Parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	t.Override(overrides)
	return nil
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the process-wide table. The embedded document is validated
// by tests, so a failure here is a build defect.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := NewTable()
		if err != nil {
			panic(fmt.Sprintf("errpatterns: built-in table is invalid: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}

// ForAgent returns agentID's patterns from the default table.
func ForAgent(agentID string) []Pattern {
	return Default().ForAgent(agentID)
}

// LoadOverrides applies an override file to the default table.
func LoadOverrides(path string) error {
	return Default().LoadOverrides(path)
}
