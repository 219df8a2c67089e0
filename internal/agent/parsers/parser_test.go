package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chr1syy/maestro/pkg/agent"
)

func TestRegisteredIDs(t *testing.T) {
	assert.Equal(t, []string{"claude-code", "codex", "copilot-cli", "opencode"}, RegisteredIDs())
	_, ok := GetOutputParser("terminal")
	assert.False(t, ok)
}

func TestRegisterRejectsDuplicatesAndEmptyIDs(t *testing.T) {
	err := Register(&Parser{AgentID: "claude-code"})
	assert.ErrorContains(t, err, "already registered")
	assert.Error(t, Register(&Parser{}))
	assert.Error(t, Register(nil))
}

func TestEmptyParserIsSafe(t *testing.T) {
	p := &Parser{AgentID: "empty"}
	ev := &agent.ParsedEvent{Type: agent.EventText, Text: "x"}
	assert.Nil(t, p.ParseLine("x"))
	assert.False(t, p.IsResultMessage(ev))
	assert.Empty(t, p.ExtractSessionID(ev))
	assert.Nil(t, p.ExtractUsage(ev))
	assert.Nil(t, p.ExtractSlashCommands(ev))
	assert.Nil(t, p.DetectErrorFromLine("Error: not authenticated"))
	assert.Nil(t, p.DetectErrorFromExit(1, "", ""))
}

func TestNilEventIsSafe(t *testing.T) {
	for _, id := range RegisteredIDs() {
		p, _ := GetOutputParser(id)
		assert.False(t, p.IsResultMessage(nil))
		assert.Empty(t, p.ExtractSessionID(nil))
		assert.Nil(t, p.ExtractUsage(nil))
		assert.Nil(t, p.ExtractSlashCommands(nil))
	}
}

func TestNonZeroExitWithoutPatternNamesAgent(t *testing.T) {
	cases := map[string]string{
		"claude-code": "Claude Code exited with code 2",
		"codex":       "Codex exited with code 2",
		"opencode":    "OpenCode exited with code 2",
	}
	for id, want := range cases {
		p, ok := GetOutputParser(id)
		require.True(t, ok)
		e := p.DetectErrorFromExit(2, "something odd", "")
		require.NotNil(t, e, id)
		assert.Equal(t, agent.ErrorAgentCrashed, e.Type)
		assert.Equal(t, want, e.Message)
	}
}

func TestRateLimitOnExitForEveryAgent(t *testing.T) {
	for _, id := range RegisteredIDs() {
		p, _ := GetOutputParser(id)
		e := p.DetectErrorFromExit(1, "Error: rate limit exceeded", "")
		require.NotNil(t, e, id)
		assert.Equal(t, agent.ErrorRateLimited, e.Type, id)
	}
}

func TestJSONAgentsIgnoreErrorWordsInAssistantText(t *testing.T) {
	claude, _ := GetOutputParser("claude-code")
	line := `{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"The API returned permission denied, so I changed the file mode."}]}}`
	assert.Nil(t, claude.DetectErrorFromLine(line))

	codex, _ := GetOutputParser("codex")
	line = `{"type":"item.completed","item":{"id":"item_1","type":"agent_message","text":"rate limit exceeded is handled by the retry loop"}}`
	assert.Nil(t, codex.DetectErrorFromLine(line))
}
