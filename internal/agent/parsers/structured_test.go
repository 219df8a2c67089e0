package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chr1syy/maestro/pkg/agent"
)

func TestClaudeParser(t *testing.T) {
	p, ok := GetOutputParser("claude-code")
	require.True(t, ok)

	t.Run("init", func(t *testing.T) {
		ev := p.ParseLine(`{"type":"system","subtype":"init","session_id":"sess-1","slash_commands":["/compact","/review"]}`)
		require.NotNil(t, ev)
		assert.Equal(t, agent.EventInit, ev.Type)
		assert.Equal(t, "sess-1", p.ExtractSessionID(ev))
		assert.Equal(t, []string{"/compact", "/review"}, p.ExtractSlashCommands(ev))
		assert.False(t, p.IsResultMessage(ev))
	})

	t.Run("assistant text", func(t *testing.T) {
		ev := p.ParseLine(`{"type":"assistant","session_id":"sess-1","message":{"role":"assistant","content":[{"type":"text","text":"Hello "},{"type":"tool_use","name":"Bash"},{"type":"text","text":"world"}]}}`)
		require.NotNil(t, ev)
		assert.Equal(t, agent.EventText, ev.Type)
		assert.Equal(t, "Hello world", ev.Text)
		assert.Nil(t, p.ExtractUsage(ev))
	})

	t.Run("assistant tool only", func(t *testing.T) {
		ev := p.ParseLine(`{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Read"}]}}`)
		require.NotNil(t, ev)
		assert.Equal(t, agent.EventToolUse, ev.Type)
		assert.Equal(t, "Read", ev.ToolName)
	})

	t.Run("result", func(t *testing.T) {
		ev := p.ParseLine(`{"type":"result","subtype":"success","is_error":false,"result":"Done.","session_id":"sess-1","total_cost_usd":0.0123,"usage":{"input_tokens":10,"output_tokens":20,"cache_read_input_tokens":5,"cache_creation_input_tokens":7},"modelUsage":{"claude-sonnet":{"contextWindow":200000}}}`)
		require.NotNil(t, ev)
		assert.Equal(t, agent.EventResult, ev.Type)
		assert.True(t, p.IsResultMessage(ev))
		assert.Equal(t, "Done.", ev.Text)
		u := p.ExtractUsage(ev)
		require.NotNil(t, u)
		assert.Equal(t, agent.Usage{
			InputTokens:         10,
			OutputTokens:        20,
			CacheReadTokens:     5,
			CacheCreationTokens: 7,
			TotalCostUSD:        0.0123,
			ContextWindow:       200000,
		}, *u)
		assert.Nil(t, p.DetectErrorFromLine(`{"type":"result","is_error":false,"result":"Done."}`))
	})

	t.Run("invalid lines", func(t *testing.T) {
		assert.Nil(t, p.ParseLine(""))
		assert.Nil(t, p.ParseLine("not json"))
		assert.Nil(t, p.ParseLine(`{"type":`))
	})

	t.Run("errors", func(t *testing.T) {
		e := p.DetectErrorFromLine(`{"type":"result","subtype":"error_during_execution","is_error":true,"result":"Invalid API key · Please run /login"}`)
		require.NotNil(t, e)
		assert.Equal(t, agent.ErrorAuthExpired, e.Type)

		e = p.DetectErrorFromLine(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
		require.NotNil(t, e)
		assert.Equal(t, agent.ErrorRateLimited, e.Type)

		e = p.DetectErrorFromLine(`{"type":"result","is_error":true,"result":"something unusual"}`)
		require.NotNil(t, e)
		assert.Equal(t, agent.ErrorAgentCrashed, e.Type)
		assert.Equal(t, "something unusual", e.Message)

		e = p.DetectErrorFromLine("connect ECONNREFUSED 127.0.0.1:443")
		require.NotNil(t, e)
		assert.Equal(t, agent.ErrorNetwork, e.Type)
	})
}

func TestCodexParser(t *testing.T) {
	p, ok := GetOutputParser("codex")
	require.True(t, ok)

	ev := p.ParseLine(`{"type":"thread.started","thread_id":"0199a213-81c0-7800-8aa1-bbab2a035a53"}`)
	require.NotNil(t, ev)
	assert.Equal(t, agent.EventInit, ev.Type)
	assert.Equal(t, "0199a213-81c0-7800-8aa1-bbab2a035a53", p.ExtractSessionID(ev))

	ev = p.ParseLine(`{"type":"item.completed","item":{"id":"item_3","type":"agent_message","text":"All tests pass."}}`)
	require.NotNil(t, ev)
	assert.Equal(t, agent.EventText, ev.Type)
	assert.Equal(t, "All tests pass.", ev.Text)
	assert.Empty(t, p.ExtractSessionID(ev))

	ev = p.ParseLine(`{"type":"item.started","item":{"id":"item_1","type":"command_execution","command":"bash -lc ls"}}`)
	require.NotNil(t, ev)
	assert.Equal(t, agent.EventToolUse, ev.Type)
	assert.Equal(t, "command_execution", ev.ToolName)

	ev = p.ParseLine(`{"type":"turn.completed","usage":{"input_tokens":24763,"cached_input_tokens":24448,"output_tokens":122}}`)
	require.NotNil(t, ev)
	assert.True(t, p.IsResultMessage(ev))
	require.NotNil(t, p.ExtractUsage(ev))
	assert.Equal(t, int64(24763), ev.Usage.InputTokens)
	assert.Equal(t, int64(24448), ev.Usage.CacheReadTokens)
	assert.Equal(t, int64(122), ev.Usage.OutputTokens)

	e := p.DetectErrorFromLine(`{"type":"turn.failed","error":{"message":"stream disconnected before completion"}}`)
	require.NotNil(t, e)
	assert.Equal(t, agent.ErrorNetwork, e.Type)

	e = p.DetectErrorFromLine(`{"type":"error","message":"exceeded retry limit, last status: 429 Too Many Requests"}`)
	require.NotNil(t, e)
	assert.Equal(t, agent.ErrorRateLimited, e.Type)
}

func TestOpenCodeParser(t *testing.T) {
	p, ok := GetOutputParser("opencode")
	require.True(t, ok)

	ev := p.ParseLine(`{"type":"step_start","timestamp":1,"sessionID":"ses_abc","part":{"type":"step-start"}}`)
	require.NotNil(t, ev)
	assert.Equal(t, agent.EventInit, ev.Type)
	assert.Equal(t, "ses_abc", p.ExtractSessionID(ev))

	ev = p.ParseLine(`{"type":"text","sessionID":"ses_abc","part":{"type":"text","text":"Renamed the helper."}}`)
	require.NotNil(t, ev)
	assert.Equal(t, agent.EventText, ev.Type)
	assert.Equal(t, "Renamed the helper.", ev.Text)

	ev = p.ParseLine(`{"type":"step_finish","sessionID":"ses_abc","part":{"type":"step-finish","reason":"tool-calls","cost":0.001,"tokens":{"input":5,"output":6,"reasoning":0,"cache":{"read":0,"write":0}}}}`)
	require.NotNil(t, ev)
	assert.False(t, p.IsResultMessage(ev))
	assert.Equal(t, agent.EventUsage, ev.Type)

	ev = p.ParseLine(`{"type":"step_finish","sessionID":"ses_abc","part":{"type":"step-finish","reason":"stop","cost":0.02,"tokens":{"input":100,"output":40,"reasoning":10,"cache":{"read":30,"write":2}}}}`)
	require.NotNil(t, ev)
	assert.True(t, p.IsResultMessage(ev))
	u := p.ExtractUsage(ev)
	require.NotNil(t, u)
	assert.Equal(t, int64(100), u.InputTokens)
	assert.Equal(t, int64(50), u.OutputTokens)
	assert.Equal(t, int64(30), u.CacheReadTokens)
	assert.Equal(t, 0.02, u.TotalCostUSD)

	e := p.DetectErrorFromLine(`{"type":"error","error":{"name":"ProviderAuthError","data":{"providerID":"anthropic","message":"no key"}}}`)
	require.NotNil(t, e)
	assert.Equal(t, agent.ErrorAuthExpired, e.Type)

	assert.Nil(t, p.DetectErrorFromLine(`{"type":"text","part":{"type":"text","text":"permission denied is expected here"}}`))
}
