package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeArg(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", `""`},
		{"claude", "claude"},
		{"fix the bug", `"fix the bug"`},
		{"a\tb", "\"a\tb\""},
		{`say "hi"`, `"say \"hi\""`},
		{`C:\tools\agent.exe`, `C:\tools\agent.exe`},
		{`a\"`, `a\\\"`},
		{`dir with space\`, `"dir with space\\"`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeArg(tt.in), tt.in)
	}
}

func TestBuildCmdLine(t *testing.T) {
	assert.Equal(t, `codex.cmd exec -- "two words"`, buildCmdLine([]string{"codex.cmd", "exec", "--", "two words"}))
	assert.Equal(t, `"C:\Program Files\copilot.exe" -p \"quoted\"`,
		buildCmdLine([]string{`C:\Program Files\copilot.exe`, "-p", `"quoted"`}))
}
