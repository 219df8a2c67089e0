// Package agents holds the static table of supported agent CLIs: their
// binaries, flag conventions and capability flags.
package agents

import (
	"errors"
	"fmt"
	"os"
	"runtime"
)

// ErrUnknownAgent is returned for an agent id missing from the table.
var ErrUnknownAgent = errors.New("unknown agent")

// Agent ids.
const (
	IDClaudeCode = "claude-code"
	IDCopilotCLI = "copilot-cli"
	IDCodex      = "codex"
	IDOpenCode   = "opencode"
	IDTerminal   = "terminal"
)

// Capabilities describes what an agent CLI supports.
type Capabilities struct {
	SupportsBatchMode      bool `json:"supports_batch_mode"`
	SupportsModelSelection bool `json:"supports_model_selection"`
	SupportsResume         bool `json:"supports_resume"`
	// ResumeIgnoresSessionID marks "continue most recent" style resume flags.
	ResumeIgnoresSessionID   bool `json:"resume_ignores_session_id"`
	SupportsReadOnly         bool `json:"supports_read_only"`
	SupportsStructuredOutput bool `json:"supports_structured_output"`
	SupportsStreaming        bool `json:"supports_streaming"`
	SupportsStreamJSONInput  bool `json:"supports_stream_json_input"`
	// InBandSessionID is set when the agent reports its own session id in output.
	InBandSessionID bool `json:"in_band_session_id"`
	// ReportsFalseSuccess marks agents that exit 0 on failures such as
	// permission denials, so exit-time stderr must still be scanned.
	ReportsFalseSuccess bool `json:"reports_false_success"`
	RequiresPTY         bool `json:"requires_pty"`
}

// Definition is the read-only description of one agent CLI.
type Definition struct {
	ID              string
	Name            string
	BinaryName      string
	BaseArgs        []string
	BatchModePrefix []string
	BatchModeArgs   []string
	ReadOnlyArgs    []string
	ModelArgs       Param
	ResumeArgs      Param
	PromptArgs      Param
	DefaultModel    string
	Capabilities    Capabilities
}

// ResumeIsParameterized reports whether the resume flag carries the session id.
func (d *Definition) ResumeIsParameterized() bool {
	return d.ResumeArgs.Has("{session}")
}

// Executable returns the binary to launch. The terminal resolves to the
// user's shell.
func (d *Definition) Executable() string {
	if d.BinaryName != "" {
		return d.BinaryName
	}
	return DefaultShell()
}

// DefaultShell returns $SHELL, falling back to a platform shell.
func DefaultShell() string {
	if runtime.GOOS == "windows" {
		if comspec := os.Getenv("COMSPEC"); comspec != "" {
			return comspec
		}
		return "powershell.exe"
	}
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/bash"
}

var definitions = []*Definition{
	{
		ID:         IDClaudeCode,
		Name:       "Claude Code",
		BinaryName: "claude",
		BaseArgs: []string{
			"--print", "--verbose",
			"--output-format", "stream-json",
			"--dangerously-skip-permissions",
		},
		ReadOnlyArgs: []string{"--permission-mode", "plan"},
		ModelArgs:    NewParam("--model", "{model}"),
		ResumeArgs:   NewParam("--resume", "{session}"),
		PromptArgs:   NewParam("--", "{prompt}"),
		Capabilities: Capabilities{
			SupportsBatchMode:        true,
			SupportsModelSelection:   true,
			SupportsResume:           true,
			SupportsReadOnly:         true,
			SupportsStructuredOutput: true,
			SupportsStreaming:        true,
			SupportsStreamJSONInput:  true,
			InBandSessionID:          true,
		},
	},
	{
		ID:              IDCodex,
		Name:            "Codex",
		BinaryName:      "codex",
		BatchModePrefix: []string{"exec"},
		BatchModeArgs:   []string{"--json", "--skip-git-repo-check"},
		ReadOnlyArgs:    []string{"--sandbox", "read-only"},
		ModelArgs:       NewParam("--model", "{model}"),
		ResumeArgs:      NewParam("resume", "{session}"),
		PromptArgs:      NewParam("--", "{prompt}"),
		Capabilities: Capabilities{
			SupportsBatchMode:        true,
			SupportsModelSelection:   true,
			SupportsResume:           true,
			SupportsReadOnly:         true,
			SupportsStructuredOutput: true,
			SupportsStreaming:        true,
			InBandSessionID:          true,
		},
	},
	{
		ID:            IDOpenCode,
		Name:          "OpenCode",
		BinaryName:    "opencode",
		BaseArgs:      []string{"run"},
		BatchModeArgs: []string{"--format", "json"},
		ReadOnlyArgs:  []string{"--agent", "plan"},
		ModelArgs:     NewParam("--model", "{model}"),
		ResumeArgs:    NewParam("--session", "{session}"),
		PromptArgs:    NewParam("--", "{prompt}"),
		DefaultModel:  "anthropic/claude-sonnet-4-5",
		Capabilities: Capabilities{
			SupportsBatchMode:        true,
			SupportsModelSelection:   true,
			SupportsResume:           true,
			SupportsReadOnly:         true,
			SupportsStructuredOutput: true,
			SupportsStreaming:        true,
			InBandSessionID:          true,
		},
	},
	{
		ID:            IDCopilotCLI,
		Name:          "GitHub Copilot CLI",
		BinaryName:    "copilot",
		BatchModeArgs: []string{"--allow-all-tools", "--silent"},
		ModelArgs:     NewParam("--model", "{model}"),
		ResumeArgs:    NewParam("--continue"),
		PromptArgs:    NewParam("-p", "{prompt}"),
		Capabilities: Capabilities{
			SupportsBatchMode:      true,
			SupportsModelSelection: true,
			SupportsResume:         true,
			ResumeIgnoresSessionID: true,
			ReportsFalseSuccess:    true,
		},
	},
	{
		ID:   IDTerminal,
		Name: "Terminal",
		Capabilities: Capabilities{
			SupportsStreaming: true,
			RequiresPTY:       true,
		},
	},
}

var byID = func() map[string]*Definition {
	m := make(map[string]*Definition, len(definitions))
	for _, d := range definitions {
		m[d.ID] = d
	}
	return m
}()

// Get returns the definition for id.
func Get(id string) (*Definition, bool) {
	d, ok := byID[id]
	return d, ok
}

// Lookup returns the definition for id or ErrUnknownAgent.
func Lookup(id string) (*Definition, error) {
	if d, ok := byID[id]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, id)
}

// All returns every definition in display order.
func All() []*Definition {
	return append([]*Definition(nil), definitions...)
}

// IDs returns every agent id in display order.
func IDs() []string {
	ids := make([]string, len(definitions))
	for i, d := range definitions {
		ids[i] = d.ID
	}
	return ids
}
