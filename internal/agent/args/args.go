// Package args computes the argv for an agent invocation from its
// definition, the invocation intent and user configuration overrides.
package args

import (
	"github.com/chr1syy/maestro/internal/agent/agents"
)

// Options is the invocation intent for BuildAgentArgs.
type Options struct {
	// BaseArgs replaces the definition's base args when non-nil.
	BaseArgs       []string
	Prompt         string
	Cwd            string
	ModelID        string
	AgentSessionID string
	ReadOnlyMode   bool
	// PromptViaStdin withholds the prompt from argv; the spawner writes it to stdin.
	PromptViaStdin bool
}

// BuildAgentArgs returns the argv (without the binary) for def. Composition
// order is fixed: base args, batch prefix and flags (only with a prompt),
// read-only flags, model flag, resume flag, then the prompt.
func BuildAgentArgs(def *agents.Definition, opts Options) []string {
	caps := def.Capabilities

	base := def.BaseArgs
	if opts.BaseArgs != nil {
		base = opts.BaseArgs
	}
	b := agents.Cmd(base...)

	batch := opts.Prompt != "" && caps.SupportsBatchMode
	if batch {
		b.Flag(def.BatchModePrefix...).Flag(def.BatchModeArgs...)
	}

	b.FlagIf(opts.ReadOnlyMode && caps.SupportsReadOnly, def.ReadOnlyArgs...)

	if caps.SupportsModelSelection {
		b.Model(def.ModelArgs, opts.ModelID)
	}

	if caps.SupportsResume {
		b.Resume(def.ResumeArgs, opts.AgentSessionID)
	}

	if batch && !opts.PromptViaStdin {
		b.Prompt(def.PromptArgs, opts.Prompt)
	}

	return b.Build().Args()
}

// separatorIndex returns the index of the first "--" or len(argv).
func separatorIndex(argv []string) int {
	for i, a := range argv {
		if a == "--" {
			return i
		}
	}
	return len(argv)
}

// insertBeforeSeparator places extra ahead of the first "--" so that
// flags never end up in the positional prompt section.
func insertBeforeSeparator(argv, extra []string) []string {
	if len(extra) == 0 {
		return argv
	}
	idx := separatorIndex(argv)
	out := make([]string, 0, len(argv)+len(extra))
	out = append(out, argv[:idx]...)
	out = append(out, extra...)
	out = append(out, argv[idx:]...)
	return out
}
