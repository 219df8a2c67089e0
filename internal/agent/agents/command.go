package agents

import "strings"

// Command is an ordered argv fragment produced by CmdBuilder.
type Command struct {
	args []string
}

// NewCommand creates a Command from the given arguments.
func NewCommand(args ...string) Command {
	return Command{args: append([]string{}, args...)}
}

// Args returns the raw string slice for serialization at system boundaries.
func (c Command) Args() []string {
	return c.args
}

// IsEmpty reports whether the command has no arguments.
func (c Command) IsEmpty() bool {
	return len(c.args) == 0
}

// With returns a CmdBuilder seeded with this command's arguments.
func (c Command) With() *CmdBuilder {
	return &CmdBuilder{args: append([]string{}, c.args...)}
}

// Param is a command fragment: one or more pre-split CLI arguments that may
// carry {model}, {session} or {prompt} placeholders.
type Param struct {
	args []string
}

// NewParam creates a Param from the given arguments.
func NewParam(args ...string) Param {
	return Param{args: append([]string{}, args...)}
}

// Args returns the raw string slice.
func (p Param) Args() []string { return p.args }

// IsEmpty reports whether the param has no arguments.
func (p Param) IsEmpty() bool { return len(p.args) == 0 }

// Has reports whether any argument contains the placeholder.
func (p Param) Has(placeholder string) bool {
	for _, arg := range p.args {
		if strings.Contains(arg, placeholder) {
			return true
		}
	}
	return false
}

func (p Param) expand(placeholder, value string) []string {
	out := make([]string, 0, len(p.args))
	for _, arg := range p.args {
		out = append(out, strings.ReplaceAll(arg, placeholder, value))
	}
	return out
}

// CmdBuilder constructs argv slices using a fluent API.
type CmdBuilder struct {
	args []string
}

// Cmd starts building from base arguments.
func Cmd(base ...string) *CmdBuilder {
	return &CmdBuilder{args: append([]string{}, base...)}
}

// Model appends a model flag if model is non-empty.
func (b *CmdBuilder) Model(flag Param, model string) *CmdBuilder {
	if flag.IsEmpty() || model == "" {
		return b
	}
	b.args = append(b.args, flag.expand("{model}", model)...)
	return b
}

// Resume appends the resume flag when sessionID is set. Flags without a
// {session} placeholder ("continue most recent") ignore the id entirely.
func (b *CmdBuilder) Resume(flag Param, sessionID string) *CmdBuilder {
	if sessionID == "" || flag.IsEmpty() {
		return b
	}
	b.args = append(b.args, flag.expand("{session}", sessionID)...)
	return b
}

// Prompt appends a prompt flag if prompt is non-empty. An empty flag appends
// the prompt as a positional argument.
func (b *CmdBuilder) Prompt(flag Param, prompt string) *CmdBuilder {
	if prompt == "" {
		return b
	}
	if flag.IsEmpty() {
		b.args = append(b.args, prompt)
		return b
	}
	b.args = append(b.args, flag.expand("{prompt}", prompt)...)
	return b
}

// Flag appends arbitrary flag parts.
func (b *CmdBuilder) Flag(parts ...string) *CmdBuilder {
	b.args = append(b.args, parts...)
	return b
}

// FlagIf appends parts only when cond holds.
func (b *CmdBuilder) FlagIf(cond bool, parts ...string) *CmdBuilder {
	if cond {
		b.args = append(b.args, parts...)
	}
	return b
}

// Build returns the final Command value.
func (b *CmdBuilder) Build() Command {
	return Command{args: b.args}
}
