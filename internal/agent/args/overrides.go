package args

import (
	"fmt"
	"maps"
	"strings"

	"github.com/google/shlex"

	"github.com/chr1syy/maestro/internal/agent/agents"
)

// Source names where a resolved value came from.
type Source string

const (
	SourceSession      Source = "session"
	SourceAgentConfig  Source = "agent-config"
	SourceAgentDefault Source = "agent-default"
	SourceNone         Source = "none"
)

// AgentConfig is the stored per-agent user configuration.
type AgentConfig struct {
	Model      string            `json:"model,omitempty"`
	CustomArgs string            `json:"custom_args,omitempty"`
	CustomEnv  map[string]string `json:"custom_env,omitempty"`
	CustomPath string            `json:"custom_path,omitempty"`
}

// Overrides is the input of ApplyAgentConfigOverrides.
type Overrides struct {
	AgentConfig        AgentConfig
	SessionCustomModel string
	SessionCustomArgs  string
	SessionCustomEnv   map[string]string
}

// Resolution is the outcome of ApplyAgentConfigOverrides.
type Resolution struct {
	Args               []string          `json:"args"`
	ModelSource        Source            `json:"model_source"`
	Model              string            `json:"model,omitempty"`
	CustomArgsSource   Source            `json:"custom_args_source"`
	EffectiveCustomEnv map[string]string `json:"effective_custom_env,omitempty"`
	EnvSource          Source            `json:"env_source"`
}

// ApplyAgentConfigOverrides layers user configuration over argv built by
// BuildAgentArgs. Session values win over stored agent config; when neither
// sets a model the agent's own default applies and argv is left alone.
// Running it twice over its own output yields exactly one model flag.
func ApplyAgentConfigOverrides(def *agents.Definition, argv []string, o Overrides) (Resolution, error) {
	res := Resolution{
		Args:             append([]string(nil), argv...),
		ModelSource:      SourceAgentDefault,
		CustomArgsSource: SourceNone,
		EnvSource:        SourceNone,
	}

	model := ""
	switch {
	case SanitizeModel(o.SessionCustomModel) != "":
		model = SanitizeModel(o.SessionCustomModel)
		res.ModelSource = SourceSession
	case SanitizeModel(o.AgentConfig.Model) != "":
		model = SanitizeModel(o.AgentConfig.Model)
		res.ModelSource = SourceAgentConfig
	}
	if model != "" && def.Capabilities.SupportsModelSelection {
		res.Args = CanonicalizeModelFlag(def, res.Args, model)
		res.Model = model
	}

	custom := ""
	switch {
	case strings.TrimSpace(o.SessionCustomArgs) != "":
		custom = o.SessionCustomArgs
		res.CustomArgsSource = SourceSession
	case strings.TrimSpace(o.AgentConfig.CustomArgs) != "":
		custom = o.AgentConfig.CustomArgs
		res.CustomArgsSource = SourceAgentConfig
	}
	if custom != "" {
		extra, err := shlex.Split(custom)
		if err != nil {
			return Resolution{}, fmt.Errorf("parse custom args: %w", err)
		}
		res.Args = insertBeforeSeparator(res.Args, extra)
	}

	if len(o.AgentConfig.CustomEnv) > 0 || len(o.SessionCustomEnv) > 0 {
		env := make(map[string]string, len(o.AgentConfig.CustomEnv)+len(o.SessionCustomEnv))
		maps.Copy(env, o.AgentConfig.CustomEnv)
		maps.Copy(env, o.SessionCustomEnv)
		res.EffectiveCustomEnv = env
		if len(o.SessionCustomEnv) > 0 {
			res.EnvSource = SourceSession
		} else {
			res.EnvSource = SourceAgentConfig
		}
	}

	return res, nil
}

// CanonicalizeModelFlag strips every --model X, --model=X and -m X from the
// part of argv before the first "--", then appends a single --model=<model>
// to that part. An empty model only strips. The value following def's prompt
// flag (copilot's -p) is the prompt itself and is never treated as a flag.
func CanonicalizeModelFlag(def *agents.Definition, argv []string, model string) []string {
	idx := separatorIndex(argv)
	prefix, suffix := argv[:idx], argv[idx:]
	pflag := promptFlag(def)

	out := make([]string, 0, len(argv)+1)
	for i := 0; i < len(prefix); i++ {
		a := prefix[i]
		switch {
		case pflag != "" && a == pflag && i+1 < len(prefix):
			out = append(out, a, prefix[i+1])
			i++
			continue
		case strings.HasPrefix(a, "--model="):
			continue
		case a == "--model":
			i++
			continue
		case a == "-m" && i+1 < len(prefix):
			i++
			continue
		}
		out = append(out, a)
	}
	if m := SanitizeModel(model); m != "" {
		out = append(out, "--model="+m)
	}
	return append(out, suffix...)
}

// promptFlag returns the flag that introduces the prompt value, or "" when
// the prompt is positional after "--".
func promptFlag(def *agents.Definition) string {
	if def == nil {
		return ""
	}
	pa := def.PromptArgs.Args()
	for i, a := range pa {
		if strings.Contains(a, "{prompt}") && i > 0 && pa[i-1] != "--" {
			return pa[i-1]
		}
	}
	return ""
}

// ResolveModel picks the model for one-shot tasks: an explicit session model,
// else a stored config model that names a provider ("provider/model"), else
// the agent default.
func ResolveModel(def *agents.Definition, sessionModel, configModel string) string {
	if m := SanitizeModel(sessionModel); m != "" {
		return m
	}
	if m := SanitizeModel(configModel); m != "" && strings.Contains(m, "/") {
		return m
	}
	return SanitizeModel(def.DefaultModel)
}

// SanitizeModel trims whitespace and trailing slashes.
func SanitizeModel(model string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(model), "/"))
}
