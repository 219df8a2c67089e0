// Package ssh wraps agent invocations for execution on an SSH remote.
//
// Prompts routinely contain characters that do not survive the local shell,
// the SSH transport and the remote shell in turn, so when stdin delivery is
// requested the remote side runs /bin/bash reading a generated script from
// stdin, and the payload follows the script on the same stream.
package ssh

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/alessio/shellescape"

	"github.com/chr1syy/maestro/internal/agent/agents"
)

var (
	// ErrRemoteNotFound is returned when a session references an unknown remote.
	ErrRemoteNotFound = errors.New("ssh remote not found")
	// ErrRemoteDisabled is returned when a session references a disabled remote.
	ErrRemoteDisabled = errors.New("ssh remote is disabled")
)

// RemotePATH is prepended to PATH on the remote so user-local agent installs
// resolve in non-login shells.
const RemotePATH = `$HOME/.local/bin:$HOME/.opencode/bin:$HOME/.bun/bin:$HOME/.npm-global/bin:/opt/homebrew/bin:/usr/local/bin`

var envKeyRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// RemoteConfig is an SSH execution target.
type RemoteConfig struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Host           string            `json:"host"`
	Port           int               `json:"port,omitempty"`
	Username       string            `json:"username,omitempty"`
	PrivateKeyPath string            `json:"private_key_path,omitempty"`
	RemoteEnv      map[string]string `json:"remote_env,omitempty"`
	Enabled        bool              `json:"enabled"`
}

// SessionConfig is a session's choice of remote.
type SessionConfig struct {
	Enabled            bool   `json:"enabled"`
	RemoteID           string `json:"remote_id,omitempty"`
	WorkingDirOverride string `json:"working_dir_override,omitempty"`
}

// WorkingDir returns the remote working directory for cwd.
func (s SessionConfig) WorkingDir(cwd string) string {
	if s.WorkingDirOverride != "" {
		return s.WorkingDirOverride
	}
	return cwd
}

// RemoteStore looks up remotes by id. Implementations return
// ErrRemoteNotFound for unknown ids.
type RemoteStore interface {
	GetSSHRemote(ctx context.Context, id string) (*RemoteConfig, error)
}

// Resolve returns the remote selected by sc, or nil when SSH is not enabled
// for the session.
func Resolve(ctx context.Context, store RemoteStore, sc SessionConfig) (*RemoteConfig, error) {
	if !sc.Enabled || sc.RemoteID == "" {
		return nil, nil
	}
	remote, err := store.GetSSHRemote(ctx, sc.RemoteID)
	if err != nil {
		return nil, fmt.Errorf("resolve ssh remote %q: %w", sc.RemoteID, err)
	}
	if remote == nil {
		return nil, fmt.Errorf("resolve ssh remote %q: %w", sc.RemoteID, ErrRemoteNotFound)
	}
	if !remote.Enabled {
		return nil, fmt.Errorf("resolve ssh remote %q: %w", sc.RemoteID, ErrRemoteDisabled)
	}
	return remote, nil
}

// RemoteCommand is the invocation to run on the remote.
type RemoteCommand struct {
	Command  string
	Args     []string
	Cwd      string
	Env      map[string]string
	UseStdin bool
}

// Command is the local ssh invocation. StdinScript, when set, must be
// written to the process's stdin before any payload. PromptViaStdin reports
// that the agent reads its prompt from stdin after the script.
type Command struct {
	Command        string   `json:"command"`
	Args           []string `json:"args"`
	StdinScript    string   `json:"stdin_script,omitempty"`
	PromptViaStdin bool     `json:"prompt_via_stdin,omitempty"`
}

// BuildCommand wraps rc for execution on remote.
func BuildCommand(remote *RemoteConfig, rc RemoteCommand) (Command, error) {
	if remote == nil || remote.Host == "" {
		return Command{}, errors.New("ssh remote host is required")
	}
	if rc.Command == "" {
		return Command{}, errors.New("remote command is required")
	}
	env, err := mergeEnv(remote.RemoteEnv, rc.Env)
	if err != nil {
		return Command{}, err
	}

	args := []string{
		"-o", "BatchMode=yes",
		"-o", "StrictHostKeyChecking=accept-new",
		"-o", "ConnectTimeout=10",
	}
	if remote.PrivateKeyPath != "" {
		args = append(args, "-i", remote.PrivateKeyPath)
	}
	if remote.Port != 0 && remote.Port != 22 {
		args = append(args, "-p", strconv.Itoa(remote.Port))
	}
	args = append(args, "-T", destination(remote))

	invocation := quoteArgv(rc.Command, rc.Args)

	if rc.UseStdin {
		var script strings.Builder
		script.WriteString(`export PATH="` + RemotePATH + `:$PATH"` + "\n")
		if rc.Cwd != "" {
			script.WriteString("cd " + quotePath(rc.Cwd) + "\n")
		}
		for _, kv := range env {
			script.WriteString("export " + kv + "\n")
		}
		script.WriteString("exec " + invocation + "\n")
		return Command{
			Command:     "ssh",
			Args:        append(args, "/bin/bash"),
			StdinScript: script.String(),
		}, nil
	}

	parts := []string{`export PATH="` + RemotePATH + `:$PATH"`}
	if rc.Cwd != "" {
		parts = append(parts, "cd "+quotePath(rc.Cwd))
	}
	run := "exec " + invocation
	if len(env) > 0 {
		run = strings.Join(env, " ") + " " + run
	}
	parts = append(parts, run)
	return Command{Command: "ssh", Args: append(args, strings.Join(parts, " && "))}, nil
}

// UseStdinFor reports whether prompt is delivered on stdin when def runs on
// remote. Only stream-json capable agents read prompts that way; everything
// else keeps the prompt in argv.
func UseStdinFor(remote *RemoteConfig, def *agents.Definition, prompt string) bool {
	return remote != nil && def != nil && prompt != "" && def.Capabilities.SupportsStreamJSONInput
}

// AgentCommand is an agent invocation bound for a remote.
type AgentCommand struct {
	Def    *agents.Definition
	Args   []string
	Cwd    string
	Env    map[string]string
	Prompt string
}

// WrapAgent builds the ssh invocation for ac. The prompt goes over stdin
// exactly when UseStdinFor says so, in which case the agent is switched to
// stream-json input; argv must then have been built without the prompt.
func WrapAgent(remote *RemoteConfig, ac AgentCommand) (Command, error) {
	if ac.Def == nil {
		return Command{}, errors.New("agent definition is required")
	}
	viaStdin := UseStdinFor(remote, ac.Def, ac.Prompt)
	argv := ac.Args
	if viaStdin {
		argv = WithStreamJSONInput(argv)
	}
	cmd, err := BuildCommand(remote, RemoteCommand{
		Command:  ac.Def.Executable(),
		Args:     argv,
		Cwd:      ac.Cwd,
		Env:      ac.Env,
		UseStdin: viaStdin,
	})
	if err != nil {
		return Command{}, err
	}
	cmd.PromptViaStdin = viaStdin
	return cmd, nil
}

// WithStreamJSONInput makes a stream-json capable agent read its prompt
// from stdin. The flag is placed before any "--" separator.
func WithStreamJSONInput(args []string) []string {
	for i, a := range args {
		if a == "--input-format" && i+1 < len(args) && args[i+1] == "stream-json" {
			return args
		}
	}
	idx := len(args)
	for i, a := range args {
		if a == "--" {
			idx = i
			break
		}
	}
	out := make([]string, 0, len(args)+2)
	out = append(out, args[:idx]...)
	out = append(out, "--input-format", "stream-json")
	return append(out, args[idx:]...)
}

func destination(remote *RemoteConfig) string {
	if remote.Username == "" {
		return remote.Host
	}
	return remote.Username + "@" + remote.Host
}

// mergeEnv overlays override on base and returns sorted KEY=quoted pairs.
func mergeEnv(base, override map[string]string) ([]string, error) {
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		if !envKeyRe.MatchString(k) {
			return nil, fmt.Errorf("invalid environment variable name %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k + "=" + shellescape.Quote(merged[k])
	}
	return out, nil
}

func quoteArgv(command string, args []string) string {
	quoted := make([]string, 0, len(args)+1)
	quoted = append(quoted, shellescape.Quote(command))
	for _, a := range args {
		quoted = append(quoted, shellescape.Quote(a))
	}
	return strings.Join(quoted, " ")
}

// quotePath quotes a remote path while keeping a leading ~ expandable.
func quotePath(p string) string {
	switch {
	case p == "~":
		return `"$HOME"`
	case strings.HasPrefix(p, "~/"):
		return `"$HOME"/` + shellescape.Quote(p[2:])
	default:
		return shellescape.Quote(p)
	}
}
