// Package launch resolves an agent spawn intent into a process config. The
// CLI and the daemon both go through Resolve so stored agent configuration
// and SSH remotes apply the same way on either path.
package launch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/chr1syy/maestro/internal/agent/agents"
	"github.com/chr1syy/maestro/internal/agent/args"
	"github.com/chr1syy/maestro/internal/agent/ssh"
	"github.com/chr1syy/maestro/internal/process"
)

// Store supplies stored agent configuration and SSH remotes.
type Store interface {
	AgentConfig(ctx context.Context, agentID string) (args.AgentConfig, error)
	ssh.RemoteStore
}

// Request is an agent spawn intent.
type Request struct {
	AgentID    string             `json:"agent_id"`
	SessionID  string             `json:"session_id,omitempty"`
	Prompt     string             `json:"prompt,omitempty"`
	Cwd        string             `json:"cwd,omitempty"`
	Model      string             `json:"model,omitempty"`
	CustomArgs string             `json:"custom_args,omitempty"`
	CustomEnv  map[string]string  `json:"custom_env,omitempty"`
	Resume     string             `json:"resume,omitempty"`
	ReadOnly   bool               `json:"read_only,omitempty"`
	SSH        *ssh.SessionConfig `json:"ssh_remote_config,omitempty"`
}

// Invocation is a fully resolved spawn intent.
type Invocation struct {
	Def        *agents.Definition `json:"-"`
	Resolution args.Resolution    `json:"resolution"`
	Config     process.Config     `json:"config"`
}

// Resolve applies stored configuration for req.AgentID and wraps the result
// for SSH when req selects an enabled remote. An empty SessionID gets a
// random one; an empty Cwd means the current directory.
func Resolve(ctx context.Context, st Store, req Request) (*Invocation, error) {
	def, err := agents.Lookup(req.AgentID)
	if err != nil {
		return nil, err
	}
	stored, err := st.AgentConfig(ctx, def.ID)
	if err != nil {
		return nil, fmt.Errorf("load agent config: %w", err)
	}

	cwd := req.Cwd
	if cwd == "" {
		if cwd, err = os.Getwd(); err != nil {
			return nil, err
		}
	}
	cwd, err = filepath.Abs(cwd)
	if err != nil {
		return nil, err
	}

	var session ssh.SessionConfig
	if req.SSH != nil {
		session = *req.SSH
	}
	remote, err := ssh.Resolve(ctx, st, session)
	if err != nil {
		return nil, err
	}
	viaStdin := ssh.UseStdinFor(remote, def, req.Prompt)

	argv := args.BuildAgentArgs(def, args.Options{
		Prompt:         req.Prompt,
		Cwd:            cwd,
		ModelID:        req.Model,
		AgentSessionID: req.Resume,
		ReadOnlyMode:   req.ReadOnly,
		PromptViaStdin: viaStdin,
	})
	res, err := args.ApplyAgentConfigOverrides(def, argv, args.Overrides{
		AgentConfig:        stored,
		SessionCustomModel: req.Model,
		SessionCustomArgs:  req.CustomArgs,
		SessionCustomEnv:   req.CustomEnv,
	})
	if err != nil {
		return nil, err
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	command := def.Executable()
	if stored.CustomPath != "" {
		command = stored.CustomPath
	}
	cfg := process.Config{
		SessionID: sessionID,
		ToolType:  def.ID,
		Cwd:       cwd,
		Command:   command,
		Args:      res.Args,
		Prompt:    req.Prompt,
		CustomEnv: res.EffectiveCustomEnv,
	}

	if remote != nil {
		sshCmd, err := ssh.WrapAgent(remote, ssh.AgentCommand{
			Def:    def,
			Args:   res.Args,
			Cwd:    session.WorkingDir(cwd),
			Env:    res.EffectiveCustomEnv,
			Prompt: req.Prompt,
		})
		if err != nil {
			return nil, err
		}
		// cwd names a remote directory here; ssh itself runs from ours.
		if cfg.Cwd, err = os.Getwd(); err != nil {
			return nil, err
		}
		cfg.Command = sshCmd.Command
		cfg.Args = sshCmd.Args
		cfg.CustomEnv = nil
		cfg.SSHRemoteID = remote.ID
		cfg.SSHRemoteHost = remote.Host
		cfg.SSHStdinScript = sshCmd.StdinScript
		cfg.SendPromptViaStdin = sshCmd.PromptViaStdin
	}
	return &Invocation{Def: def, Resolution: res, Config: cfg}, nil
}
