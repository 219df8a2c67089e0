package cli

import (
	"context"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/chr1syy/maestro/internal/agent/launch"
	"github.com/chr1syy/maestro/internal/agent/ssh"
	"github.com/chr1syy/maestro/internal/common/config"
	"github.com/chr1syy/maestro/internal/settings/store"
)

// invocationFlags are shared by args and run.
type invocationFlags struct {
	prompt     string
	cwd        string
	model      string
	customArgs string
	env        []string
	resume     string
	readOnly   bool
	sshRemote  string
	sshWorkdir string
}

func (f *invocationFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.prompt, "prompt", "p", "", "prompt to send; runs the agent in batch mode")
	fl.StringVar(&f.cwd, "cwd", "", "working directory (default: current directory)")
	fl.StringVarP(&f.model, "model", "m", "", "model for this invocation")
	fl.StringVar(&f.customArgs, "custom-args", "", "extra CLI arguments for this invocation")
	fl.StringArrayVarP(&f.env, "env", "e", nil, "extra environment variable KEY=VALUE (repeatable)")
	fl.StringVar(&f.resume, "resume", "", "agent session id to resume")
	fl.BoolVar(&f.readOnly, "read-only", false, "run the agent in read-only mode")
	fl.StringVar(&f.sshRemote, "ssh-remote", "", "run on this SSH remote id")
	fl.StringVar(&f.sshWorkdir, "ssh-workdir", "", "remote working directory (default: --cwd)")
}

// request converts the flags into a launch request for agentID.
func (f *invocationFlags) request(agentID string) launch.Request {
	req := launch.Request{
		AgentID:    agentID,
		SessionID:  "cli-" + uuid.New().String(),
		Prompt:     f.prompt,
		Cwd:        f.cwd,
		Model:      f.model,
		CustomArgs: f.customArgs,
		CustomEnv:  config.ParseEnvList(f.env),
		Resume:     f.resume,
		ReadOnly:   f.readOnly,
	}
	if f.sshRemote != "" {
		req.SSH = &ssh.SessionConfig{Enabled: true, RemoteID: f.sshRemote, WorkingDirOverride: f.sshWorkdir}
	}
	return req
}

func resolveInvocation(ctx context.Context, repo store.Repository, agentID string, f *invocationFlags) (*launch.Invocation, error) {
	return launch.Resolve(ctx, repo, f.request(agentID))
}
