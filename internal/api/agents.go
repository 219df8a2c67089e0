package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chr1syy/maestro/internal/agent/agents"
	"github.com/chr1syy/maestro/internal/agent/args"
	"github.com/chr1syy/maestro/internal/agent/ssh"
)

type agentView struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Binary       string              `json:"binary"`
	DefaultModel string              `json:"default_model,omitempty"`
	Capabilities agents.Capabilities `json:"capabilities"`
	Available    *bool               `json:"available,omitempty"`
	Path         string              `json:"path,omitempty"`
}

func (s *Server) listAgents(c *gin.Context) {
	defs := agents.All()
	out := make([]agentView, 0, len(defs))
	for _, def := range defs {
		v := agentView{
			ID:           def.ID,
			Name:         def.Name,
			Binary:       def.Executable(),
			DefaultModel: def.DefaultModel,
			Capabilities: def.Capabilities,
		}
		if s.deps.Detector != nil {
			det, err := s.deps.Detector.Resolve(c.Request.Context(), def)
			if err == nil {
				available := det.Available
				v.Available = &available
				v.Path = det.Path
			}
		}
		out = append(out, v)
	}
	c.JSON(http.StatusOK, gin.H{"agents": out})
}

type argsRequest struct {
	AgentID            string             `json:"agent_id" binding:"required"`
	Prompt             string             `json:"prompt"`
	Cwd                string             `json:"cwd"`
	ModelID            string             `json:"model_id"`
	AgentSessionID     string             `json:"agent_session_id"`
	ReadOnlyMode       bool               `json:"read_only_mode"`
	PromptViaStdin     bool               `json:"prompt_via_stdin"`
	SessionCustomModel string             `json:"session_custom_model"`
	SessionCustomArgs  string             `json:"session_custom_args"`
	SessionCustomEnv   map[string]string  `json:"session_custom_env"`
	SSHRemoteConfig    *ssh.SessionConfig `json:"ssh_remote_config"`
}

type argsResponse struct {
	Command string `json:"command"`
	args.Resolution
	SSHRemoteID    string `json:"ssh_remote_id,omitempty"`
	SSHStdinScript string `json:"ssh_stdin_script,omitempty"`
	PromptViaStdin bool   `json:"prompt_via_stdin,omitempty"`
}

// buildArgs previews the argv a spawn would use for the given intent.
func (s *Server) buildArgs(c *gin.Context) {
	var req argsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	def, err := agents.Lookup(req.AgentID)
	if err != nil {
		s.fail(c, err, "unknown agent")
		return
	}
	stored, err := s.deps.Settings.AgentConfig(c.Request.Context(), def.ID)
	if err != nil {
		s.fail(c, err, "load agent config failed")
		return
	}

	var session ssh.SessionConfig
	if req.SSHRemoteConfig != nil {
		session = *req.SSHRemoteConfig
	}
	remote, err := ssh.Resolve(c.Request.Context(), s.deps.Settings, session)
	if err != nil {
		s.fail(c, err, "resolve ssh remote failed")
		return
	}

	argv := args.BuildAgentArgs(def, args.Options{
		Prompt:         req.Prompt,
		Cwd:            req.Cwd,
		ModelID:        req.ModelID,
		AgentSessionID: req.AgentSessionID,
		ReadOnlyMode:   req.ReadOnlyMode,
		PromptViaStdin: req.PromptViaStdin || ssh.UseStdinFor(remote, def, req.Prompt),
	})
	res, err := args.ApplyAgentConfigOverrides(def, argv, args.Overrides{
		AgentConfig:        stored,
		SessionCustomModel: req.SessionCustomModel,
		SessionCustomArgs:  req.SessionCustomArgs,
		SessionCustomEnv:   req.SessionCustomEnv,
	})
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	command := def.Executable()
	if stored.CustomPath != "" {
		command = stored.CustomPath
	}
	resp := argsResponse{Command: command, Resolution: res, PromptViaStdin: req.PromptViaStdin}
	if remote != nil {
		sshCmd, err := ssh.WrapAgent(remote, ssh.AgentCommand{
			Def:    def,
			Args:   res.Args,
			Cwd:    session.WorkingDir(req.Cwd),
			Env:    res.EffectiveCustomEnv,
			Prompt: req.Prompt,
		})
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		resp.Command = sshCmd.Command
		resp.Args = sshCmd.Args
		resp.SSHRemoteID = remote.ID
		resp.SSHStdinScript = sshCmd.StdinScript
		resp.PromptViaStdin = sshCmd.PromptViaStdin
	}
	c.JSON(http.StatusOK, resp)
}
