// Package tabnaming runs a short-lived read-only agent process that turns a
// user's first message into a tab name.
package tabnaming

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chr1syy/maestro/internal/agent/agents"
	"github.com/chr1syy/maestro/internal/agent/args"
	"github.com/chr1syy/maestro/internal/agent/ssh"
	"github.com/chr1syy/maestro/internal/common/logger"
	"github.com/chr1syy/maestro/internal/process"
)

// DefaultTimeout bounds one naming request.
const DefaultTimeout = 30 * time.Second

const sessionPrefix = "tab-naming-"

// Spawner is the subset of the process manager the generator needs.
type Spawner interface {
	Spawn(ctx context.Context, cfg process.Config) (*process.Info, error)
	Subscribe() *process.Subscription
	Kill(sessionID string) error
}

// AgentConfigSource returns stored per-agent user configuration.
type AgentConfigSource interface {
	AgentConfig(ctx context.Context, agentID string) (args.AgentConfig, error)
}

// Request is one naming request.
type Request struct {
	UserMessage            string             `json:"user_message"`
	AgentType              string             `json:"agent_type"`
	Cwd                    string             `json:"cwd"`
	SessionCustomModel     string             `json:"session_custom_model,omitempty"`
	SessionSSHRemoteConfig *ssh.SessionConfig `json:"session_ssh_remote_config,omitempty"`
}

// Generator produces tab names.
type Generator struct {
	spawner Spawner
	configs AgentConfigSource
	remotes ssh.RemoteStore
	logger  *logger.Logger
	timeout time.Duration
	prompt  string
}

// Option configures a Generator.
type Option func(*Generator)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithPrompt replaces DefaultPrompt.
func WithPrompt(prompt string) Option {
	return func(g *Generator) {
		if strings.TrimSpace(prompt) != "" {
			g.prompt = prompt
		}
	}
}

// NewGenerator creates a Generator. configs and remotes may be nil.
func NewGenerator(spawner Spawner, configs AgentConfigSource, remotes ssh.RemoteStore, log *logger.Logger, opts ...Option) *Generator {
	g := &Generator{
		spawner: spawner,
		configs: configs,
		remotes: remotes,
		logger:  log.WithFields(zap.String("component", "tab-naming")),
		timeout: DefaultTimeout,
		prompt:  DefaultPrompt,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GenerateTabName runs the naming agent and returns the extracted name.
// Every failure, including timeout and cancellation, yields ("", false).
func (g *Generator) GenerateTabName(ctx context.Context, req Request) (string, bool) {
	sessionID := sessionPrefix + uuid.New().String()
	log := g.logger.WithSessionID(sessionID).WithAgentID(req.AgentType)
	log.Info("Starting tab naming request", zap.Int("message_length", len(req.UserMessage)))

	cfg, err := g.buildConfig(ctx, sessionID, req)
	if err != nil {
		log.Warn("Tab naming request could not be prepared", zap.Error(err))
		return "", false
	}

	sub := g.spawner.Subscribe()
	defer sub.Close()

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	if _, err := g.spawner.Spawn(ctx, cfg); err != nil {
		log.Error("Tab naming request failed", zap.Error(err))
		_ = g.spawner.Kill(sessionID)
		return "", false
	}

	var out []string
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				_ = g.spawner.Kill(sessionID)
				return "", false
			}
			if ev.SessionID != sessionID {
				continue
			}
			switch ev.Type {
			case process.EventData:
				if ev.Stream != process.StreamStderr {
					out = append(out, ev.Data)
				}
			case process.EventExit:
				return g.finish(log, ev, strings.Join(out, "\n"))
			}
		case <-timer.C:
			log.Warn("Tab naming request timed out", zap.Duration("timeout", g.timeout))
			_ = g.spawner.Kill(sessionID)
			return "", false
		case <-ctx.Done():
			log.Debug("Tab naming request cancelled", zap.Error(ctx.Err()))
			_ = g.spawner.Kill(sessionID)
			return "", false
		}
	}
}

func (g *Generator) finish(log *logger.Logger, exit process.Event, output string) (string, bool) {
	if looksGeneric(output) {
		log.Warn("Agent returned a generic tab name candidate",
			zap.String("detected", truncate(strings.TrimSpace(output), 80)))
	}
	name, ok := ExtractTabName(output)
	exitCode := -1
	if exit.ExitCode != nil {
		exitCode = *exit.ExitCode
	}
	log.Info("Tab naming completed",
		zap.Int("exit_code", exitCode),
		zap.Int("output_length", len(output)),
		zap.String("tab_name", name))
	return name, ok
}

// buildConfig assembles the spawn configuration for a naming run.
func (g *Generator) buildConfig(ctx context.Context, sessionID string, req Request) (process.Config, error) {
	def, err := agents.Lookup(req.AgentType)
	if err != nil {
		return process.Config{}, err
	}
	if def.Capabilities.RequiresPTY || !def.Capabilities.SupportsBatchMode {
		return process.Config{}, fmt.Errorf("agent %s cannot run one-shot prompts", def.ID)
	}

	var stored args.AgentConfig
	if g.configs != nil {
		stored, err = g.configs.AgentConfig(ctx, def.ID)
		if err != nil {
			return process.Config{}, fmt.Errorf("load agent config: %w", err)
		}
	}

	var remote *ssh.RemoteConfig
	if req.SessionSSHRemoteConfig != nil {
		if g.remotes == nil {
			if req.SessionSSHRemoteConfig.Enabled && req.SessionSSHRemoteConfig.RemoteID != "" {
				return process.Config{}, errors.New("ssh remotes are not configured")
			}
		} else {
			remote, err = ssh.Resolve(ctx, g.remotes, *req.SessionSSHRemoteConfig)
			if err != nil {
				return process.Config{}, err
			}
		}
	}
	prompt := BuildPrompt(g.prompt, req.UserMessage)
	viaStdin := ssh.UseStdinFor(remote, def, prompt)
	baseArgs := slices.DeleteFunc(slices.Clone(def.BaseArgs), func(a string) bool {
		return a == "--dangerously-skip-permissions"
	})
	if baseArgs == nil {
		baseArgs = []string{}
	}

	model := args.ResolveModel(def, req.SessionCustomModel, stored.Model)
	argv := args.BuildAgentArgs(def, args.Options{
		BaseArgs:       baseArgs,
		Prompt:         prompt,
		Cwd:            req.Cwd,
		ModelID:        model,
		ReadOnlyMode:   true,
		PromptViaStdin: viaStdin,
	})
	res, err := args.ApplyAgentConfigOverrides(def, argv, args.Overrides{
		AgentConfig:        stored,
		SessionCustomModel: model,
	})
	if err != nil {
		return process.Config{}, err
	}
	argv = res.Args

	cliModel := model
	if cliModel != "" && !strings.Contains(cliModel, "/") && strings.Contains(def.DefaultModel, "/") {
		cliModel = def.DefaultModel
	}
	if def.Capabilities.SupportsModelSelection {
		argv = args.CanonicalizeModelFlag(def, argv, cliModel)
	}

	g.logger.Debug("Resolved tab naming invocation",
		zap.String("session_id", sessionID),
		zap.String("model", model),
		zap.String("cli_model", cliModel),
		zap.String("model_source", string(res.ModelSource)))

	command := def.Executable()
	if stored.CustomPath != "" {
		command = stored.CustomPath
	}
	cfg := process.Config{
		SessionID: sessionID,
		ToolType:  def.ID,
		Cwd:       req.Cwd,
		Command:   command,
		Args:      argv,
		Prompt:    prompt,
		CustomEnv: res.EffectiveCustomEnv,
	}

	if remote != nil {
		sshCmd, err := ssh.WrapAgent(remote, ssh.AgentCommand{
			Def:    def,
			Args:   argv,
			Cwd:    req.SessionSSHRemoteConfig.WorkingDir(req.Cwd),
			Env:    res.EffectiveCustomEnv,
			Prompt: prompt,
		})
		if err != nil {
			return process.Config{}, err
		}
		localCwd, err := os.Getwd()
		if err != nil {
			return process.Config{}, err
		}
		cfg.Command = sshCmd.Command
		cfg.Args = sshCmd.Args
		cfg.Cwd = localCwd
		cfg.CustomEnv = nil
		cfg.SSHRemoteID = remote.ID
		cfg.SSHRemoteHost = remote.Host
		cfg.SSHStdinScript = sshCmd.StdinScript
		cfg.SendPromptViaStdin = sshCmd.PromptViaStdin
	}
	return cfg, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
