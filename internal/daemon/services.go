// Package daemon wires the process manager, settings store, event bus and
// HTTP API into the maestrod service.
package daemon

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chr1syy/maestro/internal/agent/agents"
	"github.com/chr1syy/maestro/internal/agent/errpatterns"
	"github.com/chr1syy/maestro/internal/common/config"
	"github.com/chr1syy/maestro/internal/common/logger"
	"github.com/chr1syy/maestro/internal/events"
	"github.com/chr1syy/maestro/internal/process"
	"github.com/chr1syy/maestro/internal/settings/store"
	"github.com/chr1syy/maestro/internal/tabnaming"
)

// DetectionTTL is how long a found agent binary stays cached.
const DetectionTTL = 5 * time.Minute

// Services holds the collaborators shared by maestrod and the local CLI
// commands.
type Services struct {
	Config   *config.Config
	Logger   *logger.Logger
	Manager  *process.Manager
	Settings store.Repository
	Detector *agents.Detector
	TabNamer *tabnaming.Generator

	cleanups []func() error
}

// NewServices builds everything except the event bus and HTTP server.
// Close must be called to release the settings store and running processes.
func NewServices(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Services, error) {
	if err := errpatterns.LoadOverrides(cfg.ErrorPatterns.OverridePath); err != nil {
		return nil, fmt.Errorf("load error pattern overrides: %w", err)
	}

	s := &Services{Config: cfg, Logger: log}

	repo, closeRepo, err := store.Provide(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	s.Settings = repo
	s.cleanups = append(s.cleanups, closeRepo)

	customPaths := make(map[string]string, len(cfg.Agents))
	for id, o := range cfg.Agents {
		if o.CustomPath != "" {
			customPaths[id] = o.CustomPath
		}
	}
	detector, err := agents.NewDetector(DetectionTTL, customPaths)
	if err != nil {
		_ = s.runCleanups()
		return nil, err
	}
	s.Detector = detector

	s.Manager = process.NewManager(process.ManagerConfig{
		KillGracePeriod:  cfg.Process.KillGracePeriod(),
		BufferMaxBytes:   cfg.Process.BufferMaxBytes,
		RawFlushInterval: cfg.Process.RawFlushInterval(),
		TerminalCols:     cfg.Process.TerminalCols,
		TerminalRows:     cfg.Process.TerminalRows,
	}, log)

	s.TabNamer = tabnaming.NewGenerator(s.Manager, repo, repo, log,
		tabnaming.WithTimeout(cfg.TabNaming.Timeout()),
		tabnaming.WithPrompt(cfg.TabNaming.Prompt))

	return s, nil
}

// Close kills every managed process and releases the stores.
func (s *Services) Close(ctx context.Context) error {
	if err := s.Manager.KillAll(ctx); err != nil {
		s.Logger.Warn("Failed to kill all processes", zap.Error(err))
	}
	s.Manager.Close()
	s.Detector.Close()
	return s.runCleanups()
}

func (s *Services) runCleanups() error {
	var firstErr error
	for i := len(s.cleanups) - 1; i >= 0; i-- {
		if err := s.cleanups[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.cleanups = nil
	return firstErr
}

// ProvideBus connects the configured event bus and returns a bridge
// forwarding manager events onto it.
func (s *Services) ProvideBus() (*events.ProvidedBus, *events.Bridge, error) {
	provided, cleanup, err := events.Provide(s.Config, s.Logger)
	if err != nil {
		return nil, nil, err
	}
	s.cleanups = append(s.cleanups, cleanup)
	bridge := events.NewBridge(provided.Bus, s.Config.NATS.SubjectPrefix, s.Logger)
	return provided, bridge, nil
}
