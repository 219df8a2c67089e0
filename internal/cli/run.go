package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chr1syy/maestro/internal/daemon"
	"github.com/chr1syy/maestro/internal/process"
)

// exitInterrupted is reported when the run is cancelled by a signal.
const exitInterrupted = 130

func newRunCmd(a *app) *cobra.Command {
	var flags invocationFlags
	cmd := &cobra.Command{
		Use:   "run <agent-id>",
		Short: "Run an agent once with a prompt and stream its output",
		Long: "Run spawns the agent in batch mode under a local process manager, prints\n" +
			"its assistant text to stdout and exits with the agent's exit code.\n" +
			"With --format json every process event is printed as one JSON line.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			format, err := checkFormat(a.format)
			if err != nil {
				return err
			}
			if flags.prompt == "" {
				return errors.New("--prompt is required")
			}
			if err := a.load(); err != nil {
				return err
			}

			ctx := cmd.Context()
			svc, err := daemon.NewServices(ctx, a.cfg, a.log)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close(context.Background()) }()

			inv, err := resolveInvocation(ctx, svc.Settings, argv[0], &flags)
			if err != nil {
				return err
			}
			if inv.Def.Capabilities.RequiresPTY || !inv.Def.Capabilities.SupportsBatchMode {
				return fmt.Errorf("agent %s cannot run one-shot prompts", inv.Def.ID)
			}

			sub := svc.Manager.Subscribe()
			defer sub.Close()
			info, err := svc.Manager.Spawn(ctx, inv.Config)
			if err != nil {
				return err
			}
			a.log.Debug("Agent started",
				zap.String("session_id", info.SessionID),
				zap.Int("pid", info.PID),
				zap.Strings("args", info.Args))

			printer := eventPrinter{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr(), jsonLines: format == FormatJSON}
			for {
				select {
				case <-ctx.Done():
					_ = svc.Manager.Kill(info.SessionID)
					return &ExitError{Code: exitInterrupted}
				case ev, ok := <-sub.Events():
					if !ok {
						return errors.New("process manager closed")
					}
					if ev.SessionID != info.SessionID {
						continue
					}
					if err := printer.print(ev); err != nil {
						return err
					}
					if ev.Type == process.EventExit {
						if ev.ExitCode != nil && *ev.ExitCode != 0 {
							return &ExitError{Code: *ev.ExitCode}
						}
						return nil
					}
				}
			}
		},
	}
	flags.register(cmd)
	return cmd
}

// eventPrinter renders process events for a terminal or as JSON lines.
type eventPrinter struct {
	out       io.Writer
	errOut    io.Writer
	jsonLines bool
}

func (p eventPrinter) print(ev process.Event) error {
	if p.jsonLines {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(p.out, string(data))
		return err
	}

	var err error
	switch ev.Type {
	case process.EventData:
		if ev.Stream == process.StreamStderr {
			_, err = fmt.Fprintln(p.errOut, ev.Data)
		} else {
			_, err = fmt.Fprintln(p.out, ev.Data)
		}
	case process.EventError:
		if ev.Error != nil {
			_, err = fmt.Fprintf(p.errOut, "agent error (%s): %s\n", ev.Error.Type, ev.Error.Message)
		}
	case process.EventSessionID:
		_, err = fmt.Fprintf(p.errOut, "session: %s\n", ev.AgentSessionID)
	case process.EventUsage:
		if ev.Usage != nil {
			_, err = fmt.Fprintf(p.errOut, "usage: %d in / %d out tokens\n", ev.Usage.InputTokens, ev.Usage.OutputTokens)
		}
	}
	return err
}
