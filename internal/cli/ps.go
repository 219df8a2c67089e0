package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/chr1syy/maestro/internal/events"
	"github.com/chr1syy/maestro/internal/events/bus"
	"github.com/chr1syy/maestro/internal/process"
)

func newPsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ps",
		Short: "List processes running under maestrod",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := checkFormat(a.format)
			if err != nil {
				return err
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			procs, err := client.ListProcesses(cmd.Context())
			if err != nil {
				return err
			}
			return writeProcesses(cmd, format, procs, time.Now())
		},
	}
}

func writeProcesses(cmd *cobra.Command, format string, procs []process.Info, now time.Time) error {
	w := cmd.OutOrStdout()
	switch format {
	case FormatJSON:
		if procs == nil {
			procs = []process.Info{}
		}
		return writeJSON(w, procs)
	case FormatPlain:
		for _, p := range procs {
			if _, err := fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", p.SessionID, p.ToolType, p.PID, processMode(p)); err != nil {
				return err
			}
		}
		return nil
	}

	tw := newTable(w, table.Row{"Session", "Agent", "PID", "Mode", "Remote", "Agent Session", "Uptime", "Idle"})
	for _, p := range procs {
		tw.AppendRow(table.Row{
			p.SessionID,
			p.ToolType,
			p.PID,
			processMode(p),
			dash(p.SSHRemoteHost),
			dash(p.AgentSessionID),
			since(now, p.StartTime),
			since(now, p.LastActivity),
		})
	}
	if len(procs) == 0 {
		tw.AppendRow(table.Row{"(no processes)", "-", "-", "-", "-", "-", "-", "-"})
	}
	tw.Render()
	return nil
}

func processMode(p process.Info) string {
	switch {
	case p.IsTerminal:
		return "terminal"
	case p.IsStreamJSONMode:
		return "stream-json"
	case p.IsBatchMode:
		return "batch"
	default:
		return "interactive"
	}
}

func since(now, t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return now.Sub(t).Truncate(time.Second).String()
}

func newKillCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "kill [session-id...]",
		Short: "Kill processes running under maestrod",
		RunE: func(cmd *cobra.Command, argv []string) error {
			if !all && len(argv) == 0 {
				return errors.New("give at least one session id or --all")
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			if all {
				return client.KillAll(cmd.Context())
			}
			var errs []error
			for _, id := range argv {
				if err := client.Kill(cmd.Context(), id); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "kill every process")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var untilExit bool
	cmd := &cobra.Command{
		Use:   "watch [session-id]",
		Short: "Stream process events from maestrod",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			format, err := checkFormat(a.format)
			if err != nil {
				return err
			}
			sessionID := ""
			if len(argv) == 1 {
				sessionID = argv[0]
			}
			if untilExit && sessionID == "" {
				return errors.New("--until-exit needs a session id")
			}
			client, err := a.client()
			if err != nil {
				return err
			}

			printer := eventPrinter{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr(), jsonLines: format == FormatJSON}
			return client.Watch(cmd.Context(), sessionID, func(e *bus.Event) error {
				ev, err := events.DecodeProcessEvent(e)
				if err != nil {
					return err
				}
				if sessionID == "" && !printer.jsonLines && ev.Type == process.EventData {
					ev.Data = fmt.Sprintf("[%s] %s", ev.SessionID, ev.Data)
				}
				if err := printer.print(ev); err != nil {
					return err
				}
				if untilExit && ev.Type == process.EventExit {
					return errStopWatch
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&untilExit, "until-exit", false, "stop when the watched session exits")
	return cmd
}
