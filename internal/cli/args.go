package cli

import (
	"fmt"

	"github.com/alessio/shellescape"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/chr1syy/maestro/internal/agent/launch"
	"github.com/chr1syy/maestro/internal/settings/store"
)

func newArgsCmd(a *app) *cobra.Command {
	var flags invocationFlags
	cmd := &cobra.Command{
		Use:   "args <agent-id>",
		Short: "Show the command line maestro would run for an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			format, err := checkFormat(a.format)
			if err != nil {
				return err
			}
			if err := a.load(); err != nil {
				return err
			}
			repo, cleanup, err := store.Provide(cmd.Context(), a.cfg, a.log)
			if err != nil {
				return err
			}
			defer func() { _ = cleanup() }()

			inv, err := resolveInvocation(cmd.Context(), repo, argv[0], &flags)
			if err != nil {
				return err
			}
			return writeInvocation(cmd, format, inv)
		},
	}
	flags.register(cmd)
	return cmd
}

func writeInvocation(cmd *cobra.Command, format string, inv *launch.Invocation) error {
	w := cmd.OutOrStdout()
	line := shellescape.QuoteCommand(append([]string{inv.Config.Command}, inv.Config.Args...))
	switch format {
	case FormatJSON:
		return writeJSON(w, map[string]any{
			"command":    inv.Config.Command,
			"args":       inv.Config.Args,
			"cwd":        inv.Config.Cwd,
			"resolution": inv.Resolution,
		})
	case FormatPlain:
		_, err := fmt.Fprintln(w, line)
		return err
	}

	tw := newTable(w, table.Row{"Field", "Value"})
	tw.AppendRow(table.Row{"Command", line})
	tw.AppendRow(table.Row{"Cwd", inv.Config.Cwd})
	tw.AppendRow(table.Row{"Model", fmt.Sprintf("%s (%s)", dash(inv.Resolution.Model), inv.Resolution.ModelSource)})
	tw.AppendRow(table.Row{"Custom args", string(inv.Resolution.CustomArgsSource)})
	tw.AppendRow(table.Row{"Env", fmt.Sprintf("%d vars (%s)", len(inv.Resolution.EffectiveCustomEnv), inv.Resolution.EnvSource)})
	if inv.Config.SSHRemoteID != "" {
		tw.AppendRow(table.Row{"SSH remote", fmt.Sprintf("%s (%s)", inv.Config.SSHRemoteID, inv.Config.SSHRemoteHost)})
	}
	tw.Render()
	return nil
}
