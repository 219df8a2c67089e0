package cli

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/chr1syy/maestro/internal/agent/agents"
	"github.com/chr1syy/maestro/internal/daemon"
)

type agentRow struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Binary       string              `json:"binary"`
	DefaultModel string              `json:"default_model,omitempty"`
	Capabilities agents.Capabilities `json:"capabilities"`
	Available    bool                `json:"available"`
	Path         string              `json:"path,omitempty"`
}

func newAgentsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List supported agents and whether their binaries are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := checkFormat(a.format)
			if err != nil {
				return err
			}
			if err := a.load(); err != nil {
				return err
			}

			customPaths := make(map[string]string)
			for id, o := range a.cfg.Agents {
				if o.CustomPath != "" {
					customPaths[id] = o.CustomPath
				}
			}
			detector, err := agents.NewDetector(daemon.DetectionTTL, customPaths)
			if err != nil {
				return err
			}
			defer detector.Close()

			rows := make([]agentRow, 0, len(agents.All()))
			for _, def := range agents.All() {
				det, err := detector.Resolve(cmd.Context(), def)
				if err != nil {
					return fmt.Errorf("detect %s: %w", def.ID, err)
				}
				rows = append(rows, agentRow{
					ID:           def.ID,
					Name:         def.Name,
					Binary:       def.Executable(),
					DefaultModel: def.DefaultModel,
					Capabilities: def.Capabilities,
					Available:    det.Available,
					Path:         det.Path,
				})
			}
			return writeAgents(cmd, format, rows)
		},
	}
}

func writeAgents(cmd *cobra.Command, format string, rows []agentRow) error {
	w := cmd.OutOrStdout()
	switch format {
	case FormatJSON:
		return writeJSON(w, rows)
	case FormatPlain:
		for _, r := range rows {
			if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Binary, yesNo(r.Available), r.Path); err != nil {
				return err
			}
		}
		return nil
	}

	tw := newTable(w, table.Row{"ID", "Name", "Binary", "Modes", "Default Model", "Installed", "Path"})
	for _, r := range rows {
		tw.AppendRow(table.Row{r.ID, r.Name, r.Binary, modes(r.Capabilities), dash(r.DefaultModel), yesNo(r.Available), dash(r.Path)})
	}
	tw.Render()
	return nil
}

func modes(c agents.Capabilities) string {
	var out []string
	if c.RequiresPTY {
		out = append(out, "pty")
	}
	if c.SupportsBatchMode {
		out = append(out, "batch")
	}
	if c.SupportsStreamJSONInput {
		out = append(out, "stream-json")
	}
	if c.SupportsResume {
		out = append(out, "resume")
	}
	if c.SupportsReadOnly {
		out = append(out, "read-only")
	}
	if len(out) == 0 {
		return "-"
	}
	return strings.Join(out, ",")
}
