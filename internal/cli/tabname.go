package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chr1syy/maestro/internal/agent/ssh"
	"github.com/chr1syy/maestro/internal/daemon"
	"github.com/chr1syy/maestro/internal/tabnaming"
)

func newTabNameCmd(a *app) *cobra.Command {
	var (
		cwd       string
		model     string
		sshRemote string
	)
	cmd := &cobra.Command{
		Use:   "tab-name <agent-id> <message...>",
		Short: "Ask an agent for a short tab name describing a message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, argv []string) error {
			if err := a.load(); err != nil {
				return err
			}
			if cwd == "" {
				var err error
				if cwd, err = os.Getwd(); err != nil {
					return err
				}
			}

			svc, err := daemon.NewServices(cmd.Context(), a.cfg, a.log)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close(context.Background()) }()

			req := tabnaming.Request{
				UserMessage:        strings.Join(argv[1:], " "),
				AgentType:          argv[0],
				Cwd:                cwd,
				SessionCustomModel: model,
			}
			if sshRemote != "" {
				req.SessionSSHRemoteConfig = &ssh.SessionConfig{Enabled: true, RemoteID: sshRemote}
			}
			name, ok := svc.TabNamer.GenerateTabName(cmd.Context(), req)
			if !ok {
				return errors.New("no tab name produced")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), name)
			return err
		},
	}
	cmd.Flags().StringVar(&cwd, "cwd", "", "working directory (default: current directory)")
	cmd.Flags().StringVarP(&model, "model", "m", "", "model override")
	cmd.Flags().StringVar(&sshRemote, "ssh-remote", "", "run on this SSH remote id")
	return cmd
}
