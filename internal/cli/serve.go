package cli

import (
	"github.com/spf13/cobra"

	"github.com/chr1syy/maestro/internal/common/logger"
	"github.com/chr1syy/maestro/internal/daemon"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the maestrod HTTP API in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(); err != nil {
				return err
			}
			log, err := a.daemonLogger()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			logger.SetDefault(log)
			return daemon.Run(cmd.Context(), a.cfg, log)
		},
	}
}
