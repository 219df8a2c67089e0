// Package cli implements the maestro command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chr1syy/maestro/internal/common/config"
	"github.com/chr1syy/maestro/internal/common/logger"
)

// ExitError carries a child process exit code out of a command.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

type app struct {
	configPath string
	format     string
	verbose    bool
	server     string

	cfg *config.Config
	log *logger.Logger
}

// load reads configuration and builds the CLI logger on first use. The CLI
// logs to stderr at warn level unless --verbose is set.
func (a *app) load() error {
	if a.cfg != nil {
		return nil
	}
	cfg, err := config.LoadWithPath(a.configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	level := "warn"
	if a.verbose {
		level = "debug"
	}
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      level,
		Format:     "console",
		OutputPath: "stderr",
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)
	a.cfg = cfg
	a.log = log
	return nil
}

// client returns a daemon client for --server or the configured address.
func (a *app) client() (*Client, error) {
	if err := a.load(); err != nil {
		return nil, err
	}
	addr := a.server
	if addr == "" {
		addr = a.cfg.Server.Addr()
	}
	return NewClient(addr), nil
}

// daemonLogger is used by serve, which honours the configured logging.
func (a *app) daemonLogger() (*logger.Logger, error) {
	lc := logger.LoggingConfig{
		Level:      a.cfg.Logging.Level,
		Format:     a.cfg.Logging.Format,
		OutputPath: a.cfg.Logging.OutputPath,
	}
	if a.verbose {
		lc.Level = "debug"
	}
	return logger.NewLogger(lc)
}

// NewRootCommand builds the maestro command tree.
func NewRootCommand(version string) *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "maestro",
		Short:         "Run and supervise AI coding agent CLIs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file or directory")
	root.PersistentFlags().StringVar(&a.format, "format", FormatTable, "output format: table, plain, json")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&a.server, "server", "", "maestrod address (default: server.host:server.port from config)")

	root.AddCommand(
		newAgentsCmd(a),
		newArgsCmd(a),
		newRunCmd(a),
		newTabNameCmd(a),
		newServeCmd(a),
		newPsCmd(a),
		newKillCmd(a),
		newWatchCmd(a),
	)
	return root
}

// Execute runs the command tree with args and returns the process exit code.
func Execute(version string, args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(version)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	fmt.Fprintln(stderr, "Error:", err)
	return 1
}
