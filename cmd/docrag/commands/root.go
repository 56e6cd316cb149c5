// Package commands defines all Cobra CLI commands for the docrag binary.
package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/docrag-go/internal/audit"
	"github.com/54b3r/docrag-go/internal/config"
	"github.com/54b3r/docrag-go/internal/logging"
	"github.com/54b3r/docrag-go/internal/tracing"
)

// invocation carries state resolved once in the root pre-run and shared by
// every subcommand.
type invocation struct {
	// configPath holds the --config flag value for YAML config file override.
	configPath string
	// loadedConfigPath is the resolved config file, for audit logging.
	loadedConfigPath string

	log      *slog.Logger
	settings *config.Settings
	started  time.Time
	// flush drains the tracing handler; nil when tracing is disabled.
	flush func()
}

// Execute builds the command tree, runs it and writes the closing audit entry.
func Execute(ctx context.Context) error {
	inv := &invocation{}
	cmd, err := newRootCmd(inv).ExecuteContextC(ctx)

	if inv.flush != nil {
		inv.flush()
	}
	if inv.log != nil && cmd != nil {
		audit.LogCommandEnd(ctx, inv.log, cmd.Name(), inv.started, err)
	}
	return err
}

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&invocation{})
}

func newRootCmd(inv *invocation) *cobra.Command {
	root := &cobra.Command{
		Use:   "docrag",
		Short: "docrag: ask questions about your documents",
		Long: `docrag indexes PDF and text documents into a vector index and answers
questions about them with a chat model, citing the passages it used.

The chat backend is selected via MODEL_PROVIDER and the index via
VECTOR_BACKEND, either from the environment, a .env file in the working
directory, or a YAML config file (~/.docrag/config.yaml).
See 'docrag --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			inv.started = time.Now()
			boot := logging.New()

			if _, err := config.LoadDotEnv(".env", boot); err != nil {
				return err
			}
			path, err := config.Load(inv.configPath, boot)
			if err != nil {
				return err
			}
			inv.loadedConfigPath = path

			// Rebuilt so LOG_LEVEL/LOG_FORMAT from the config file apply.
			log := logging.New()
			inv.log = log

			ctx := logging.WithLogger(cmd.Context(), log)
			cmd.SetContext(ctx)

			audit.LogCommandStart(ctx, log, cmd.Name(), inv.loadedConfigPath)

			settings, err := config.FromEnv()
			if err != nil {
				return err
			}
			inv.settings = settings

			tcfg := tracing.ConfigFromEnv()
			if flush := tracing.Setup(tcfg); flush != nil {
				inv.flush = flush
				log.Debug("langfuse tracing enabled", slog.String("host", tcfg.Host))
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&inv.configPath, "config", "", "Path to YAML config file (default: ~/.docrag/config.yaml)")

	root.AddCommand(
		newIngestCmd(inv),
		newAskCmd(inv),
		newDocsCmd(inv),
		newHistoryCmd(inv),
		newServeCmd(inv),
		NewVersionCmd(),
	)

	return root
}
