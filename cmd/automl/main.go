package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"automl/internal"
	"automl/internal/config"
	"automl/internal/container"
	"automl/internal/errors"
)

type rootOptions struct {
	envFile  string
	logLevel string
	logger   *internal.Logger
	cfg      *config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(errors.ExitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "automl",
		Short:         "Hyperparameter search and model selection for tabular classification",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(opts.envFile); err != nil && opts.envFile != ".env" {
				return errors.Wrapf(err, "failed to load %s", opts.envFile)
			}
			level := opts.logLevel
			if level == "" {
				level = os.Getenv("LOG_LEVEL")
			}
			opts.logger = internal.NewLogger(internal.ParseLogLevel(level))

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Environment file to load before reading configuration")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: ERROR|WARN|INFO|DEBUG|TRACE (default from LOG_LEVEL)")

	rootCmd.AddCommand(
		newRunCmd(opts),
		newProfileCmd(opts),
		newRunsCmd(opts),
		newRegistryCmd(opts),
		newTrackingCmd(opts),
	)
	return rootCmd
}

// open builds the dependency container for commands that touch storage.
func (o *rootOptions) open(ctx context.Context) (*container.Container, error) {
	return container.New(ctx, o.cfg, o.logger)
}
