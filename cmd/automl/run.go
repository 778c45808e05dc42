package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"automl/adapters/ingest"
	"automl/domain/core"
	"automl/internal/config"
	"automl/internal/profiling"
	"automl/internal/report"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		dataPath   string
		configPath string
		trials     int
		htmlPath   string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Tune every active architecture, record runs and promote the winner",
		Long: `Run the full pipeline: ingest, validate, search each active architecture,
log one run per architecture and register the best one as the production model.

Exit codes: 0 success, 2 configuration error, 3 data error, 4 no model trained.

Example: automl run --data data/raw/Churn_Modelling.csv --config experiments/config.yaml --trials 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), opts, dataPath, configPath, trials, htmlPath)
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "data/raw/Churn_Modelling.csv", "Path to dataset CSV or XLSX")
	cmd.Flags().StringVar(&configPath, "config", "experiments/config.yaml", "Path to experiment YAML")
	cmd.Flags().IntVar(&trials, "trials", 0, "Override n_trials from the config when > 0")
	cmd.Flags().StringVar(&htmlPath, "report", "", "Write an HTML leaderboard to this path")
	return cmd
}

func runPipeline(ctx context.Context, opts *rootOptions, dataPath, configPath string, trials int, htmlPath string) error {
	logger := opts.logger
	logger.Info("Starting AutoML Pipeline...")

	cfg, err := config.LoadSearchConfig(configPath)
	if err != nil {
		return err
	}
	if trials > 0 {
		cfg = cfg.WithTrialBudget(trials)
	}

	frame, err := ingest.NewDataReader(dataPath, ingest.MergeMapping(cfg.ColumnMapping), logger).ReadFrame(ctx)
	if err != nil {
		logger.Error("Data ingestion failed: %v", err)
		return err
	}
	logger.Info("Data loaded: %d rows, %d columns", frame.NumRows(), frame.NumColumns())

	c, err := opts.open(ctx)
	if err != nil {
		return err
	}
	defer c.Shutdown(context.Background())

	res, runErr := c.TuningService(cfg).RunFromFrame(ctx, cfg, frame)
	if res == nil {
		return runErr
	}

	lb := report.NewLeaderboard(res.Experiment, res.Runs, res.Winner)
	fmt.Fprintln(os.Stdout, lb.Markdown())
	if htmlPath != "" {
		if err := os.WriteFile(htmlPath, lb.HTML(), 0o644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		logger.Info("Leaderboard written to %s", htmlPath)
	}
	if core.IsNoCandidatesError(runErr) {
		logger.Error("No model was trained; the registry was left unchanged")
	}
	return runErr
}

func newProfileCmd(opts *rootOptions) *cobra.Command {
	var (
		dataPath string
		target   string
	)

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Print per-column statistics for a dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			frame, err := ingest.NewDataReader(dataPath, nil, opts.logger).ReadFrame(cmd.Context())
			if err != nil {
				return err
			}
			profiles := profiling.NewDataProfiler().ProfileFrame(frame, append([]string{target}, config.DefaultDropColumns...)...)
			return printJSON(profiles)
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "data/raw/Churn_Modelling.csv", "Path to dataset CSV or XLSX")
	cmd.Flags().StringVar(&target, "target", "churn", "Target column excluded from the profile")
	return cmd
}
