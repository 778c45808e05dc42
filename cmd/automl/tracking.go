package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"automl/domain/run"
	"automl/ports"
)

func newRunsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded runs",
	}

	var filters ports.RunFilters
	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			filters.Status = run.Status(status)
			runs, err := c.Runs.ListRuns(cmd.Context(), filters)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN ID\tEXPERIMENT\tNAME\tSTATUS\tF1_MACRO\tCREATED")
			for _, r := range runs {
				score := "-"
				if !r.Degraded() {
					score = fmt.Sprintf("%.4f", r.Score)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Experiment, r.Name, r.Status, score, r.CreatedAt)
			}
			return w.Flush()
		},
	}
	list.Flags().StringVar(&filters.Experiment, "experiment", "", "Filter by experiment name")
	list.Flags().StringVar(&filters.Architecture, "architecture", "", "Filter by architecture")
	list.Flags().StringVar(&status, "status", "", "Filter by status (FINISHED|FAILED)")
	list.Flags().IntVar(&filters.Limit, "limit", 50, "Maximum runs to show (0 for all)")

	cmd.AddCommand(list)
	return cmd
}

func newRegistryCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect registered production models",
	}

	show := &cobra.Command{
		Use:   "show [name]",
		Short: "Show the current version and history of a registered model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			name := opts.cfg.Registry.ModelName
			if len(args) == 1 {
				name = args[0]
			}
			current, err := c.Registry.GetRegisteredModel(cmd.Context(), name)
			if err != nil {
				return err
			}
			versions, err := c.Registry.ListVersions(cmd.Context(), name)
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{"current": current, "versions": versions})
		},
	}

	cmd.AddCommand(show)
	return cmd
}

func newTrackingCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tracking",
		Short: "Tracking store utilities",
	}

	var port string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only tracking API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			if port == "" {
				port = opts.cfg.Server.TrackingPort
			}
			srv := &http.Server{Addr: ":" + port, Handler: c.TrackingAPI(), ReadHeaderTimeout: 10 * time.Second}

			errCh := make(chan error, 1)
			go func() {
				opts.logger.Info("Tracking API listening on :%s", port)
				errCh <- srv.ListenAndServe()
			}()
			select {
			case err := <-errCh:
				if stderrors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.cfg.Server.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	serve.Flags().StringVar(&port, "port", "", "Listen port (default from TRACKING_PORT)")

	cmd.AddCommand(serve)
	return cmd
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
