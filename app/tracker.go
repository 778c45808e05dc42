package app

import (
	"context"
	"fmt"

	"automl/domain/dataset"
	"automl/domain/run"
	"automl/domain/search"
	"automl/internal"
	"automl/internal/models"
	"automl/internal/pipeline"
	"automl/ports"
)

// RunTracker turns the best trial of a study into a persisted run.
type RunTracker struct {
	factory   *models.Factory
	artifacts ports.ArtifactStore
	runs      ports.RunLogWriterPort
	logger    *internal.Logger
}

// NewRunTracker creates a run tracker
func NewRunTracker(factory *models.Factory, artifacts ports.ArtifactStore, runs ports.RunLogWriterPort, logger *internal.Logger) *RunTracker {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &RunTracker{factory: factory, artifacts: artifacts, runs: runs, logger: logger}
}

// RunName is the run name recorded for an architecture's tuned model.
func RunName(arch string) string {
	return arch + "_optimized"
}

// Finalize refits the best assignment on the whole dataset, stores the
// fitted pipeline and logs the run with the trial's cross-validated score.
// The score is never re-measured on the refit data.
func (t *RunTracker) Finalize(ctx context.Context, rc run.Context, best search.Trial, ds *dataset.Dataset) (run.Run, error) {
	model, err := t.factory.Create(best.Architecture, best.Params)
	if err != nil {
		return run.Run{}, err
	}
	p := pipeline.Build(model, ds.Roles.Numeric, ds.Roles.Categorical).Describe(best.Architecture, best.Params)
	if err := p.FitDataset(ctx, ds); err != nil {
		return run.Run{}, fmt.Errorf("refit %s on %d rows: %w", best.Architecture, ds.NumRows(), err)
	}
	data, err := p.Marshal()
	if err != nil {
		return run.Run{}, err
	}

	ref, err := t.artifacts.Put(ctx, rc.Experiment+"/"+rc.Name, data)
	if err != nil {
		return run.Run{}, fmt.Errorf("store artifact for %s: %w", rc.Name, err)
	}
	t.logger.Debug("[RunTracker] stored %s (%d bytes, sha256 %s)", ref.URI, len(data), ref.Checksum.Short())

	r, err := t.log(ctx, run.Record{
		Context:      rc,
		Architecture: best.Architecture,
		Params:       best.Params,
		Metrics:      map[string]float64{run.MetricName: best.Score},
		Artifact:     ref,
		Status:       run.StatusFinished,
	})
	if err != nil {
		return run.Run{}, err
	}
	t.logger.Info("[RunTracker] logged run %s (%s) f1_macro=%.4f", r.ID, r.Name, r.Score)
	return r, nil
}

// RecordFailure logs a degraded run for an architecture whose study failed.
// Such runs have no artifact and are never ranked.
func (t *RunTracker) RecordFailure(ctx context.Context, rc run.Context, arch string, cause error) (run.Run, error) {
	r, err := t.log(ctx, run.Record{
		Context:      rc,
		Architecture: arch,
		Status:       run.StatusFailed,
		Error:        cause.Error(),
	})
	if err != nil {
		return run.Run{}, err
	}
	t.logger.Warn("[RunTracker] logged failed run %s (%s): %v", r.ID, r.Name, cause)
	return r, nil
}

func (t *RunTracker) log(ctx context.Context, rec run.Record) (run.Run, error) {
	r, err := t.runs.LogRun(ctx, rec)
	if err != nil {
		return run.Run{}, fmt.Errorf("log run %s: %w", rec.Context.Name, err)
	}
	if r.ID.IsEmpty() {
		return run.Run{}, fmt.Errorf("log run %s: tracking store returned no run id", rec.Context.Name)
	}
	return r, nil
}
