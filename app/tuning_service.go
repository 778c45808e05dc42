package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"automl/domain/core"
	"automl/domain/dataset"
	"automl/domain/run"
	"automl/domain/search"
	"automl/internal"
	"automl/internal/models"
	"automl/internal/scoring"
	searchPkg "automl/internal/search"
	"automl/internal/validation"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// ObjectiveFactory builds the objective of one architecture's study.
type ObjectiveFactory func(arch string, cfg search.Config, ds *dataset.Dataset) searchPkg.Objective

// StudySummary describes how one architecture's study ended.
type StudySummary struct {
	Architecture string            `json:"architecture"`
	State        search.StudyState `json:"state"`
	Trials       []search.Trial    `json:"trials"`
	Best         *search.Trial     `json:"best,omitempty"`
	Error        string            `json:"error,omitempty"`
	Duration     time.Duration     `json:"duration"`
}

// TuningResult is the outcome of one sweep over all active architectures.
type TuningResult struct {
	Experiment string               `json:"experiment"`
	Studies    []StudySummary       `json:"studies"`
	Runs       []run.Run            `json:"runs"`
	Ranked     run.RankedResults    `json:"ranked"`
	Winner     *run.RegisteredModel `json:"winner,omitempty"`
	Validation validation.Report    `json:"validation"`
}

// TuningService orchestrates validation, one study per active architecture,
// run tracking and winner promotion.
type TuningService struct {
	factory      *models.Factory
	tracker      *RunTracker
	selector     *Selector
	validator    *validation.DatasetValidator
	newObjective ObjectiveFactory
	clock        core.Clock
	logger       *internal.Logger
}

// TuningOption customises a TuningService
type TuningOption func(*TuningService)

// WithObjectiveFactory replaces cross-validated scoring, mainly for tests.
func WithObjectiveFactory(f ObjectiveFactory) TuningOption {
	return func(s *TuningService) { s.newObjective = f }
}

// WithClock sets the clock that studies use for their time budget.
func WithClock(c core.Clock) TuningOption {
	return func(s *TuningService) { s.clock = c }
}

// NewTuningService creates the orchestration service
func NewTuningService(factory *models.Factory, tracker *RunTracker, selector *Selector, logger *internal.Logger, opts ...TuningOption) *TuningService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	s := &TuningService{
		factory:   factory,
		tracker:   tracker,
		selector:  selector,
		validator: validation.NewDatasetValidator(logger),
		clock:     core.SystemClock,
		logger:    logger,
	}
	s.newObjective = s.crossValidatedObjective
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TuningService) crossValidatedObjective(arch string, cfg search.Config, ds *dataset.Dataset) searchPkg.Objective {
	ev := NewEvaluator(s.factory.WithSeed(cfg.Seed), arch, ds, scoring.CVOptions{Folds: cfg.CVFolds, Seed: cfg.Seed})
	return ev.Evaluate
}

// RunFromFrame validates a raw frame, builds the dataset and runs the sweep.
// Data and configuration errors abort before any study starts.
func (s *TuningService) RunFromFrame(ctx context.Context, cfg search.Config, frame *dataset.Frame) (*TuningResult, error) {
	if err := cfg.Validate(s.factory.CheckSpace); err != nil {
		return nil, err
	}
	report, err := s.validator.ValidateDataset(frame, cfg.TargetColumn)
	if err != nil {
		return nil, err
	}
	ds, err := dataset.New(frame, dataset.Options{Target: cfg.TargetColumn, DropColumns: cfg.DropColumns})
	if err != nil {
		return nil, err
	}
	if ds.DroppedRows > 0 {
		s.logger.Warn("[Tuning] dropped %d rows with a missing %s label", ds.DroppedRows, cfg.TargetColumn)
	}
	res, err := s.Run(ctx, cfg, ds)
	if res != nil {
		res.Validation = report
	}
	return res, err
}

// Run searches every active architecture, finalizes one run per
// architecture and promotes the best. A failed study becomes a degraded run
// unless cfg.FailFast is set, in which case the sweep aborts.
//
// When every run is degraded the result is returned together with an
// ErrNoCandidates error.
func (s *TuningService) Run(ctx context.Context, cfg search.Config, ds *dataset.Dataset) (*TuningResult, error) {
	if err := cfg.Validate(s.factory.CheckSpace); err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer("automl/app").Start(ctx, "tuning.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("experiment", cfg.ExperimentName),
		attribute.Int("rows", ds.NumRows()),
	)

	archs := cfg.ActiveArchitectures()
	s.logger.Info("[Tuning] experiment %s: %d rows, %d numeric / %d categorical features, architectures %v",
		cfg.ExperimentName, ds.NumRows(), len(ds.Roles.Numeric), len(ds.Roles.Categorical), names(archs))

	studies := make([]StudySummary, len(archs))
	runs := make([]run.Run, len(archs))
	each := func(ctx context.Context, i int) error {
		start := time.Now()
		summary, r, err := s.runArchitecture(ctx, cfg, ds, archs[i])
		summary.Duration = time.Since(start)
		studies[i] = summary
		runs[i] = r
		return err
	}

	if cfg.ParallelArchitectures {
		g, gctx := errgroup.WithContext(ctx)
		for i := range archs {
			i := i
			g.Go(func() error { return each(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	} else {
		for i := range archs {
			if err := each(ctx, i); err != nil {
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
		}
	}

	result := &TuningResult{
		Experiment: cfg.ExperimentName,
		Studies:    studies,
		Runs:       runs,
		Ranked:     run.Rank(runs),
	}
	winner, err := s.selector.SelectAndPromote(ctx, runs)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}
	result.Winner = &winner
	return result, nil
}

func (s *TuningService) runArchitecture(ctx context.Context, cfg search.Config, ds *dataset.Dataset, arch search.Architecture) (StudySummary, run.Run, error) {
	summary := StudySummary{Architecture: arch.Name}

	sampler, err := searchPkg.NewSampler(cfg.Sampler, cfg.Seed)
	if err != nil {
		return summary, run.Run{}, err
	}
	study, err := searchPkg.NewStudy(searchPkg.StudyOptions{
		Architecture: arch.Name,
		Space:        arch.Space,
		TrialBudget:  cfg.TrialBudget,
		Timeout:      cfg.Timeout,
		Sampler:      sampler,
		Seed:         cfg.Seed,
		Clock:        s.clock,
		Logger:       s.logger,
	}, s.newObjective(arch.Name, cfg, ds))
	if err != nil {
		return summary, run.Run{}, err
	}

	rc := run.Context{
		Experiment: cfg.ExperimentName,
		Name:       RunName(arch.Name),
		Tags: map[string]string{
			"sampler":  sampler.Name(),
			"cv_folds": fmt.Sprint(cfg.CVFolds),
		},
	}

	best, studyErr := study.Run(ctx)
	summary.State = study.State()
	summary.Trials = study.Trials()
	rc.Tags["trials"] = fmt.Sprint(len(summary.Trials))
	rc.Tags["stop_reason"] = study.State().String()

	if studyErr != nil {
		summary.Error = studyErr.Error()
		if cfg.FailFast || errors.Is(studyErr, context.Canceled) || errors.Is(studyErr, context.DeadlineExceeded) ||
			core.IsConfigurationError(studyErr) {
			return summary, run.Run{}, studyErr
		}
		r, err := s.tracker.RecordFailure(ctx, rc, arch.Name, studyErr)
		return summary, r, err
	}
	summary.Best = &best

	r, err := s.tracker.Finalize(ctx, rc, best, ds)
	return summary, r, err
}

func names(archs []search.Architecture) []string {
	out := make([]string, len(archs))
	for i, a := range archs {
		out[i] = a.Name
	}
	return out
}
