package search

import (
	"context"
	"math"
	"math/rand"
	"time"

	"automl/domain/core"
	"automl/domain/search"
	"automl/internal"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "automl/internal/search"

// Objective scores one assignment; higher is better.
type Objective func(ctx context.Context, params search.Assignment) (float64, error)

// StudyOptions configure a Study.
type StudyOptions struct {
	Architecture string
	Space        search.Space
	TrialBudget  int
	Timeout      time.Duration
	Sampler      Sampler
	Seed         int64
	// Clock defaults to the wall clock; tests inject a fake.
	Clock  core.Clock
	Logger *internal.Logger
}

// Study drives the search loop of one architecture as an explicit state
// machine: Created -> Running -> Exhausted | TimedOut | Failed.
//
// The wall-clock budget only gates starting a trial; a trial that has
// started always runs to completion.
type Study struct {
	opts      StudyOptions
	objective Objective
	rng       *rand.Rand
	logger    *internal.Logger
	tracer    trace.Tracer

	trialCounter  metric.Int64Counter
	trialDuration metric.Float64Histogram

	state   search.StudyState
	started time.Time
	trials  []search.Trial
	best    int
	err     error
}

// NewStudy validates options and returns a study in the Created state.
func NewStudy(opts StudyOptions, objective Objective) (*Study, error) {
	if opts.TrialBudget < 1 {
		return nil, core.NewConfigurationError("%s: trial budget must be >= 1, got %d", opts.Architecture, opts.TrialBudget)
	}
	if opts.Timeout <= 0 {
		return nil, core.NewConfigurationError("%s: timeout must be > 0, got %s", opts.Architecture, opts.Timeout)
	}
	if opts.Sampler == nil {
		return nil, core.NewConfigurationError("%s: no sampler", opts.Architecture)
	}
	if objective == nil {
		return nil, core.NewConfigurationError("%s: no objective", opts.Architecture)
	}
	if opts.Clock == nil {
		opts.Clock = core.SystemClock
	}
	logger := opts.Logger
	if logger == nil {
		logger = internal.DefaultLogger
	}

	meter := otel.Meter(instrumentationName)
	counter, _ := meter.Int64Counter("automl.trials",
		metric.WithDescription("Trials evaluated, by architecture and outcome"))
	duration, _ := meter.Float64Histogram("automl.trial.duration",
		metric.WithDescription("Wall-clock time of one trial evaluation"), metric.WithUnit("s"))

	return &Study{
		opts:          opts,
		objective:     objective,
		rng:           rand.New(rand.NewSource(opts.Seed)),
		logger:        logger,
		tracer:        otel.Tracer(instrumentationName),
		trialCounter:  counter,
		trialDuration: duration,
		state:         search.StateCreated,
		best:          -1,
	}, nil
}

func (s *Study) State() search.StudyState { return s.state }
func (s *Study) IsDone() bool             { return s.state.Terminal() }
func (s *Study) Err() error               { return s.err }
func (s *Study) Architecture() string     { return s.opts.Architecture }

// Trials returns the recorded trials in order.
func (s *Study) Trials() []search.Trial {
	return append([]search.Trial(nil), s.trials...)
}

// Best returns the highest-scoring trial; ties go to the earliest.
func (s *Study) Best() (search.Trial, bool) {
	if s.best < 0 {
		return search.Trial{}, false
	}
	return s.trials[s.best], true
}

// budgetExhausted moves the study to a terminal state when either budget is
// spent. The trial count is checked first.
func (s *Study) budgetExhausted() bool {
	switch {
	case len(s.trials) >= s.opts.TrialBudget:
		s.state = search.StateExhausted
	case s.opts.Clock().Sub(s.started) >= s.opts.Timeout:
		s.state = search.StateTimedOut
		s.logger.Info("[Study] %s stopped by timeout after %d trials", s.opts.Architecture, len(s.trials))
	default:
		return false
	}
	return true
}

func (s *Study) fail(err error) error {
	s.state = search.StateFailed
	s.err = err
	s.logger.Error("[Study] %s failed: %v", s.opts.Architecture, err)
	return err
}

// Step runs at most one trial and reports whether the study is finished.
// Calling Step on a finished study is a no-op.
func (s *Study) Step(ctx context.Context) (bool, error) {
	if s.IsDone() {
		return true, nil
	}
	if s.state == search.StateCreated {
		s.state = search.StateRunning
		s.started = s.opts.Clock()
		s.logger.Debug("[Study] %s started with %s sampler (budget %d trials, %s)",
			s.opts.Architecture, s.opts.Sampler.Name(), s.opts.TrialBudget, s.opts.Timeout)
	}
	if s.budgetExhausted() {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return true, s.fail(err)
	}

	number := len(s.trials)
	ctx, span := s.tracer.Start(ctx, "study.trial", trace.WithAttributes(
		attribute.String("architecture", s.opts.Architecture),
		attribute.Int("trial", number),
	))
	defer span.End()

	proposal := s.opts.Sampler.Propose(s.opts.Space)
	tc := NewTrialContext(number, proposal, rand.New(rand.NewSource(s.rng.Int63())))
	params, err := Suggest(tc, s.opts.Space)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return true, s.fail(err)
	}

	s.logger.Trace("[Study] %s trial %d proposal %v", s.opts.Architecture, number, params)
	start := s.opts.Clock()
	score, err := s.objective(ctx, params)
	elapsed := s.opts.Clock().Sub(start)
	attrs := metric.WithAttributes(attribute.String("architecture", s.opts.Architecture))
	s.trialDuration.Record(ctx, elapsed.Seconds(), attrs)

	if err == nil && (math.IsNaN(score) || math.IsInf(score, 0)) {
		err = core.NewDataError("objective returned non-finite score %v", score)
	}
	if err != nil {
		if !core.IsTrialEvaluationError(err) {
			err = core.NewTrialEvaluationError(s.opts.Architecture, number, err)
		}
		s.trialCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("architecture", s.opts.Architecture), attribute.String("status", "failed")))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return true, s.fail(err)
	}

	trial := search.Trial{
		Architecture: s.opts.Architecture,
		Number:       number,
		Params:       params,
		Score:        score,
		Duration:     elapsed,
	}
	s.trials = append(s.trials, trial)
	s.opts.Sampler.Tell(trial)
	if s.best < 0 || score > s.trials[s.best].Score {
		s.best = number
	}
	s.trialCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("architecture", s.opts.Architecture), attribute.String("status", "ok")))
	span.SetAttributes(attribute.Float64("score", score))
	s.logger.Info("[Study] %s trial %d: f1_macro=%.4f params=%v (%s)",
		s.opts.Architecture, number, score, params, elapsed.Round(time.Millisecond))

	return s.budgetExhausted(), nil
}

// Run steps until the study is finished and returns the best trial.
func (s *Study) Run(ctx context.Context) (search.Trial, error) {
	ctx, span := s.tracer.Start(ctx, "study.run", trace.WithAttributes(
		attribute.String("architecture", s.opts.Architecture),
	))
	defer span.End()

	for {
		done, err := s.Step(ctx)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return search.Trial{}, err
		}
		if done {
			break
		}
	}
	best, ok := s.Best()
	if !ok {
		return search.Trial{}, core.NewTrialEvaluationError(s.opts.Architecture, 0, errNoTrials)
	}
	span.SetAttributes(attribute.Int("trials", len(s.trials)), attribute.String("state", s.state.String()))
	s.logger.Info("[Study] %s finished (%s): best trial %d f1_macro=%.4f",
		s.opts.Architecture, s.state, best.Number, best.Score)
	return best, nil
}
