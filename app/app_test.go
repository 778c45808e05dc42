package app

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"automl/adapters/memory"
	"automl/domain/core"
	"automl/domain/dataset"
	"automl/domain/run"
	"automl/domain/search"
	"automl/internal/models"
	"automl/internal/pipeline"
	"automl/internal/scoring"
	searchPkg "automl/internal/search"
	"automl/internal/testkit"
	"automl/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	runs      *memory.RunLog
	registry  *memory.Registry
	artifacts *memory.ArtifactStore
	factory   *models.Factory
	selector  *Selector
	svc       *TuningService
}

func newFixture(opts ...TuningOption) *fixture {
	f := &fixture{
		runs:      memory.NewRunLog(),
		registry:  memory.NewRegistry(),
		artifacts: memory.NewArtifactStore(),
		factory:   models.NewFactory(),
	}
	tracker := NewRunTracker(f.factory, f.artifacts, f.runs, nil)
	f.selector = NewSelector(f.registry, search.DefaultRegisteredName, nil)
	f.svc = NewTuningService(f.factory, tracker, f.selector, nil, opts...)
	return f
}

// fixedScores returns an objective factory scoring each architecture with a
// constant, or failing when the score is negative.
func fixedScores(scores map[string]float64) ObjectiveFactory {
	return func(arch string, cfg search.Config, ds *dataset.Dataset) searchPkg.Objective {
		return func(ctx context.Context, p search.Assignment) (float64, error) {
			if scores[arch] < 0 {
				return 0, errors.New("model diverged")
			}
			return scores[arch], nil
		}
	}
}

func TestScenarioSingleArchitecture(t *testing.T) {
	ds := testkit.ChurnDataset(t, testkit.DefaultChurnConfig())
	rf, err := search.NewArchitecture("random_forest", true, map[string][]any{"n_estimators": {50, 100}})
	require.NoError(t, err)
	cfg := testkit.SearchConfig(t)
	cfg.Models = map[string]search.Architecture{"random_forest": rf}
	cfg.Timeout = 60 * time.Second
	cfg = cfg.WithTrialBudget(3)

	f := newFixture()
	res, err := f.svc.Run(context.Background(), cfg, ds)
	require.NoError(t, err)

	all, err := f.runs.ListRuns(context.Background(), portsFilter(cfg.ExperimentName))
	require.NoError(t, err)
	require.Len(t, all, 1)
	r := all[0]
	assert.Equal(t, "random_forest", r.Architecture)
	assert.Equal(t, "random_forest_optimized", r.Name)
	assert.GreaterOrEqual(t, r.Score, 0.0)
	assert.LessOrEqual(t, r.Score, 1.0)
	assert.Len(t, res.Studies[0].Trials, 3)
	assert.Equal(t, search.StateExhausted, res.Studies[0].State)
	assert.Equal(t, res.Studies[0].Best.Score, r.Score, "the run records the CV score of the best trial")

	require.NotNil(t, res.Winner)
	assert.Equal(t, r.ID, res.Winner.RunID)
}

func TestScenarioRankingPromotesBest(t *testing.T) {
	cfg := testkit.SearchConfig(t, "random_forest", "xgboost")
	f := newFixture(WithObjectiveFactory(fixedScores(map[string]float64{"random_forest": 0.80, "xgboost": 0.75})))

	res, err := f.svc.Run(context.Background(), cfg, testkit.SmallChurnDataset(t))
	require.NoError(t, err)
	require.Len(t, res.Runs, 2)
	assert.Equal(t, "random_forest", res.Ranked[0].Architecture)

	prod, err := f.registry.GetRegisteredModel(context.Background(), search.DefaultRegisteredName)
	require.NoError(t, err)
	assert.Equal(t, res.Ranked[0].ID, prod.RunID)
	assert.Equal(t, res.Ranked[0].Artifact, prod.Artifact)
}

func TestInactiveArchitectureProducesNothing(t *testing.T) {
	var evaluated []string
	factory := func(arch string, cfg search.Config, ds *dataset.Dataset) searchPkg.Objective {
		evaluated = append(evaluated, arch)
		return func(ctx context.Context, p search.Assignment) (float64, error) { return 0.5, nil }
	}
	f := newFixture(WithObjectiveFactory(factory))
	cfg := testkit.SearchConfig(t, "xgboost")

	res, err := f.svc.Run(context.Background(), cfg, testkit.SmallChurnDataset(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"xgboost"}, evaluated)
	for _, r := range res.Runs {
		assert.NotEqual(t, "random_forest", r.Architecture)
	}
	rfRuns, err := f.runs.ListRuns(context.Background(), portsArchFilter("random_forest"))
	require.NoError(t, err)
	assert.Empty(t, rfRuns)
}

func TestNoActiveArchitectures(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Run(context.Background(), testkit.SearchConfig(t), testkit.SmallChurnDataset(t))
	assert.True(t, core.IsNoCandidatesError(err))
	require.NotNil(t, res)
	assert.Empty(t, res.Runs)
	assert.Equal(t, 0, f.registry.RegisterCalls)
}

func TestFailedStudyIsIsolated(t *testing.T) {
	cfg := testkit.SearchConfig(t, "random_forest", "xgboost")
	f := newFixture(WithObjectiveFactory(fixedScores(map[string]float64{"random_forest": -1, "xgboost": 0.6})))

	res, err := f.svc.Run(context.Background(), cfg, testkit.SmallChurnDataset(t))
	require.NoError(t, err)
	require.Len(t, res.Runs, 2)

	var failed run.Run
	for _, r := range res.Runs {
		if r.Architecture == "random_forest" {
			failed = r
		}
	}
	assert.Equal(t, run.StatusFailed, failed.Status)
	assert.True(t, failed.Degraded())
	assert.Contains(t, failed.Error, "model diverged")
	assert.Equal(t, search.StateFailed, res.Studies[0].State)

	require.Len(t, res.Ranked, 1)
	assert.Equal(t, "xgboost", res.Ranked[0].Architecture)
	assert.Equal(t, res.Ranked[0].ID, res.Winner.RunID)
}

func TestFailFastAbortsSweep(t *testing.T) {
	cfg := testkit.SearchConfig(t, "random_forest", "xgboost")
	cfg.FailFast = true
	f := newFixture(WithObjectiveFactory(fixedScores(map[string]float64{"random_forest": -1, "xgboost": 0.6})))

	_, err := f.svc.Run(context.Background(), cfg, testkit.SmallChurnDataset(t))
	assert.True(t, core.IsTrialEvaluationError(err))
	assert.Equal(t, 0, f.registry.RegisterCalls)
}

func TestParallelArchitectures(t *testing.T) {
	cfg := testkit.SearchConfig(t, "random_forest", "xgboost")
	cfg.ParallelArchitectures = true
	f := newFixture(WithObjectiveFactory(fixedScores(map[string]float64{"random_forest": 0.7, "xgboost": 0.9})))

	res, err := f.svc.Run(context.Background(), cfg, testkit.SmallChurnDataset(t))
	require.NoError(t, err)
	assert.Equal(t, "xgboost", res.Ranked[0].Architecture)
	assert.Equal(t, "random_forest", res.Studies[0].Architecture, "summaries keep name order")
}

func TestUnknownActiveArchitectureAbortsBeforeSearch(t *testing.T) {
	cfg := testkit.SearchConfig(t, "random_forest")
	svm, err := search.NewArchitecture("svm", true, map[string][]any{"c": {1.0}})
	require.NoError(t, err)
	cfg.Models["svm"] = svm

	f := newFixture()
	_, err = f.svc.Run(context.Background(), cfg, testkit.SmallChurnDataset(t))
	assert.True(t, core.IsUnknownArchitectureError(err))
	assert.Equal(t, 0, f.artifacts.Len())
}

func TestBadGridAbortsBeforeAnyStudy(t *testing.T) {
	tests := []struct {
		name string
		arch string
		grid map[string][]any
	}{
		{"unknown key on later architecture", "xgboost", map[string][]any{"n_estimators": {5, 10}, "eta": {0.1, 0.3}}},
		{"endpoint outside schema", "random_forest", map[string][]any{"n_estimators": {0, 100}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testkit.SearchConfig(t, "random_forest", "xgboost")
			arch, err := search.NewArchitecture(tt.arch, true, tt.grid)
			require.NoError(t, err)
			cfg.Models[tt.arch] = arch

			f := newFixture()
			_, err = f.svc.Run(context.Background(), cfg, testkit.SmallChurnDataset(t))
			require.Error(t, err)
			assert.True(t, core.IsConfigurationError(err))

			logged, err := f.runs.ListRuns(context.Background(), ports.RunFilters{})
			require.NoError(t, err)
			assert.Empty(t, logged)
			assert.Equal(t, 0, f.artifacts.Len())
			assert.Equal(t, 0, f.registry.RegisterCalls)
		})
	}
}

func TestRunFromFrameRejectsBadData(t *testing.T) {
	f := newFixture()
	cfg := testkit.SearchConfig(t, "random_forest")

	frame, err := dataset.NewFrame([]string{"age", "exited"}, [][]string{{"30", "1"}})
	require.NoError(t, err)
	_, err = f.svc.RunFromFrame(context.Background(), cfg, frame)
	assert.True(t, core.IsDataError(err))
	assert.Equal(t, 0, f.artifacts.Len())
}

func TestSelectorEmptyRunsLeavesPointerUntouched(t *testing.T) {
	reg := memory.NewRegistry()
	sel := NewSelector(reg, "Production_Model", nil)

	_, err := sel.SelectAndPromote(context.Background(), nil)
	assert.True(t, core.IsNoCandidatesError(err))
	_, err = reg.GetRegisteredModel(context.Background(), "Production_Model")
	assert.True(t, core.IsNotFoundError(err))

	prior := run.Run{ID: "prior", Score: 0.7, Status: run.StatusFinished, Artifact: run.ArtifactRef{URI: "mem://prior"}}
	_, err = sel.SelectAndPromote(context.Background(), []run.Run{prior})
	require.NoError(t, err)
	_, err = sel.SelectAndPromote(context.Background(), []run.Run{})
	assert.True(t, core.IsNoCandidatesError(err))

	current, err := reg.GetRegisteredModel(context.Background(), "Production_Model")
	require.NoError(t, err)
	assert.Equal(t, core.RunID("prior"), current.RunID)
}

func TestSelectorIsIdempotent(t *testing.T) {
	reg := memory.NewRegistry()
	sel := NewSelector(reg, "Production_Model", nil)
	runs := []run.Run{
		{ID: "a", Score: 0.75, Status: run.StatusFinished, Artifact: run.ArtifactRef{URI: "mem://a"}},
		{ID: "b", Score: 0.80, Status: run.StatusFinished, Artifact: run.ArtifactRef{URI: "mem://b"}},
	}

	first, err := sel.SelectAndPromote(context.Background(), runs)
	require.NoError(t, err)
	second, err := sel.SelectAndPromote(context.Background(), runs)
	require.NoError(t, err)
	assert.Equal(t, first.Artifact, second.Artifact)
	assert.Equal(t, core.RunID("b"), second.RunID)
}

// The stored artifact, reloaded and applied to one CV fold's test rows,
// should score close to the recorded CV score. It was refit on all rows, so
// it is expected to do at least as well within tolerance.
func TestArtifactRoundTripMatchesFoldScore(t *testing.T) {
	ds := testkit.ChurnDataset(t, testkit.DefaultChurnConfig())
	cfg := testkit.SearchConfig(t, "random_forest")
	f := newFixture()

	res, err := f.svc.Run(context.Background(), cfg, ds)
	require.NoError(t, err)
	r := res.Ranked[0]

	rc, err := f.artifacts.Get(context.Background(), r.Artifact)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, r.Artifact.Checksum, core.NewHash(data))

	p, err := pipeline.Load(data, f.factory)
	require.NoError(t, err)

	folds, err := scoring.StratifiedKFold(ds.Labels, cfg.CVFolds, cfg.Seed)
	require.NoError(t, err)
	test := ds.Subset(folds[0].Test)
	pred, err := p.Predict(test.Features)
	require.NoError(t, err)

	acc := scoring.Accuracy(test.Labels, pred)
	assert.GreaterOrEqual(t, acc, r.Score-0.1)
}

func portsFilter(experiment string) ports.RunFilters {
	return ports.RunFilters{Experiment: experiment}
}

func portsArchFilter(arch string) ports.RunFilters {
	return ports.RunFilters{Architecture: arch}
}

func TestEvaluatorSurfacesUnknownArchitecture(t *testing.T) {
	ev := NewEvaluator(models.NewFactory(), "svm", testkit.SmallChurnDataset(t), scoring.CVOptions{Folds: 3, Seed: 42})
	_, err := ev.Evaluate(context.Background(), nil)
	assert.True(t, core.IsTrialEvaluationError(err))
	assert.True(t, core.IsUnknownArchitectureError(err))
}

func TestEvaluatorScoresInUnitInterval(t *testing.T) {
	ev := NewEvaluator(models.NewFactory(), "xgboost", testkit.SmallChurnDataset(t), scoring.CVOptions{Folds: 3, Seed: 42})
	res, err := ev.CrossValidate(context.Background(), search.Assignment{"n_estimators": 10, "max_depth": 3})
	require.NoError(t, err)
	assert.Len(t, res.FoldScores, 3)
	for _, s := range res.FoldScores {
		assert.True(t, s >= 0 && s <= 1)
	}
}
