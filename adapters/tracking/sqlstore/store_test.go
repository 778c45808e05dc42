package sqlstore

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automl/domain/core"
	"automl/domain/run"
	"automl/ports"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", strings.ReplaceAll(t.Name(), "/", "_"))
	s, err := Open(context.Background(), "sqlite3", dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	tick := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.WithClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	})
	return s
}

func finishedRecord(arch string, score float64) run.Record {
	return run.Record{
		Context:      run.Context{Experiment: "churn", Name: arch + "_optimized", Tags: map[string]string{"sampler": "random"}},
		Architecture: arch,
		Params:       map[string]any{"n_estimators": 100, "criterion": "gini", "max_depth": nil},
		Metrics:      map[string]float64{run.MetricName: score},
		Artifact:     run.ArtifactRef{URI: "file:///tmp/" + arch, Checksum: core.NewHash([]byte(arch))},
		Status:       run.StatusFinished,
	}
}

func TestLogAndGetRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	logged, err := s.LogRun(ctx, finishedRecord("random_forest", 0.81))
	require.NoError(t, err)
	require.False(t, logged.ID.IsEmpty())

	got, err := s.GetRun(ctx, logged.ID)
	require.NoError(t, err)
	assert.Equal(t, "churn", got.Experiment)
	assert.Equal(t, "random_forest_optimized", got.Name)
	assert.InDelta(t, 0.81, got.Score, 1e-12)
	assert.Equal(t, "gini", got.Params["criterion"])
	assert.EqualValues(t, 100, got.Params["n_estimators"])
	assert.Nil(t, got.Params["max_depth"])
	assert.Equal(t, "random", got.Tags["sampler"])
	assert.Equal(t, logged.Artifact, got.Artifact)
	assert.Equal(t, run.StatusFinished, got.Status)
	assert.False(t, got.Degraded())
}

func TestFailedRunRoundTripsAsDegraded(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	logged, err := s.LogRun(ctx, run.Record{
		Context:      run.Context{Experiment: "churn", Name: "xgboost_optimized"},
		Architecture: "xgboost",
		Status:       run.StatusFailed,
		Error:        "all trials failed",
	})
	require.NoError(t, err)

	got, err := s.GetRun(ctx, logged.ID)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got.Score))
	assert.True(t, got.Degraded())
	assert.Equal(t, "all trials failed", got.Error)
}

func TestGetRunNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRun(context.Background(), core.NewRunID())
	assert.True(t, core.IsNotFoundError(err))
}

func TestListRunsFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, arch := range []string{"random_forest", "xgboost", "random_forest"} {
		_, err := s.LogRun(ctx, finishedRecord(arch, 0.7))
		require.NoError(t, err)
	}
	other := finishedRecord("xgboost", 0.6)
	other.Context.Experiment = "other"
	_, err := s.LogRun(ctx, other)
	require.NoError(t, err)

	all, err := s.ListRuns(ctx, ports.RunFilters{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	churn, err := s.ListRuns(ctx, ports.RunFilters{Experiment: "churn"})
	require.NoError(t, err)
	assert.Len(t, churn, 3)

	rf, err := s.ListRuns(ctx, ports.RunFilters{Experiment: "churn", Architecture: "random_forest"})
	require.NoError(t, err)
	assert.Len(t, rf, 2)

	page, err := s.ListRuns(ctx, ports.RunFilters{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, all[1].ID, page[0].ID)

	tail, err := s.ListRuns(ctx, ports.RunFilters{Offset: 3})
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "other", tail[0].Experiment)
}

func TestRegisterAsProductionVersions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.GetRegisteredModel(ctx, "Production_Model")
	assert.True(t, core.IsNotFoundError(err))

	first, err := s.LogRun(ctx, finishedRecord("random_forest", 0.8))
	require.NoError(t, err)
	second, err := s.LogRun(ctx, finishedRecord("xgboost", 0.85))
	require.NoError(t, err)

	v1, err := s.RegisterAsProduction(ctx, first, "Production_Model")
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Version)

	again, err := s.RegisterAsProduction(ctx, first, "Production_Model")
	require.NoError(t, err)
	assert.Equal(t, v1.Version, again.Version)

	v2, err := s.RegisterAsProduction(ctx, second, "Production_Model")
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)

	current, err := s.GetRegisteredModel(ctx, "Production_Model")
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.RunID)
	assert.Equal(t, second.Artifact, current.Artifact)

	versions, err := s.ListVersions(ctx, "Production_Model")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].Version)
	assert.Equal(t, first.ID, versions[1].RunID)
}

func TestRegisterRejectsRunWithoutArtifact(t *testing.T) {
	s := openTestStore(t)
	_, err := s.RegisterAsProduction(context.Background(), run.Run{ID: core.NewRunID()}, "Production_Model")
	assert.Error(t, err)
}
