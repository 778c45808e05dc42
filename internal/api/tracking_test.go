package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automl/adapters/memory"
	"automl/domain/core"
	"automl/domain/run"
)

type apiFixture struct {
	api      *TrackingAPI
	runs     *memory.RunLog
	registry *memory.Registry
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	runs := memory.NewRunLog()
	registry := memory.NewRegistry()
	return &apiFixture{
		api:      NewTrackingAPI(runs, registry, "Production_Model", nil),
		runs:     runs,
		registry: registry,
	}
}

func (f *apiFixture) log(t *testing.T, arch string, score float64, status run.Status) run.Run {
	t.Helper()
	rec := run.Record{
		Context:      run.Context{Experiment: "churn", Name: arch + "_optimized"},
		Architecture: arch,
		Params:       map[string]any{"n_estimators": 50},
		Status:       status,
	}
	if status == run.StatusFinished {
		rec.Metrics = map[string]float64{run.MetricName: score}
		rec.Artifact = run.ArtifactRef{URI: "mem://" + arch}
	} else {
		rec.Error = "study failed"
	}
	r, err := f.runs.LogRun(context.Background(), rec)
	require.NoError(t, err)
	return r
}

func (f *apiFixture) get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.api.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestListRunsIncludesDegradedRuns(t *testing.T) {
	f := newAPIFixture(t)
	f.log(t, "random_forest", 0.8, run.StatusFinished)
	f.log(t, "xgboost", 0, run.StatusFailed)

	w := f.get("/api/runs?experiment=churn")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Runs  []map[string]interface{} `json:"runs"`
		Count int                      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Nil(t, body.Runs[1]["score"])

	w = f.get("/api/runs?architecture=xgboost")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
}

func TestListRunsRejectsBadPaging(t *testing.T) {
	f := newAPIFixture(t)
	assert.Equal(t, http.StatusBadRequest, f.get("/api/runs?limit=abc").Code)
	assert.Equal(t, http.StatusBadRequest, f.get("/api/runs?offset=-1").Code)
}

func TestGetRun(t *testing.T) {
	f := newAPIFixture(t)
	r := f.log(t, "random_forest", 0.8, run.StatusFinished)

	w := f.get("/api/runs/" + r.ID.String())
	require.Equal(t, http.StatusOK, w.Code)
	var got run.Run
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, r.ID, got.ID)
	assert.InDelta(t, 0.8, got.Score, 1e-12)

	assert.Equal(t, http.StatusNotFound, f.get("/api/runs/"+core.NewRunID().String()).Code)
}

func TestLeaderboardFormats(t *testing.T) {
	f := newAPIFixture(t)
	f.log(t, "random_forest", 0.8, run.StatusFinished)
	best := f.log(t, "xgboost", 0.9, run.StatusFinished)
	_, err := f.registry.RegisterAsProduction(context.Background(), best, "Production_Model")
	require.NoError(t, err)

	w := f.get("/api/experiments/churn/leaderboard")
	require.Equal(t, http.StatusOK, w.Code)
	var lb struct {
		Ranked []run.Run `json:"ranked"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lb))
	require.Len(t, lb.Ranked, 2)
	assert.Equal(t, best.ID, lb.Ranked[0].ID)

	md := f.get("/api/experiments/churn/leaderboard?format=md")
	assert.Contains(t, md.Body.String(), "xgboost (production)")

	html := f.get("/api/experiments/churn/leaderboard?format=html")
	assert.Contains(t, html.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, html.Body.String(), "<table>")

	assert.Equal(t, http.StatusBadRequest, f.get("/api/experiments/churn/leaderboard?format=pdf").Code)
}

func TestRegistryRoutes(t *testing.T) {
	f := newAPIFixture(t)
	assert.Equal(t, http.StatusNotFound, f.get("/api/registry/Production_Model").Code)

	r := f.log(t, "xgboost", 0.9, run.StatusFinished)
	_, err := f.registry.RegisterAsProduction(context.Background(), r, "Production_Model")
	require.NoError(t, err)

	w := f.get("/api/registry/Production_Model")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), r.ID.String())

	w = f.get("/api/registry/Production_Model/versions")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":1`)
}
