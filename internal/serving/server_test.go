package serving

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automl/adapters/memory"
	"automl/app"
	"automl/domain/run"
	"automl/domain/search"
	"automl/internal/models"
	"automl/internal/testkit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	server   *Server
	registry *memory.Registry
	tracker  *app.RunTracker
	record   map[string]string
}

func newFixture(t *testing.T, register bool) *fixture {
	t.Helper()
	factory := models.NewFactory()
	registry := memory.NewRegistry()
	artifacts := memory.NewArtifactStore()
	tracker := app.NewRunTracker(factory, artifacts, memory.NewRunLog(), nil)

	ds := testkit.SmallChurnDataset(t)
	f := &fixture{
		server:   NewServer(NewLoader(registry, artifacts, factory, "Production_Model"), nil),
		registry: registry,
		tracker:  tracker,
		record:   ds.Features.Row(0),
	}
	if register {
		f.promote(t, search.Assignment{"n_estimators": 10, "max_depth": 4})
		require.NoError(t, f.server.Load(context.Background()))
	}
	return f
}

func (f *fixture) promote(t *testing.T, params search.Assignment) run.Run {
	t.Helper()
	ctx := context.Background()
	r, err := f.tracker.Finalize(ctx, run.Context{Experiment: "serving_test", Name: "random_forest_optimized"},
		search.Trial{Architecture: "random_forest", Params: params, Score: 0.8}, testkit.SmallChurnDataset(t))
	require.NoError(t, err)
	_, err = f.registry.RegisterAsProduction(ctx, r, "Production_Model")
	require.NoError(t, err)
	return r
}

func (f *fixture) do(method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func TestPredictWithoutModelIs503(t *testing.T) {
	f := newFixture(t, false)
	err := f.server.Load(context.Background())
	require.Error(t, err)

	w := f.do(http.MethodPost, "/predict", []byte(`{"age": 42}`))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "Model is currently unavailable")
}

func TestPredictReturnsLabelAndProbability(t *testing.T) {
	f := newFixture(t, true)
	body, err := json.Marshal(f.record)
	require.NoError(t, err)

	w := f.do(http.MethodPost, "/predict", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Prediction  int      `json:"prediction"`
		Probability *float64 `json:"probability"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, []int{0, 1}, resp.Prediction)
	require.NotNil(t, resp.Probability)
	assert.GreaterOrEqual(t, *resp.Probability, 0.5)
	assert.LessOrEqual(t, *resp.Probability, 1.0)
}

func TestPredictAcceptsTypedJSON(t *testing.T) {
	f := newFixture(t, true)
	w := f.do(http.MethodPost, "/predict", []byte(`{
		"age": 42, "salary": 60000.0, "credit_score": 700, "account_balance": 50000.0,
		"num_products": 2, "has_credit_card": true, "is_active_member": false,
		"country": "Germany", "gender": "Female", "tenure": 5
	}`))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestPredictNullFieldIsImputed(t *testing.T) {
	f := newFixture(t, true)
	w := f.do(http.MethodPost, "/predict", []byte(`{
		"age": null, "salary": 60000.0, "credit_score": 700, "account_balance": 50000.0,
		"num_products": 2, "has_credit_card": true, "is_active_member": false,
		"country": null, "gender": "Female", "tenure": 5
	}`))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestPredictBadInputIs400(t *testing.T) {
	f := newFixture(t, true)

	cases := map[string]string{
		"invalid json":   `{"age": `,
		"not an object":  `[1, 2, 3]`,
		"nested value":   `{"age": {"years": 4}}`,
		"empty object":   `{}`,
		"missing fields": `{"age": 42}`,
		"non numeric":    `{"age": "old", "salary": 1, "credit_score": 1, "account_balance": 1, "num_products": 1, "has_credit_card": 1, "is_active_member": 1, "country": "France", "gender": "Male", "tenure": 1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := f.do(http.MethodPost, "/predict", []byte(body))
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestHealthReportsLoadedModel(t *testing.T) {
	f := newFixture(t, true)
	w := f.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["model_loaded"])
	assert.Equal(t, "random_forest", body["architecture"])
	assert.EqualValues(t, 1, body["version"])
}

func TestReloadPicksUpNewVersion(t *testing.T) {
	f := newFixture(t, true)
	second := f.promote(t, search.Assignment{"n_estimators": 5, "max_depth": 2})

	w := f.do(http.MethodPost, "/reload", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), second.ID.String())

	_, rm := f.server.current()
	assert.Equal(t, 2, rm.Version)
}

func TestReloadWithoutRegistrationIs503(t *testing.T) {
	f := newFixture(t, false)
	w := f.do(http.MethodPost, "/reload", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsRouteIsOptional(t *testing.T) {
	f := newFixture(t, false)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/metrics", nil).Code)

	s := NewServer(f.server.loader, nil, WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("automl_predictions_total 1\n"))
	})))
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "automl_predictions_total")
}
