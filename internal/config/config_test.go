package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automl/domain/core"
	"automl/domain/search"
)

const sampleYAML = `
experiment_name: churn_sweep
target_column: churn
timeout_seconds: 120
n_trials: 5
models:
  random_forest:
    active: true
    param_grid:
      n_estimators: [50, 100, 200]
      criterion: ["gini", "entropy"]
  xgboost:
    active: false
    param_grid:
      learning_rate: [0.01, 0.1]
      max_depth: [3, 6]
`

func TestParseSearchConfig(t *testing.T) {
	cfg, err := ParseSearchConfig([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "churn_sweep", cfg.ExperimentName)
	assert.Equal(t, 120*time.Second, cfg.Timeout)
	assert.Equal(t, 5, cfg.TrialBudget)
	assert.Equal(t, search.DefaultCVFolds, cfg.CVFolds)
	assert.Equal(t, "bayesian", cfg.Sampler)
	assert.Equal(t, []string{"customer_id"}, cfg.DropColumns)
	assert.Equal(t, "Production_Model", cfg.RegisteredModelName)

	rf := cfg.Models["random_forest"]
	require.True(t, rf.Active)
	require.Len(t, rf.Space, 2)
	assert.Equal(t, "criterion", rf.Space[0].Name)
	assert.Equal(t, search.Categorical, rf.Space[0].Kind)
	assert.Equal(t, search.Integer, rf.Space[1].Kind)
	assert.Equal(t, 50.0, rf.Space[1].Low)
	assert.Equal(t, 200.0, rf.Space[1].High)

	xgb := cfg.Models["xgboost"]
	assert.False(t, xgb.Active)
	assert.Equal(t, search.Continuous, xgb.Space[0].Kind)

	active := cfg.ActiveArchitectures()
	require.Len(t, active, 1)
	assert.Equal(t, "random_forest", active[0].Name)
}

func TestParseSearchConfigDefaults(t *testing.T) {
	cfg, err := ParseSearchConfig([]byte("models: {}\n"))
	require.NoError(t, err)
	assert.Equal(t, search.DefaultTrialBudget, cfg.TrialBudget)
	assert.Equal(t, search.DefaultTimeout, cfg.Timeout)
	assert.Equal(t, "churn", cfg.TargetColumn)
	assert.Equal(t, "Default_Experiment", cfg.ExperimentName)
	assert.Empty(t, cfg.ActiveArchitectures())
}

func TestParseSearchConfigMixedTypesRejected(t *testing.T) {
	_, err := ParseSearchConfig([]byte(`
models:
  random_forest:
    active: true
    param_grid:
      max_depth: [1, "a"]
`))
	require.Error(t, err)
	assert.True(t, core.IsConfigurationError(err))
}

func TestParseSearchConfigWidensIntEndpointToFloat(t *testing.T) {
	cfg, err := ParseSearchConfig([]byte(`
models:
  xgboost:
    active: true
    param_grid:
      learning_rate: [0.01, 1]
`))
	require.NoError(t, err)
	space := cfg.Models["xgboost"].Space
	require.Len(t, space, 1)
	assert.Equal(t, search.Continuous, space[0].Kind)
	assert.Equal(t, 0.01, space[0].Low)
	assert.Equal(t, 1.0, space[0].High)
}

func TestParseSearchConfigInvalidYAML(t *testing.T) {
	_, err := ParseSearchConfig([]byte("models: [unclosed"))
	assert.True(t, core.IsConfigurationError(err))
}

func TestLoadSearchConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	cfg, err := LoadSearchConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "churn_sweep", cfg.ExperimentName)

	_, err = LoadSearchConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, core.IsConfigurationError(err))
}

func TestZeroTrialBudgetFailsValidation(t *testing.T) {
	cfg, err := ParseSearchConfig([]byte("n_trials: 0\n"))
	require.NoError(t, err)
	assert.True(t, core.IsConfigurationError(cfg.Validate(nil)))
}

func TestLoadEnvConfig(t *testing.T) {
	t.Setenv("TRACKING_DRIVER", "sqlite3")
	t.Setenv("TRACKING_DSN", "file::memory:")
	t.Setenv("REGISTRY_BACKEND", "sql")
	t.Setenv("PORT", "9090")
	t.Setenv("OTEL_CONSOLE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "file::memory:", cfg.Tracking.DSN)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.True(t, cfg.Observability.ConsoleTracing)
	assert.Equal(t, "Production_Model", cfg.Registry.ModelName)
}

func TestLoadEnvConfigRejectsUnknownDriver(t *testing.T) {
	t.Setenv("TRACKING_DRIVER", "mongo")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadEnvConfigRejectsUnknownRegistry(t *testing.T) {
	t.Setenv("TRACKING_DRIVER", "sqlite3")
	t.Setenv("REGISTRY_BACKEND", "etcd")
	_, err := Load()
	assert.Error(t, err)
}
