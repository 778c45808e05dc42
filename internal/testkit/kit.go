package testkit

import (
	"testing"
	"time"

	"automl/domain/dataset"
	"automl/domain/search"

	"github.com/stretchr/testify/require"
)

// ChurnDataset builds a labelled churn dataset with customer_id dropped.
func ChurnDataset(t testing.TB, config ChurnGeneratorConfig) *dataset.Dataset {
	t.Helper()
	frame, err := NewChurnDataGenerator(config).GenerateFrame()
	require.NoError(t, err)
	ds, err := dataset.New(frame, dataset.Options{Target: "churn", DropColumns: []string{"customer_id"}})
	require.NoError(t, err)
	return ds
}

// SmallChurnDataset is a quick 120-row dataset for unit tests.
func SmallChurnDataset(t testing.TB) *dataset.Dataset {
	cfg := DefaultChurnConfig()
	cfg.CustomerCount = 120
	return ChurnDataset(t, cfg)
}

// SearchConfig returns a valid config with the given architectures active.
// Grids are kept small so tests run quickly.
func SearchConfig(t testing.TB, active ...string) search.Config {
	t.Helper()
	grids := map[string]map[string][]any{
		"random_forest": {"n_estimators": {5, 15}, "max_depth": {2, 6}},
		"xgboost":       {"n_estimators": {5, 15}, "learning_rate": {0.1, 0.3}, "max_depth": {2, 4}},
	}
	on := map[string]bool{}
	for _, a := range active {
		on[a] = true
	}

	models := map[string]search.Architecture{}
	for name, grid := range grids {
		arch, err := search.NewArchitecture(name, on[name], grid)
		require.NoError(t, err)
		models[name] = arch
	}
	return search.Config{
		Models:              models,
		TrialBudget:         2,
		Timeout:             time.Minute,
		TargetColumn:        "churn",
		ExperimentName:      "test_experiment",
		CVFolds:             search.DefaultCVFolds,
		Seed:                search.DefaultSeed,
		Sampler:             "random",
		DropColumns:         []string{"customer_id"},
		RegisteredModelName: search.DefaultRegisteredName,
	}
}
