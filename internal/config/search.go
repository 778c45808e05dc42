package config

import (
	"bytes"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"automl/domain/core"
	"automl/domain/search"
)

// DefaultDropColumns are excluded from features unless the file overrides them.
var DefaultDropColumns = []string{"customer_id"}

type architectureFile struct {
	Active    bool             `yaml:"active"`
	ParamGrid map[string][]any `yaml:"param_grid"`
}

type searchFile struct {
	Models                map[string]architectureFile `yaml:"models"`
	TargetColumn          string                      `yaml:"target_column"`
	ExperimentName        string                      `yaml:"experiment_name"`
	TimeoutSeconds        *float64                    `yaml:"timeout_seconds"`
	NTrials               *int                        `yaml:"n_trials"`
	CVFolds               *int                        `yaml:"cv_folds"`
	Seed                  *int64                      `yaml:"seed"`
	Sampler               string                      `yaml:"sampler"`
	DropColumns           []string                    `yaml:"drop_columns"`
	ColumnMapping         map[string]string           `yaml:"column_mapping"`
	FailFast              bool                        `yaml:"fail_fast"`
	ParallelArchitectures bool                        `yaml:"parallel_architectures"`
	RegisteredModelName   string                      `yaml:"registered_model_name"`
}

// LoadSearchConfig reads an experiment file from disk.
func LoadSearchConfig(path string) (search.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return search.Config{}, core.NewConfigurationError("cannot read config %s: %v", path, err)
	}
	return ParseSearchConfig(data)
}

// ParseSearchConfig decodes YAML into a search.Config, applying defaults for
// omitted globals and inferring every parameter space. Architectures are not
// checked against a factory here; see search.Config.Validate.
func ParseSearchConfig(data []byte) (search.Config, error) {
	var file searchFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return search.Config{}, core.NewConfigurationError("invalid config YAML: %v", err)
	}

	cfg := search.Config{
		Models:                make(map[string]search.Architecture, len(file.Models)),
		TrialBudget:           search.DefaultTrialBudget,
		Timeout:               search.DefaultTimeout,
		TargetColumn:          orDefault(file.TargetColumn, search.DefaultTargetColumn),
		ExperimentName:        orDefault(file.ExperimentName, search.DefaultExperimentName),
		CVFolds:               search.DefaultCVFolds,
		Seed:                  search.DefaultSeed,
		Sampler:               orDefault(file.Sampler, search.DefaultSampler),
		DropColumns:           file.DropColumns,
		ColumnMapping:         file.ColumnMapping,
		FailFast:              file.FailFast,
		ParallelArchitectures: file.ParallelArchitectures,
		RegisteredModelName:   orDefault(file.RegisteredModelName, search.DefaultRegisteredName),
	}
	if file.DropColumns == nil {
		cfg.DropColumns = append([]string(nil), DefaultDropColumns...)
	}
	if file.TimeoutSeconds != nil {
		cfg.Timeout = time.Duration(*file.TimeoutSeconds * float64(time.Second))
	}
	if file.NTrials != nil {
		cfg.TrialBudget = *file.NTrials
	}
	if file.CVFolds != nil {
		cfg.CVFolds = *file.CVFolds
	}
	if file.Seed != nil {
		cfg.Seed = *file.Seed
	}

	for name, a := range file.Models {
		arch, err := search.NewArchitecture(name, a.Active, a.ParamGrid)
		if err != nil {
			return search.Config{}, err
		}
		cfg.Models[name] = arch
	}
	return cfg, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
