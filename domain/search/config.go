package search

import (
	"sort"
	"time"

	"automl/domain/core"
)

// Defaults applied when the experiment file leaves a global unset.
const (
	DefaultTrialBudget    = 10
	DefaultTimeout        = 600 * time.Second
	DefaultTargetColumn   = "churn"
	DefaultExperimentName = "Default_Experiment"
	DefaultCVFolds        = 3
	DefaultSeed           = 42
	DefaultSampler        = "bayesian"
	DefaultRegisteredName = "Production_Model"
)

// Architecture is one entry under models: in the experiment file.
type Architecture struct {
	Name   string
	Active bool
	Grid   map[string][]any
	Space  Space
}

// NewArchitecture infers the typed space of a grid.
func NewArchitecture(name string, active bool, grid map[string][]any) (Architecture, error) {
	space, err := NewSpace(grid)
	if err != nil {
		return Architecture{}, err
	}
	return Architecture{Name: name, Active: active, Grid: grid, Space: space}, nil
}

// Config is the loaded experiment definition. It is not modified after
// loading; overrides return copies.
type Config struct {
	Models                map[string]Architecture
	TrialBudget           int
	Timeout               time.Duration
	TargetColumn          string
	ExperimentName        string
	CVFolds               int
	Seed                  int64
	Sampler               string
	DropColumns           []string
	ColumnMapping         map[string]string
	FailFast              bool
	ParallelArchitectures bool
	RegisteredModelName   string
}

// ActiveArchitectures returns the active entries ordered by name.
func (c Config) ActiveArchitectures() []Architecture {
	var out []Architecture
	for _, a := range c.Models {
		if a.Active {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// WithTrialBudget returns a copy with the trial budget replaced.
func (c Config) WithTrialBudget(n int) Config {
	c.TrialBudget = n
	return c
}

// SpaceCheck checks one architecture's space against its model parameters.
// It returns an unknown-architecture error for unregistered names.
type SpaceCheck func(arch string, space Space) error

// Validate checks globals and runs check on every active architecture, so
// unknown models and bad grids fail before any trial. Inactive entries are
// ignored.
func (c Config) Validate(check SpaceCheck) error {
	if c.TrialBudget < 1 {
		return core.NewConfigurationError("n_trials must be >= 1, got %d", c.TrialBudget)
	}
	if c.Timeout <= 0 {
		return core.NewConfigurationError("timeout_seconds must be > 0, got %s", c.Timeout)
	}
	if c.CVFolds < 2 {
		return core.NewConfigurationError("cv_folds must be >= 2, got %d", c.CVFolds)
	}
	if c.TargetColumn == "" {
		return core.NewConfigurationError("target_column must not be empty")
	}
	switch c.Sampler {
	case "bayesian", "random":
	default:
		return core.NewConfigurationError("unknown sampler %q (want bayesian or random)", c.Sampler)
	}
	if check == nil {
		return nil
	}
	for _, a := range c.ActiveArchitectures() {
		if err := check(a.Name, a.Space); err != nil {
			return err
		}
	}
	return nil
}
