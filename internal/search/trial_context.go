package search

import (
	"math"
	"math/rand"

	"automl/domain/core"
	"automl/domain/search"
)

// TrialContext hands out parameter values for one trial. Values come from
// the sampler's joint proposal; a parameter the proposal lacks, or whose
// proposed value falls outside the requested domain, is drawn uniformly.
type TrialContext struct {
	Number   int
	proposal search.Assignment
	params   search.Assignment
	rng      *rand.Rand
}

func NewTrialContext(number int, proposal search.Assignment, rng *rand.Rand) *TrialContext {
	return &TrialContext{
		Number:   number,
		proposal: proposal,
		params:   search.Assignment{},
		rng:      rng,
	}
}

// SuggestFloat returns a value in [low, high].
func (t *TrialContext) SuggestFloat(name string, low, high float64) (float64, error) {
	if low > high || math.IsNaN(low) || math.IsNaN(high) {
		return 0, core.NewConfigurationError("parameter %q has invalid range [%v, %v]", name, low, high)
	}
	v, ok := t.proposal[name].(float64)
	if !ok || v < low || v > high {
		v = low + t.rng.Float64()*(high-low)
	}
	t.params[name] = v
	return v, nil
}

// SuggestInt returns a value in [low, high] inclusive.
func (t *TrialContext) SuggestInt(name string, low, high int) (int, error) {
	if low > high {
		return 0, core.NewConfigurationError("parameter %q has invalid range [%d, %d]", name, low, high)
	}
	v, ok := t.proposal[name].(int)
	if !ok || v < low || v > high {
		v = low + t.rng.Intn(high-low+1)
	}
	t.params[name] = v
	return v, nil
}

// SuggestCategorical returns one of choices.
func (t *TrialContext) SuggestCategorical(name string, choices []any) (any, error) {
	if len(choices) == 0 {
		return nil, core.NewConfigurationError("parameter %q has no choices", name)
	}
	if v, ok := t.proposal[name]; ok {
		for _, c := range choices {
			if c == v {
				t.params[name] = v
				return v, nil
			}
		}
	}
	v := choices[t.rng.Intn(len(choices))]
	t.params[name] = v
	return v, nil
}

// Params returns a copy of every value suggested so far.
func (t *TrialContext) Params() search.Assignment {
	return t.params.Clone()
}
