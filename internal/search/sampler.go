package search

import (
	"math/rand"

	"automl/domain/core"
	"automl/domain/search"
)

// Sampler proposes joint parameter assignments and learns from scored
// trials. A Sampler belongs to exactly one Study.
type Sampler interface {
	Name() string
	Propose(space search.Space) search.Assignment
	Tell(trial search.Trial)
}

// NewSampler builds a sampler by its experiment-file name.
func NewSampler(kind string, seed int64) (Sampler, error) {
	switch kind {
	case "random":
		return NewRandomSampler(seed), nil
	case "bayesian", "":
		return NewBayesianSampler(BayesianConfig{Seed: seed}), nil
	}
	return nil, core.NewConfigurationError("unknown sampler %q", kind)
}

// RandomSampler draws every parameter independently and uniformly.
type RandomSampler struct {
	rng *rand.Rand
}

func NewRandomSampler(seed int64) *RandomSampler {
	return &RandomSampler{rng: rand.New(rand.NewSource(seed))}
}

func (s *RandomSampler) Name() string { return "random" }

func (s *RandomSampler) Propose(space search.Space) search.Assignment {
	return sampleSpace(s.rng, space)
}

func (s *RandomSampler) Tell(search.Trial) {}

func sampleSpace(rng *rand.Rand, space search.Space) search.Assignment {
	out := make(search.Assignment, len(space))
	for _, p := range space {
		out[p.Name] = sampleParam(rng, p)
	}
	return out
}

func sampleParam(rng *rand.Rand, p search.ParamSpec) any {
	switch p.Kind {
	case search.Continuous:
		return p.Low + rng.Float64()*(p.High-p.Low)
	case search.Integer:
		return int(p.Low) + rng.Intn(int(p.High-p.Low)+1)
	}
	return p.Choices[rng.Intn(len(p.Choices))]
}

var errNoTrials = core.NewDataError("study finished without completing a trial")
