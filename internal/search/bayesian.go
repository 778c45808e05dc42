package search

import (
	"math"
	"math/rand"

	"automl/domain/core"
	"automl/domain/search"

	"gonum.org/v1/gonum/stat/distuv"
)

// BayesianConfig configures BayesianSampler.
type BayesianConfig struct {
	Seed int64
	// NInitial random trials run before the surrogate is used.
	NInitial int
	// NumCandidates random points are scored by the acquisition per proposal.
	NumCandidates int
	// Xi trades exploration for exploitation in expected improvement.
	Xi          float64
	LengthScale float64
	Noise       float64
}

// BayesianSampler fits a Gaussian-process surrogate to past trials and
// proposes the random candidate with the highest expected improvement.
type BayesianSampler struct {
	cfg     BayesianConfig
	rng     *rand.Rand
	history []search.Trial
}

func NewBayesianSampler(cfg BayesianConfig) *BayesianSampler {
	if cfg.NInitial <= 0 {
		cfg.NInitial = 3
	}
	if cfg.NumCandidates <= 0 {
		cfg.NumCandidates = 256
	}
	if cfg.Xi == 0 {
		cfg.Xi = 0.01
	}
	if cfg.LengthScale <= 0 {
		cfg.LengthScale = 0.3
	}
	if cfg.Noise <= 0 {
		cfg.Noise = 1e-6
	}
	return &BayesianSampler{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

func (s *BayesianSampler) Name() string { return "bayesian" }

func (s *BayesianSampler) Tell(t search.Trial) {
	s.history = append(s.history, t)
}

// Propose samples randomly until NInitial usable trials exist, then returns
// the candidate with the highest expected improvement. Candidates already
// evaluated are skipped; if every candidate was, a random point is returned.
func (s *BayesianSampler) Propose(space search.Space) search.Assignment {
	X, y, seen := s.observations(space)
	if len(X) < s.cfg.NInitial || space.Fixed() {
		return sampleSpace(s.rng, space)
	}

	best := math.Inf(-1)
	for _, v := range y {
		best = math.Max(best, v)
	}
	gp := newGaussianProcess(s.cfg.LengthScale, s.cfg.Noise)
	if !gp.fit(X, y) {
		return sampleSpace(s.rng, space)
	}
	bestN := gp.standardise(best)

	var pick search.Assignment
	pickEI := math.Inf(-1)
	for i := 0; i < s.cfg.NumCandidates; i++ {
		cand := sampleSpace(s.rng, space)
		if seen[cand.Hash()] {
			continue
		}
		mu, sigma := gp.predict(encode(space, cand))
		if ei := expectedImprovement(mu, sigma, bestN, s.cfg.Xi); ei > pickEI {
			pickEI = ei
			pick = cand
		}
	}
	if pick == nil {
		return sampleSpace(s.rng, space)
	}
	return pick
}

// observations encodes the trials whose params lie inside space. Trials
// told under a different space are left out of the fit.
func (s *BayesianSampler) observations(space search.Space) ([][]float64, []float64, map[core.Hash]bool) {
	var X [][]float64
	var y []float64
	seen := make(map[core.Hash]bool, len(s.history))
	for _, t := range s.history {
		if !space.Contains(t.Params) {
			continue
		}
		X = append(X, encode(space, t.Params))
		y = append(y, t.Score)
		seen[t.Params.Hash()] = true
	}
	return X, y, seen
}

// expectedImprovement for maximisation.
func expectedImprovement(mu, sigma, best, xi float64) float64 {
	improvement := mu - best - xi
	if sigma <= 0 {
		return math.Max(improvement, 0)
	}
	z := improvement / sigma
	return improvement*distuv.UnitNormal.CDF(z) + sigma*distuv.UnitNormal.Prob(z)
}

// encode maps an assignment into the unit cube: numeric parameters are
// min-max scaled, categorical ones one-hot encoded. Fixed parameters carry
// no signal and are skipped.
func encode(space search.Space, a search.Assignment) []float64 {
	var out []float64
	for _, p := range space {
		if p.Fixed() {
			continue
		}
		v := a[p.Name]
		switch p.Kind {
		case search.Continuous, search.Integer:
			var f float64
			switch x := v.(type) {
			case float64:
				f = x
			case int:
				f = float64(x)
			}
			out = append(out, (f-p.Low)/(p.High-p.Low))
		default:
			for _, c := range p.Choices {
				if c == v {
					out = append(out, 1)
				} else {
					out = append(out, 0)
				}
			}
		}
	}
	return out
}
