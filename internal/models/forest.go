package models

import (
	"context"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// RandomForestArchitecture is the identifier used in experiment files.
const RandomForestArchitecture = "random_forest"

var randomForestSchema = Schema{
	{Name: "n_estimators", Kind: KindInt, Min: 1, Max: 5000, Default: 100},
	{Name: "max_depth", Kind: KindInt, Min: 1, Max: 128, Default: nil},
	{Name: "min_samples_split", Kind: KindInt, Min: 2, Max: math.Inf(1), Default: 2},
	{Name: "min_samples_leaf", Kind: KindInt, Min: 1, Max: math.Inf(1), Default: 1},
	{Name: "max_features", Kind: KindChoice, Choices: []string{"sqrt", "log2", "all"}, Default: "sqrt"},
	{Name: "criterion", Kind: KindChoice, Choices: []string{"gini", "entropy"}, Default: "gini"},
	{Name: "bootstrap", Kind: KindBool, Default: true},
}

// RandomForest is a bagged ensemble of CART trees with per-split feature
// subsampling.
type RandomForest struct {
	NEstimators     int            `json:"n_estimators"`
	MaxDepth        int            `json:"max_depth,omitempty"`
	MinSamplesSplit int            `json:"min_samples_split"`
	MinSamplesLeaf  int            `json:"min_samples_leaf"`
	MaxFeatures     string         `json:"max_features"`
	Criterion       string         `json:"criterion"`
	Bootstrap       bool           `json:"bootstrap"`
	Seed            int64          `json:"seed"`
	NClasses        int            `json:"n_classes"`
	Trees           []DecisionTree `json:"trees,omitempty"`
}

func newRandomForest(p Params, seed int64) Classifier {
	return &RandomForest{
		NEstimators:     p.Int("n_estimators"),
		MaxDepth:        p.Int("max_depth"),
		MinSamplesSplit: p.Int("min_samples_split"),
		MinSamplesLeaf:  p.Int("min_samples_leaf"),
		MaxFeatures:     p.String("max_features"),
		Criterion:       p.String("criterion"),
		Bootstrap:       p.Bool("bootstrap"),
		Seed:            seed,
	}
}

func (m *RandomForest) featureCount(p int) int {
	switch m.MaxFeatures {
	case "sqrt":
		return max(1, int(math.Sqrt(float64(p))))
	case "log2":
		return max(1, int(math.Log2(float64(p))))
	}
	return p
}

// Fit grows the trees concurrently. Each tree draws from its own generator
// seeded up front, so the fitted forest does not depend on scheduling.
func (m *RandomForest) Fit(ctx context.Context, X [][]float64, y []int, nClasses int) error {
	if len(X) == 0 {
		return errEmptyTrainingSet
	}
	m.NClasses = nClasses
	cfg := cartConfig{
		maxDepth:        m.MaxDepth,
		minSamplesSplit: m.MinSamplesSplit,
		minSamplesLeaf:  m.MinSamplesLeaf,
		maxFeatures:     m.featureCount(len(X[0])),
		entropy:         m.Criterion == "entropy",
		nClasses:        nClasses,
	}

	master := rand.New(rand.NewSource(m.Seed))
	seeds := make([]int64, m.NEstimators)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	trees := make([]DecisionTree, m.NEstimators)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range trees {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(seeds[i]))
			rows := make([]int, len(X))
			for j := range rows {
				if m.Bootstrap {
					rows[j] = rng.Intn(len(X))
				} else {
					rows[j] = j
				}
			}
			trees[i] = growTree(X, y, rows, cfg, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	m.Trees = trees
	return nil
}

// PredictProba averages the leaf class distributions of all trees.
func (m *RandomForest) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, x := range X {
		p := make([]float64, m.NClasses)
		for _, t := range m.Trees {
			for c, v := range t.leafValue(x) {
				p[c] += v
			}
		}
		for c := range p {
			p[c] /= float64(len(m.Trees))
		}
		out[i] = p
	}
	return out
}

func (m *RandomForest) Predict(X [][]float64) []int {
	return predictFromProba(m, X)
}
