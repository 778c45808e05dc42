package models

import (
	"context"
	"math"
	"math/rand"
	"sort"
)

// GradientBoostingArchitecture is the identifier used in experiment files.
const GradientBoostingArchitecture = "xgboost"

var gradientBoostingSchema = Schema{
	{Name: "n_estimators", Kind: KindInt, Min: 1, Max: 5000, Default: 100},
	{Name: "max_depth", Kind: KindInt, Min: 1, Max: 32, Default: 6},
	{Name: "learning_rate", Kind: KindFloat, Min: 0, MinOpen: true, Max: 1, Default: 0.3},
	{Name: "subsample", Kind: KindFloat, Min: 0, MinOpen: true, Max: 1, Default: 1.0},
	{Name: "colsample_bytree", Kind: KindFloat, Min: 0, MinOpen: true, Max: 1, Default: 1.0},
	{Name: "min_child_weight", Kind: KindFloat, Min: 0, Max: math.Inf(1), Default: 1.0},
	{Name: "reg_lambda", Kind: KindFloat, Min: 0, Max: math.Inf(1), Default: 1.0},
	{Name: "gamma", Kind: KindFloat, Min: 0, Max: math.Inf(1), Default: 0.0},
}

// regNode is a node of a second-order regression tree. Leaves have
// Left == -1 and carry the already shrunk leaf weight.
type regNode struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Weight    float64 `json:"w"`
}

type regTree struct {
	Nodes []regNode `json:"nodes"`
}

func (t regTree) predict(x []float64) float64 {
	i := 0
	for t.Nodes[i].Left != -1 {
		if x[t.Nodes[i].Feature] <= t.Nodes[i].Threshold {
			i = t.Nodes[i].Left
		} else {
			i = t.Nodes[i].Right
		}
	}
	return t.Nodes[i].Weight
}

// GradientBoosting is a second-order gradient boosted tree ensemble with
// logistic loss for two classes and softmax loss otherwise.
type GradientBoosting struct {
	NEstimators     int     `json:"n_estimators"`
	MaxDepth        int     `json:"max_depth"`
	LearningRate    float64 `json:"learning_rate"`
	Subsample       float64 `json:"subsample"`
	ColsampleByTree float64 `json:"colsample_bytree"`
	MinChildWeight  float64 `json:"min_child_weight"`
	Lambda          float64 `json:"reg_lambda"`
	Gamma           float64 `json:"gamma"`
	Seed            int64   `json:"seed"`
	NClasses        int     `json:"n_classes"`
	// Rounds[r][k] is the tree for output k in boosting round r.
	Rounds [][]regTree `json:"rounds,omitempty"`
}

func newGradientBoosting(p Params, seed int64) Classifier {
	return &GradientBoosting{
		NEstimators:     p.Int("n_estimators"),
		MaxDepth:        p.Int("max_depth"),
		LearningRate:    p.Float("learning_rate"),
		Subsample:       p.Float("subsample"),
		ColsampleByTree: p.Float("colsample_bytree"),
		MinChildWeight:  p.Float("min_child_weight"),
		Lambda:          p.Float("reg_lambda"),
		Gamma:           p.Float("gamma"),
		Seed:            seed,
	}
}

func (m *GradientBoosting) outputs() int {
	if m.NClasses <= 2 {
		return 1
	}
	return m.NClasses
}

// Fit runs NEstimators boosting rounds. Rounds are sequential; the
// context is checked between rounds.
func (m *GradientBoosting) Fit(ctx context.Context, X [][]float64, y []int, nClasses int) error {
	if len(X) == 0 {
		return errEmptyTrainingSet
	}
	m.NClasses = nClasses
	k := m.outputs()
	n, p := len(X), len(X[0])
	rng := rand.New(rand.NewSource(m.Seed))

	margins := make([][]float64, n)
	for i := range margins {
		margins[i] = make([]float64, k)
	}
	grad := make([][]float64, k)
	hess := make([][]float64, k)
	for j := range grad {
		grad[j] = make([]float64, n)
		hess[j] = make([]float64, n)
	}

	m.Rounds = make([][]regTree, 0, m.NEstimators)
	for round := 0; round < m.NEstimators; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.gradients(margins, y, grad, hess)

		rows := sampleFraction(rng, n, m.Subsample)
		cols := sampleFraction(rng, p, m.ColsampleByTree)

		trees := make([]regTree, k)
		for j := 0; j < k; j++ {
			b := &regBuilder{m: m, X: X, g: grad[j], h: hess[j], cols: cols}
			b.grow(rows, 0)
			trees[j] = b.tree
			for i := range X {
				margins[i][j] += trees[j].predict(X[i])
			}
		}
		m.Rounds = append(m.Rounds, trees)
	}
	return nil
}

func (m *GradientBoosting) gradients(margins [][]float64, y []int, grad, hess [][]float64) {
	const minHess = 1e-16
	if m.outputs() == 1 {
		for i := range margins {
			pr := sigmoid(margins[i][0])
			grad[0][i] = pr - float64(y[i])
			hess[0][i] = math.Max(pr*(1-pr), minHess)
		}
		return
	}
	for i := range margins {
		pr := softmax(margins[i])
		for j := range pr {
			target := 0.0
			if y[i] == j {
				target = 1
			}
			grad[j][i] = pr[j] - target
			hess[j][i] = math.Max(2*pr[j]*(1-pr[j]), minHess)
		}
	}
}

func (m *GradientBoosting) PredictProba(X [][]float64) [][]float64 {
	k := m.outputs()
	out := make([][]float64, len(X))
	for i, x := range X {
		margin := make([]float64, k)
		for _, trees := range m.Rounds {
			for j, t := range trees {
				margin[j] += t.predict(x)
			}
		}
		if k == 1 {
			pr := sigmoid(margin[0])
			out[i] = []float64{1 - pr, pr}
		} else {
			out[i] = softmax(margin)
		}
	}
	return out
}

func (m *GradientBoosting) Predict(X [][]float64) []int {
	return predictFromProba(m, X)
}

type regBuilder struct {
	m    *GradientBoosting
	X    [][]float64
	g, h []float64
	cols []int
	tree regTree
}

func (b *regBuilder) sums(rows []int) (float64, float64) {
	var G, H float64
	for _, r := range rows {
		G += b.g[r]
		H += b.h[r]
	}
	return G, H
}

func (b *regBuilder) leaf(G, H float64) int {
	w := -G / (H + b.m.Lambda) * b.m.LearningRate
	b.tree.Nodes = append(b.tree.Nodes, regNode{Left: -1, Right: -1, Weight: w})
	return len(b.tree.Nodes) - 1
}

func (b *regBuilder) score(G, H float64) float64 {
	return G * G / (H + b.m.Lambda)
}

// grow splits greedily on the exact gain
// 0.5*(GL²/(HL+λ) + GR²/(HR+λ) - G²/(H+λ)) - γ.
func (b *regBuilder) grow(rows []int, depth int) int {
	G, H := b.sums(rows)
	if depth >= b.m.MaxDepth || len(rows) < 2 {
		return b.leaf(G, H)
	}

	parent := b.score(G, H)
	bestGain := 0.0
	bestFeature, bestThreshold := -1, 0.0
	sorted := make([]int, len(rows))
	for _, f := range b.cols {
		copy(sorted, rows)
		sort.Slice(sorted, func(i, j int) bool { return b.X[sorted[i]][f] < b.X[sorted[j]][f] })
		var GL, HL float64
		for i := 0; i < len(sorted)-1; i++ {
			GL += b.g[sorted[i]]
			HL += b.h[sorted[i]]
			lo, hi := b.X[sorted[i]][f], b.X[sorted[i+1]][f]
			if lo == hi {
				continue
			}
			GR, HR := G-GL, H-HL
			if HL < b.m.MinChildWeight || HR < b.m.MinChildWeight {
				continue
			}
			gain := 0.5*(b.score(GL, HL)+b.score(GR, HR)-parent) - b.m.Gamma
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
			}
		}
	}
	if bestFeature < 0 {
		return b.leaf(G, H)
	}

	var left, right []int
	for _, r := range rows {
		if b.X[r][bestFeature] <= bestThreshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	idx := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, regNode{Feature: bestFeature, Threshold: bestThreshold})
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.tree.Nodes[idx].Left = l
	b.tree.Nodes[idx].Right = r
	return idx
}

// sampleFraction draws ceil(frac*n) distinct positions in ascending order.
func sampleFraction(rng *rand.Rand, n int, frac float64) []int {
	if frac >= 1 {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all
	}
	take := int(math.Ceil(frac * float64(n)))
	if take < 1 {
		take = 1
	}
	picked := rng.Perm(n)[:take]
	sort.Ints(picked)
	return picked
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func softmax(z []float64) []float64 {
	hi := z[0]
	for _, v := range z[1:] {
		hi = math.Max(hi, v)
	}
	out := make([]float64, len(z))
	var sum float64
	for i, v := range z {
		out[i] = math.Exp(v - hi)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
