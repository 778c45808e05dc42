package models

import (
	"math"
	"math/rand"
	"sort"
)

// treeNode is a flattened decision-tree node. Leaves have Left == -1 and
// carry the class distribution of their training rows in Value.
type treeNode struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t"`
	Left      int       `json:"l"`
	Right     int       `json:"r"`
	Value     []float64 `json:"v,omitempty"`
}

// DecisionTree is a CART classifier stored as a node array.
type DecisionTree struct {
	Nodes []treeNode `json:"nodes"`
}

type cartConfig struct {
	maxDepth        int // 0 = unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int
	entropy         bool
	nClasses        int
}

type cartBuilder struct {
	cfg  cartConfig
	X    [][]float64
	y    []int
	rng  *rand.Rand
	tree *DecisionTree
}

func growTree(X [][]float64, y []int, rows []int, cfg cartConfig, rng *rand.Rand) DecisionTree {
	b := &cartBuilder{cfg: cfg, X: X, y: y, rng: rng, tree: &DecisionTree{}}
	b.grow(rows, 0)
	return *b.tree
}

func (b *cartBuilder) counts(rows []int) []float64 {
	c := make([]float64, b.cfg.nClasses)
	for _, r := range rows {
		c[b.y[r]]++
	}
	return c
}

func (b *cartBuilder) impurity(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	var imp float64
	if b.cfg.entropy {
		for _, c := range counts {
			if c > 0 {
				p := c / n
				imp -= p * math.Log2(p)
			}
		}
		return imp
	}
	imp = 1
	for _, c := range counts {
		p := c / n
		imp -= p * p
	}
	return imp
}

func (b *cartBuilder) leaf(counts []float64, n float64) int {
	value := make([]float64, len(counts))
	for i, c := range counts {
		value[i] = c / n
	}
	b.tree.Nodes = append(b.tree.Nodes, treeNode{Left: -1, Right: -1, Value: value})
	return len(b.tree.Nodes) - 1
}

func (b *cartBuilder) grow(rows []int, depth int) int {
	counts := b.counts(rows)
	n := float64(len(rows))
	parent := b.impurity(counts, n)

	if parent == 0 || len(rows) < b.cfg.minSamplesSplit || len(rows) < 2*b.cfg.minSamplesLeaf ||
		(b.cfg.maxDepth > 0 && depth >= b.cfg.maxDepth) {
		return b.leaf(counts, n)
	}

	feature, threshold, ok := b.bestSplit(rows, counts, parent)
	if !ok {
		return b.leaf(counts, n)
	}

	var left, right []int
	for _, r := range rows {
		if b.X[r][feature] <= threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	idx := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, treeNode{Feature: feature, Threshold: threshold})
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.tree.Nodes[idx].Left = l
	b.tree.Nodes[idx].Right = r
	return idx
}

// bestSplit scans a random subset of features, sorted sweep per feature,
// and returns the split with the largest impurity decrease.
func (b *cartBuilder) bestSplit(rows []int, counts []float64, parent float64) (int, float64, bool) {
	nFeatures := len(b.X[rows[0]])
	features := b.rng.Perm(nFeatures)
	if b.cfg.maxFeatures > 0 && b.cfg.maxFeatures < nFeatures {
		features = features[:b.cfg.maxFeatures]
	}

	n := float64(len(rows))
	bestGain := 1e-12
	bestFeature, bestThreshold := -1, 0.0
	sorted := make([]int, len(rows))
	leftCounts := make([]float64, len(counts))
	rightCounts := make([]float64, len(counts))

	for _, f := range features {
		copy(sorted, rows)
		sort.Slice(sorted, func(i, j int) bool { return b.X[sorted[i]][f] < b.X[sorted[j]][f] })
		for i := range leftCounts {
			leftCounts[i] = 0
		}
		copy(rightCounts, counts)

		for i := 0; i < len(sorted)-1; i++ {
			c := b.y[sorted[i]]
			leftCounts[c]++
			rightCounts[c]--

			nl := i + 1
			nr := len(sorted) - nl
			if nl < b.cfg.minSamplesLeaf {
				continue
			}
			if nr < b.cfg.minSamplesLeaf {
				break
			}
			lo, hi := b.X[sorted[i]][f], b.X[sorted[i+1]][f]
			if lo == hi {
				continue
			}
			child := (float64(nl)*b.impurity(leftCounts, float64(nl)) +
				float64(nr)*b.impurity(rightCounts, float64(nr))) / n
			if gain := parent - child; gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

// leafValue walks one row down to its leaf.
func (t DecisionTree) leafValue(x []float64) []float64 {
	i := 0
	for t.Nodes[i].Left != -1 {
		if x[t.Nodes[i].Feature] <= t.Nodes[i].Threshold {
			i = t.Nodes[i].Left
		} else {
			i = t.Nodes[i].Right
		}
	}
	return t.Nodes[i].Value
}

// Depth returns the longest root-to-leaf path.
func (t DecisionTree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Left == -1 {
			return 0
		}
		l, r := walk(n.Left), walk(n.Right)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	return walk(0)
}
