package scoring

import (
	"math/rand"
	"sort"

	"automl/domain/core"
)

// Fold holds row positions for one train/test split.
type Fold struct {
	Train []int
	Test  []int
}

// StratifiedKFold shuffles each class with a seeded generator and deals its
// rows round-robin into k test folds, so class proportions are kept per
// fold. The split depends only on labels, k and seed.
func StratifiedKFold(labels []int, k int, seed int64) ([]Fold, error) {
	if k < 2 {
		return nil, core.NewConfigurationError("cv_folds must be >= 2, got %d", k)
	}
	if len(labels) < k {
		return nil, core.NewDataError("cannot split %d rows into %d folds", len(labels), k)
	}

	byClass := map[int][]int{}
	for i, y := range labels {
		byClass[y] = append(byClass[y], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	rng := rand.New(rand.NewSource(seed))
	testOf := make([]int, len(labels))
	next := 0
	for _, c := range classes {
		rows := byClass[c]
		rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		for _, r := range rows {
			testOf[r] = next
			next = (next + 1) % k
		}
	}

	folds := make([]Fold, k)
	for r, f := range testOf {
		for i := range folds {
			if i == f {
				folds[i].Test = append(folds[i].Test, r)
			} else {
				folds[i].Train = append(folds[i].Train, r)
			}
		}
	}
	return folds, nil
}
