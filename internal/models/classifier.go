package models

import (
	"context"
)

// Classifier is an un-fitted or fitted model over dense feature rows.
// Implementations serialise their fitted state with encoding/json.
type Classifier interface {
	Fit(ctx context.Context, X [][]float64, y []int, nClasses int) error
	PredictProba(X [][]float64) [][]float64
	Predict(X [][]float64) []int
}

// argmax returns the first index of the largest value.
func argmax(p []float64) int {
	best := 0
	for i := 1; i < len(p); i++ {
		if p[i] > p[best] {
			best = i
		}
	}
	return best
}

func predictFromProba(c Classifier, X [][]float64) []int {
	proba := c.PredictProba(X)
	out := make([]int, len(proba))
	for i, p := range proba {
		out[i] = argmax(p)
	}
	return out
}
