package search

import (
	"fmt"
	"time"

	"automl/domain/core"
)

// Assignment holds one concrete value per parameter name. Values are
// float64, int, string or bool.
type Assignment map[string]any

// Clone returns a shallow copy.
func (a Assignment) Clone() Assignment {
	out := make(Assignment, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Hash fingerprints the assignment independent of key order.
func (a Assignment) Hash() core.Hash {
	return core.ComputeParamsHash(a)
}

// Trial is one scored assignment. Higher scores are better.
type Trial struct {
	Architecture string        `json:"architecture"`
	Number       int           `json:"number"`
	Params       Assignment    `json:"params"`
	Score        float64       `json:"score"`
	Duration     time.Duration `json:"duration"`
}

func (t Trial) String() string {
	return fmt.Sprintf("%s#%d score=%.4f params=%v", t.Architecture, t.Number, t.Score, t.Params)
}

// StudyState is the lifecycle of one architecture's search.
type StudyState int

const (
	StateCreated StudyState = iota
	StateRunning
	StateExhausted
	StateTimedOut
	StateFailed
)

func (s StudyState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateExhausted:
		return "exhausted"
	case StateTimedOut:
		return "timed_out"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("StudyState(%d)", int(s))
}

// Terminal reports whether no further trials will run.
func (s StudyState) Terminal() bool {
	return s == StateExhausted || s == StateTimedOut || s == StateFailed
}
