package run

import (
	"encoding/json"
	"math"
	"sort"

	"automl/domain/core"
)

// Status marks whether a run carries a usable artifact.
type Status string

const (
	StatusFinished Status = "FINISHED"
	StatusFailed   Status = "FAILED"
)

// MetricName is the score every run is logged under.
const MetricName = "f1_macro"

// ArtifactRef addresses a persisted, fitted pipeline.
type ArtifactRef struct {
	URI      string    `json:"uri" db:"artifact_uri"`
	Checksum core.Hash `json:"checksum" db:"artifact_checksum"`
}

func (a ArtifactRef) IsZero() bool { return a.URI == "" }

// Context identifies where a run is recorded. It is passed by value to
// every call that produces a run.
type Context struct {
	Experiment string
	Name       string
	Tags       map[string]string
}

// Record is what the tracking store is asked to persist.
type Record struct {
	Context      Context
	Architecture string
	Params       map[string]any
	Metrics      map[string]float64
	Artifact     ArtifactRef
	Status       Status
	Error        string
}

// Run is the finalized result of one architecture. Runs are values and are
// never modified after the tracking store returns them.
type Run struct {
	ID           core.RunID        `json:"run_id"`
	Experiment   string            `json:"experiment"`
	Name         string            `json:"name"`
	Architecture string            `json:"architecture"`
	Score        float64           `json:"score"`
	Params       map[string]any    `json:"params"`
	Tags         map[string]string `json:"tags,omitempty"`
	Artifact     ArtifactRef       `json:"artifact"`
	Status       Status            `json:"status"`
	Error        string            `json:"error,omitempty"`
	CreatedAt    core.Timestamp    `json:"created_at"`
}

// Degraded reports whether the run must be excluded from ranking.
func (r Run) Degraded() bool {
	return r.Status == StatusFailed || r.Artifact.IsZero() || math.IsNaN(r.Score)
}

// MarshalJSON writes a missing score as null.
func (r Run) MarshalJSON() ([]byte, error) {
	type alias Run
	out := struct {
		alias
		Score *float64 `json:"score"`
	}{alias: alias(r)}
	if !math.IsNaN(r.Score) && !math.IsInf(r.Score, 0) {
		out.Score = &r.Score
	}
	return json.Marshal(out)
}

func (r *Run) UnmarshalJSON(data []byte) error {
	type alias Run
	in := struct {
		*alias
		Score *float64 `json:"score"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.Score = math.NaN()
	if in.Score != nil {
		r.Score = *in.Score
	}
	return nil
}

// FromRecord materialises the run a store returns for a record.
func FromRecord(id core.RunID, rec Record, createdAt core.Timestamp) Run {
	score := math.NaN()
	if v, ok := rec.Metrics[MetricName]; ok {
		score = v
	}
	status := rec.Status
	if status == "" {
		status = StatusFinished
	}
	return Run{
		ID:           id,
		Experiment:   rec.Context.Experiment,
		Name:         rec.Context.Name,
		Architecture: rec.Architecture,
		Score:        score,
		Params:       rec.Params,
		Tags:         rec.Context.Tags,
		Artifact:     rec.Artifact,
		Status:       status,
		Error:        rec.Error,
		CreatedAt:    createdAt,
	}
}

// RankedResults is a score-descending ordering of runs.
type RankedResults []Run

// Rank drops degraded runs and sorts the rest by score descending. Ties keep
// their input order.
func Rank(runs []Run) RankedResults {
	ranked := make(RankedResults, 0, len(runs))
	for _, r := range runs {
		if !r.Degraded() {
			ranked = append(ranked, r)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}

// Top returns the winning run.
func (r RankedResults) Top() (Run, bool) {
	if len(r) == 0 {
		return Run{}, false
	}
	return r[0], true
}

// RegisteredModel is a named pointer to exactly one artifact.
type RegisteredModel struct {
	Name      string         `json:"name" db:"name"`
	Version   int            `json:"version" db:"version"`
	RunID     core.RunID     `json:"run_id" db:"run_id"`
	Artifact  ArtifactRef    `json:"artifact"`
	UpdatedAt core.Timestamp `json:"updated_at"`
}
