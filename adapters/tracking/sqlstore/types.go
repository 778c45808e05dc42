package sqlstore

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"automl/domain/core"
	"automl/domain/run"
)

// jsonMap is a TEXT/JSON column holding a parameter assignment.
type jsonMap map[string]interface{}

func (j jsonMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j *jsonMap) Scan(value interface{}) error {
	*j = make(jsonMap)
	b, ok := columnBytes(value)
	if !ok || len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, j)
}

// tagMap is a TEXT/JSON column of string tags.
type tagMap map[string]string

func (t tagMap) Value() (driver.Value, error) {
	if t == nil {
		return nil, nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (t *tagMap) Scan(value interface{}) error {
	*t = nil
	b, ok := columnBytes(value)
	if !ok || len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, t)
}

// metricMap drops non-finite values, which JSON cannot carry.
type metricMap map[string]float64

func (m metricMap) Value() (driver.Value, error) {
	clean := make(map[string]float64, len(m))
	for k, v := range m {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			clean[k] = v
		}
	}
	b, err := json.Marshal(clean)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func columnBytes(value interface{}) ([]byte, bool) {
	switch v := value.(type) {
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	}
	return nil, false
}

type runRow struct {
	ID           string          `db:"id"`
	Experiment   string          `db:"experiment"`
	Name         string          `db:"name"`
	Architecture string          `db:"architecture"`
	Score        sql.NullFloat64 `db:"score"`
	Params       jsonMap         `db:"params"`
	Metrics      metricMap       `db:"metrics"`
	Tags         tagMap          `db:"tags"`
	ArtifactURI  string          `db:"artifact_uri"`
	Checksum     string          `db:"artifact_checksum"`
	Status       string          `db:"status"`
	ErrorMessage string          `db:"error_message"`
	CreatedAt    time.Time       `db:"created_at"`
}

func newRunRow(r run.Run, rec run.Record) runRow {
	row := runRow{
		ID:           r.ID.String(),
		Experiment:   r.Experiment,
		Name:         r.Name,
		Architecture: r.Architecture,
		Params:       jsonMap(r.Params),
		Metrics:      metricMap(rec.Metrics),
		Tags:         tagMap(r.Tags),
		ArtifactURI:  r.Artifact.URI,
		Checksum:     r.Artifact.Checksum.String(),
		Status:       string(r.Status),
		ErrorMessage: r.Error,
		CreatedAt:    r.CreatedAt.Time(),
	}
	if !math.IsNaN(r.Score) && !math.IsInf(r.Score, 0) {
		row.Score = sql.NullFloat64{Float64: r.Score, Valid: true}
	}
	return row
}

func (row runRow) toRun() run.Run {
	score := math.NaN()
	if row.Score.Valid {
		score = row.Score.Float64
	}
	return run.Run{
		ID:           core.RunID(row.ID),
		Experiment:   row.Experiment,
		Name:         row.Name,
		Architecture: row.Architecture,
		Score:        score,
		Params:       map[string]any(row.Params),
		Tags:         map[string]string(row.Tags),
		Artifact:     run.ArtifactRef{URI: row.ArtifactURI, Checksum: core.Hash(row.Checksum)},
		Status:       run.Status(row.Status),
		Error:        row.ErrorMessage,
		CreatedAt:    core.NewTimestamp(row.CreatedAt.UTC()),
	}
}

// Runs take their score from the score column; metrics are kept for browsing.
func (m *metricMap) Scan(value interface{}) error {
	*m = make(metricMap)
	b, ok := columnBytes(value)
	if !ok || len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, (*map[string]float64)(m)); err != nil {
		return fmt.Errorf("metrics column: %w", err)
	}
	return nil
}

type versionRow struct {
	Name        string    `db:"name"`
	Version     int       `db:"version"`
	RunID       string    `db:"run_id"`
	ArtifactURI string    `db:"artifact_uri"`
	Checksum    string    `db:"artifact_checksum"`
	CreatedAt   time.Time `db:"created_at"`
}

func (v versionRow) toModel() run.RegisteredModel {
	return run.RegisteredModel{
		Name:      v.Name,
		Version:   v.Version,
		RunID:     core.RunID(v.RunID),
		Artifact:  run.ArtifactRef{URI: v.ArtifactURI, Checksum: core.Hash(v.Checksum)},
		UpdatedAt: core.NewTimestamp(v.CreatedAt.UTC()),
	}
}
