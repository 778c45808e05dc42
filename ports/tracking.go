package ports

import (
	"context"
	"io"

	"automl/domain/core"
	"automl/domain/run"
)

// RunLogWriterPort appends runs. LogRun returns only once the run is
// durable, and the returned id is never empty on success. Implementations
// must be safe for concurrent use.
type RunLogWriterPort interface {
	LogRun(ctx context.Context, rec run.Record) (run.Run, error)
}

// RunLogReaderPort provides read-only access to recorded runs
type RunLogReaderPort interface {
	GetRun(ctx context.Context, id core.RunID) (*run.Run, error)
	ListRuns(ctx context.Context, filters RunFilters) ([]run.Run, error)
}

// RunLog combines read and write access
type RunLog interface {
	RunLogWriterPort
	RunLogReaderPort
}

// RunFilters for querying runs
type RunFilters struct {
	Experiment   string
	Architecture string
	Status       run.Status
	Limit        int
	Offset       int
}

// ModelRegistry moves named production pointers. RegisterAsProduction
// replaces the pointer atomically and appends a version; earlier versions
// stay readable.
type ModelRegistry interface {
	RegisterAsProduction(ctx context.Context, r run.Run, name string) (run.RegisteredModel, error)
	GetRegisteredModel(ctx context.Context, name string) (*run.RegisteredModel, error)
	ListVersions(ctx context.Context, name string) ([]run.RegisteredModel, error)
}

// ArtifactStore persists serialised pipelines.
type ArtifactStore interface {
	Put(ctx context.Context, name string, data []byte) (run.ArtifactRef, error)
	Get(ctx context.Context, ref run.ArtifactRef) (io.ReadCloser, error)
}
