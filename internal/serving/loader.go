package serving

import (
	"context"
	"fmt"
	"io"

	"automl/domain/core"
	"automl/domain/run"
	"automl/internal/models"
	"automl/internal/pipeline"
	"automl/ports"
)

// Loader resolves the production pointer of a registered name to a fitted
// pipeline.
type Loader struct {
	registry  ports.ModelRegistry
	artifacts ports.ArtifactStore
	factory   *models.Factory
	name      string
}

func NewLoader(registry ports.ModelRegistry, artifacts ports.ArtifactStore, factory *models.Factory, name string) *Loader {
	return &Loader{registry: registry, artifacts: artifacts, factory: factory, name: name}
}

func (l *Loader) Name() string { return l.name }

// Load returns ErrArtifactUnavailable (wrapping the cause) when nothing has
// been registered under the name or the artifact cannot be read back.
func (l *Loader) Load(ctx context.Context) (*pipeline.Pipeline, run.RegisteredModel, error) {
	rm, err := l.registry.GetRegisteredModel(ctx, l.name)
	if err != nil {
		return nil, run.RegisteredModel{}, fmt.Errorf("%w: %q: %w", core.ErrArtifactUnavailable, l.name, err)
	}

	rc, err := l.artifacts.Get(ctx, rm.Artifact)
	if err != nil {
		return nil, *rm, fmt.Errorf("%w: %s: %w", core.ErrArtifactUnavailable, rm.Artifact.URI, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, *rm, fmt.Errorf("%w: %s: %w", core.ErrArtifactUnavailable, rm.Artifact.URI, err)
	}
	p, err := pipeline.Load(data, l.factory)
	if err != nil {
		return nil, *rm, fmt.Errorf("%w: %s: %w", core.ErrArtifactUnavailable, rm.Artifact.URI, err)
	}
	return p, *rm, nil
}
