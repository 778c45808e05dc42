package app

import (
	"context"
	"fmt"

	"automl/domain/core"
	"automl/domain/run"
	"automl/internal"
	"automl/ports"
)

// Selector ranks finished runs and promotes the winner.
type Selector struct {
	registry ports.ModelRegistry
	name     string
	logger   *internal.Logger
}

// NewSelector creates a selector promoting under the registered name
func NewSelector(registry ports.ModelRegistry, name string, logger *internal.Logger) *Selector {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Selector{registry: registry, name: name, logger: logger}
}

// SelectAndPromote ranks runs by score and moves the production pointer to
// the top one. Degraded runs never win. With nothing to rank it returns
// ErrNoCandidates and does not touch the registry.
func (s *Selector) SelectAndPromote(ctx context.Context, runs []run.Run) (run.RegisteredModel, error) {
	ranked := run.Rank(runs)
	top, ok := ranked.Top()
	if !ok {
		s.logger.Warn("[Selector] No models were trained (%d runs, none usable)", len(runs))
		return run.RegisteredModel{}, fmt.Errorf("%w: %d runs, none finished", core.ErrNoCandidates, len(runs))
	}

	s.logger.Info("[Selector] Winner: %s with f1_macro %.4f (run %s)", top.Architecture, top.Score, top.ID)
	for i, r := range ranked[1:] {
		s.logger.Debug("[Selector] #%d %s f1_macro=%.4f", i+2, r.Architecture, r.Score)
	}

	reg, err := s.registry.RegisterAsProduction(ctx, top, s.name)
	if err != nil {
		return run.RegisteredModel{}, fmt.Errorf("promote run %s to %s: %w", top.ID, s.name, err)
	}
	s.logger.Info("[Selector] %s now at version %d", reg.Name, reg.Version)
	return reg, nil
}
