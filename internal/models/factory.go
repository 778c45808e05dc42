package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"automl/domain/core"
	"automl/domain/search"
)

// DefaultSeed is the reproducibility seed given to every model.
const DefaultSeed = 42

var errEmptyTrainingSet = errors.New("cannot fit on an empty training set")

// Constructor builds an un-fitted model from resolved parameters.
type Constructor func(p Params, seed int64) Classifier

type entry struct {
	schema Schema
	build  Constructor
}

// Factory maps architecture identifiers onto model constructors. The set is
// closed at runtime but callers may Register additional architectures.
type Factory struct {
	mu      sync.RWMutex
	entries map[string]entry
	seed    int64
}

// NewFactory returns a factory with the reference architectures
// random_forest and xgboost registered.
func NewFactory() *Factory {
	f := &Factory{entries: map[string]entry{}, seed: DefaultSeed}
	f.Register(RandomForestArchitecture, randomForestSchema, newRandomForest)
	f.Register(GradientBoostingArchitecture, gradientBoostingSchema, newGradientBoosting)
	return f
}

// WithSeed returns a factory sharing the registry with a different seed.
func (f *Factory) WithSeed(seed int64) *Factory {
	f.mu.RLock()
	defer f.mu.RUnlock()
	entries := make(map[string]entry, len(f.entries))
	for k, v := range f.entries {
		entries[k] = v
	}
	return &Factory{entries: entries, seed: seed}
}

func (f *Factory) Register(arch string, schema Schema, build Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[arch] = entry{schema: schema, build: build}
}

// Architectures lists registered identifiers in order.
func (f *Factory) Architectures() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.entries))
	for k := range f.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Schema returns the parameter schema of arch.
func (f *Factory) Schema(arch string) (Schema, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.entries[arch]
	if !ok {
		return nil, core.NewUnknownArchitectureError(arch)
	}
	return e.schema, nil
}

// CheckSpace resolves a search space against the schema of arch. It has the
// search.SpaceCheck signature.
func (f *Factory) CheckSpace(arch string, space search.Space) error {
	schema, err := f.Schema(arch)
	if err != nil {
		return fmt.Errorf("%w (registered: %s)", err, strings.Join(f.Architectures(), ", "))
	}
	return schema.CheckSpace(arch, space)
}

// Create validates params against the architecture's schema and returns an
// un-fitted model.
func (f *Factory) Create(arch string, params search.Assignment) (Classifier, error) {
	f.mu.RLock()
	e, ok := f.entries[arch]
	f.mu.RUnlock()
	if !ok {
		return nil, core.NewUnknownArchitectureError(arch)
	}
	resolved, err := e.schema.Resolve(arch, params)
	if err != nil {
		return nil, err
	}
	return e.build(resolved, f.seed), nil
}
