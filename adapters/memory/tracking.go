package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"automl/domain/core"
	"automl/domain/run"
	"automl/ports"
)

// RunLog is an in-memory ports.RunLog for tests and dry runs.
type RunLog struct {
	mu   sync.RWMutex
	runs []run.Run
	byID map[core.RunID]int
}

func NewRunLog() *RunLog {
	return &RunLog{byID: map[core.RunID]int{}}
}

func (l *RunLog) LogRun(ctx context.Context, rec run.Record) (run.Run, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := run.FromRecord(core.NewRunID(), rec, core.Now())
	l.byID[r.ID] = len(l.runs)
	l.runs = append(l.runs, r)
	return r, nil
}

func (l *RunLog) GetRun(ctx context.Context, id core.RunID) (*run.Run, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w %s", core.ErrRunNotFound, id)
	}
	r := l.runs[i]
	return &r, nil
}

func (l *RunLog) ListRuns(ctx context.Context, f ports.RunFilters) ([]run.Run, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []run.Run
	for _, r := range l.runs {
		if f.Experiment != "" && r.Experiment != f.Experiment {
			continue
		}
		if f.Architecture != "" && r.Architecture != f.Architecture {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, r)
	}
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

// Registry is an in-memory ports.ModelRegistry.
type Registry struct {
	mu       sync.Mutex
	versions map[string][]run.RegisteredModel
	// RegisterCalls counts RegisterAsProduction invocations.
	RegisterCalls int
}

func NewRegistry() *Registry {
	return &Registry{versions: map[string][]run.RegisteredModel{}}
}

func (g *Registry) RegisterAsProduction(ctx context.Context, r run.Run, name string) (run.RegisteredModel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.RegisterCalls++
	vs := g.versions[name]
	if n := len(vs); n > 0 && vs[n-1].RunID == r.ID {
		return vs[n-1], nil
	}
	m := run.RegisteredModel{
		Name:      name,
		Version:   len(vs) + 1,
		RunID:     r.ID,
		Artifact:  r.Artifact,
		UpdatedAt: core.Now(),
	}
	g.versions[name] = append(vs, m)
	return m, nil
}

func (g *Registry) GetRegisteredModel(ctx context.Context, name string) (*run.RegisteredModel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	vs := g.versions[name]
	if len(vs) == 0 {
		return nil, fmt.Errorf("%w %q", core.ErrRegisteredNotFound, name)
	}
	m := vs[len(vs)-1]
	return &m, nil
}

func (g *Registry) ListVersions(ctx context.Context, name string) ([]run.RegisteredModel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := append([]run.RegisteredModel(nil), g.versions[name]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

// ArtifactStore keeps artifacts in a map keyed by URI.
type ArtifactStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewArtifactStore() *ArtifactStore {
	return &ArtifactStore{blobs: map[string][]byte{}}
}

func (s *ArtifactStore) Put(ctx context.Context, name string, data []byte) (run.ArtifactRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := run.ArtifactRef{
		URI:      fmt.Sprintf("mem://%s/%s", name, core.NewArtifactID()),
		Checksum: core.NewHash(data),
	}
	s.blobs[ref.URI] = append([]byte(nil), data...)
	return ref, nil
}

func (s *ArtifactStore) Get(ctx context.Context, ref run.ArtifactRef) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[ref.URI]
	if !ok {
		return nil, fmt.Errorf("%w %s", core.ErrArtifactNotFound, ref.URI)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Len returns the number of stored artifacts.
func (s *ArtifactStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

var (
	_ ports.RunLog        = (*RunLog)(nil)
	_ ports.ModelRegistry = (*Registry)(nil)
	_ ports.ArtifactStore = (*ArtifactStore)(nil)
)
