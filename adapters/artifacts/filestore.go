package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"automl/domain/core"
	"automl/domain/run"
	"automl/internal"
	"automl/internal/errors"
	"automl/ports"
)

// FileStore keeps artifacts as files under a root directory. Every Put
// writes a new file, so an artifact is never overwritten once referenced.
type FileStore struct {
	root   string
	logger *internal.Logger
}

var _ ports.ArtifactStore = (*FileStore)(nil)

// NewFileStore creates the root directory if needed.
func NewFileStore(root string, logger *internal.Logger) (*FileStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.ArtifactError("invalid artifact root", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, errors.ArtifactError("failed to create artifact root", err)
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &FileStore{root: abs, logger: logger}, nil
}

func (s *FileStore) Root() string { return s.root }

// Put writes data to <root>/<name>/<artifact id>.json via a temp file and
// rename.
func (s *FileStore) Put(ctx context.Context, name string, data []byte) (run.ArtifactRef, error) {
	if err := ctx.Err(); err != nil {
		return run.ArtifactRef{}, err
	}
	dir, err := s.within(filepath.Join(s.root, filepath.FromSlash(name)))
	if err != nil {
		return run.ArtifactRef{}, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return run.ArtifactRef{}, errors.ArtifactError("failed to create artifact directory", err)
	}

	path := filepath.Join(dir, core.NewArtifactID().String()+".json")
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return run.ArtifactRef{}, errors.ArtifactError("failed to create temp file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return run.ArtifactRef{}, errors.ArtifactError("failed to write artifact", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return run.ArtifactRef{}, errors.ArtifactError("failed to sync artifact", err)
	}
	if err := tmp.Close(); err != nil {
		return run.ArtifactRef{}, errors.ArtifactError("failed to close artifact", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return run.ArtifactRef{}, errors.ArtifactError("failed to publish artifact", err)
	}

	ref := run.ArtifactRef{
		URI:      (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String(),
		Checksum: core.NewHash(data),
	}
	s.logger.Debug("[FileStore] Stored %d bytes at %s (sha256 %s)", len(data), path, ref.Checksum.Short())
	return ref, nil
}

// Get opens the artifact and verifies its checksum when one is recorded.
func (s *FileStore) Get(ctx context.Context, ref run.ArtifactRef) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, err := url.Parse(ref.URI)
	if err != nil || u.Scheme != "file" {
		return nil, errors.ArtifactError(fmt.Sprintf("unsupported artifact uri %q", ref.URI), err)
	}
	path, err := s.within(filepath.FromSlash(u.Path))
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w %s", core.ErrArtifactNotFound, ref.URI)
	}
	if err != nil {
		return nil, errors.ArtifactError("failed to read artifact", err)
	}
	if !ref.Checksum.IsEmpty() && core.NewHash(data) != ref.Checksum {
		return nil, errors.ArtifactError(fmt.Sprintf("checksum mismatch for %s", ref.URI), nil)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *FileStore) within(path string) (string, error) {
	clean := filepath.Clean(path)
	if clean != s.root && !strings.HasPrefix(clean, s.root+string(filepath.Separator)) {
		return "", errors.ArtifactError(fmt.Sprintf("path %s escapes artifact root", path), nil)
	}
	return clean, nil
}
