package artifacts

import (
	"context"
	"io"
	"net/url"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automl/domain/core"
	"automl/domain/run"
)

func TestPutGetRoundTrip(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	data := []byte(`{"architecture":"xgboost"}`)
	ref, err := s.Put(ctx, "churn/xgboost_optimized", data)
	require.NoError(t, err)
	assert.Equal(t, core.NewHash(data), ref.Checksum)

	rc, err := s.Get(ctx, ref)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestPutNeverOverwrites(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	a, err := s.Put(ctx, "exp/run", []byte("a"))
	require.NoError(t, err)
	b, err := s.Put(ctx, "exp/run", []byte("b"))
	require.NoError(t, err)
	assert.NotEqual(t, a.URI, b.URI)

	rc, err := s.Get(ctx, a)
	require.NoError(t, err)
	got, _ := io.ReadAll(rc)
	assert.Equal(t, "a", string(got))
}

func TestGetDetectsTampering(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	ref, err := s.Put(ctx, "exp/run", []byte("original"))
	require.NoError(t, err)
	u, err := url.Parse(ref.URI)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(u.Path, []byte("tampered"), 0o644))

	_, err = s.Get(ctx, ref)
	assert.Error(t, err)
}

func TestGetMissingIsNotFound(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileStore(root, nil)
	require.NoError(t, err)

	_, err = s.Get(context.Background(), run.ArtifactRef{URI: "file://" + root + "/gone.json"})
	assert.True(t, core.IsNotFoundError(err))
}

func TestPathsOutsideRootAreRejected(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Put(ctx, "../escape", []byte("x"))
	assert.Error(t, err)
	_, err = s.Get(ctx, run.ArtifactRef{URI: "file:///etc/passwd"})
	assert.Error(t, err)
	_, err = s.Get(ctx, run.ArtifactRef{URI: "s3://bucket/key"})
	assert.Error(t, err)
}
