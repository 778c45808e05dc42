package migration

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunIsIdempotent(t *testing.T) {
	db, err := sqlx.Open("sqlite3", "file::memory:?cache=shared&_foreign_keys=on")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	r := NewRunner()
	require.NoError(t, r.Run(context.Background(), db))
	require.NoError(t, r.Run(context.Background(), db))

	var tables []string
	require.NoError(t, db.Select(&tables,
		`SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`))
	assert.Equal(t, []string{"experiments", "model_versions", "registered_models", "runs"}, tables)
	assert.Equal(t, "1.0.0", r.Version())
}
