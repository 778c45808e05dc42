package migration

import (
	"context"

	"automl/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner creates the tracking schema. Statements are written in the
// subset shared by SQLite and PostgreSQL so one runner serves both drivers.
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createExperimentsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create experiments table")
	}

	if err := r.createRunsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create runs table")
	}

	if err := r.createRegisteredModelsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create registered_models table")
	}

	if err := r.createModelVersionsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create model_versions table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createExperimentsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS experiments (
			name VARCHAR(255) PRIMARY KEY,
			created_at TIMESTAMP NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id VARCHAR(64) PRIMARY KEY,
			experiment VARCHAR(255) NOT NULL REFERENCES experiments(name),
			name VARCHAR(255) NOT NULL,
			architecture VARCHAR(100) NOT NULL,
			score DOUBLE PRECISION,
			params TEXT,
			metrics TEXT,
			tags TEXT,
			artifact_uri TEXT NOT NULL DEFAULT '',
			artifact_checksum VARCHAR(64) NOT NULL DEFAULT '',
			status VARCHAR(20) NOT NULL,
			error_message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createRegisteredModelsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS registered_models (
			name VARCHAR(255) PRIMARY KEY,
			latest_version INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createModelVersionsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS model_versions (
			name VARCHAR(255) NOT NULL REFERENCES registered_models(name),
			version INTEGER NOT NULL,
			run_id VARCHAR(64) NOT NULL REFERENCES runs(id),
			artifact_uri TEXT NOT NULL,
			artifact_checksum VARCHAR(64) NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (name, version)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_runs_experiment ON runs(experiment)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_architecture ON runs(architecture)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_model_versions_run_id ON model_versions(run_id)`,
	}

	for _, idx := range indexes {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}
