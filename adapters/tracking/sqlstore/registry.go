package sqlstore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"automl/domain/core"
	"automl/domain/run"
	"automl/internal/errors"
)

const versionColumns = `name, version, run_id, artifact_uri, artifact_checksum, created_at`

// RegisterAsProduction appends a version and moves the pointer in one
// transaction. Promoting the run that is already current returns the
// existing version unchanged.
func (s *Store) RegisterAsProduction(ctx context.Context, r run.Run, name string) (run.RegisteredModel, error) {
	if r.ID.IsEmpty() || r.Artifact.IsZero() {
		return run.RegisteredModel{}, errors.InvalidInput("run has no id or artifact to register")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return run.RegisteredModel{}, errors.DatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	var current versionRow
	err = tx.GetContext(ctx, &current, tx.Rebind(`
		SELECT `+versionColumns+` FROM model_versions
		WHERE name = ? ORDER BY version DESC LIMIT 1
	`), name)
	switch {
	case err == nil && current.RunID == r.ID.String():
		return current.toModel(), nil
	case err != nil && !stderrors.Is(err, sql.ErrNoRows):
		return run.RegisteredModel{}, errors.DatabaseError("failed to read current version", err)
	}

	next := versionRow{
		Name:        name,
		Version:     current.Version + 1,
		RunID:       r.ID.String(),
		ArtifactURI: r.Artifact.URI,
		Checksum:    r.Artifact.Checksum.String(),
		CreatedAt:   s.now().Time(),
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO registered_models (name, latest_version, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET latest_version = excluded.latest_version, updated_at = excluded.updated_at
	`), name, next.Version, next.CreatedAt); err != nil {
		return run.RegisteredModel{}, errors.DatabaseError("failed to upsert registered model", err)
	}

	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO model_versions (`+versionColumns+`)
		VALUES (:name, :version, :run_id, :artifact_uri, :artifact_checksum, :created_at)
	`, next); err != nil {
		return run.RegisteredModel{}, errors.DatabaseError("failed to insert model version", err)
	}

	if err := tx.Commit(); err != nil {
		return run.RegisteredModel{}, errors.DatabaseError("failed to commit promotion", err)
	}
	s.logger.Info("[SQLStore] Registered %s version %d -> run %s", name, next.Version, r.ID)
	return next.toModel(), nil
}

// GetRegisteredModel returns the current production pointer.
func (s *Store) GetRegisteredModel(ctx context.Context, name string) (*run.RegisteredModel, error) {
	var row versionRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT mv.name, mv.version, mv.run_id, mv.artifact_uri, mv.artifact_checksum, mv.created_at
		FROM model_versions mv
		JOIN registered_models rm ON rm.name = mv.name AND rm.latest_version = mv.version
		WHERE mv.name = ?
	`), name)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w %q", core.ErrRegisteredNotFound, name)
	}
	if err != nil {
		return nil, errors.DatabaseError("failed to get registered model", err)
	}
	m := row.toModel()
	return &m, nil
}

// ListVersions returns every version of name, newest first.
func (s *Store) ListVersions(ctx context.Context, name string) ([]run.RegisteredModel, error) {
	var rows []versionRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT `+versionColumns+` FROM model_versions WHERE name = ? ORDER BY version DESC
	`), name); err != nil {
		return nil, errors.DatabaseError("failed to list versions", err)
	}
	out := make([]run.RegisteredModel, len(rows))
	for i, row := range rows {
		out[i] = row.toModel()
	}
	return out, nil
}
