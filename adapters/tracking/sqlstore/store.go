package sqlstore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"automl/domain/core"
	"automl/domain/run"
	"automl/internal"
	"automl/internal/errors"
	"automl/internal/migration"
	"automl/ports"
)

// Store is a SQL-backed run log and model registry. Both supported drivers
// share one schema; queries are rebound to the driver's placeholder style.
type Store struct {
	db     *sqlx.DB
	clock  core.Clock
	logger *internal.Logger
}

var (
	_ ports.RunLog        = (*Store)(nil)
	_ ports.ModelRegistry = (*Store)(nil)
)

// Open connects with the given driver ("sqlite3" or "postgres") and runs
// migrations.
func Open(ctx context.Context, driver, dsn string, logger *internal.Logger) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to tracking store", err)
	}
	if driver == "sqlite3" {
		// SQLite allows one writer; serialising connections avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return nil, errors.DatabaseError("failed to migrate tracking store", err)
	}
	return New(db, logger), nil
}

// New wraps an already migrated database.
func New(db *sqlx.DB, logger *internal.Logger) *Store {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Store{db: db, clock: core.SystemClock, logger: logger}
}

// WithClock replaces the timestamp source.
func (s *Store) WithClock(c core.Clock) *Store {
	s.clock = c
	return s
}

func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) now() core.Timestamp {
	return core.NewTimestamp(s.clock().UTC())
}

// LogRun persists the record inside a transaction, creating the experiment
// on first use.
func (s *Store) LogRun(ctx context.Context, rec run.Record) (run.Run, error) {
	r := run.FromRecord(core.NewRunID(), rec, s.now())

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return run.Run{}, errors.DatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO experiments (name, created_at) VALUES (?, ?)
		ON CONFLICT (name) DO NOTHING
	`), r.Experiment, r.CreatedAt.Time()); err != nil {
		return run.Run{}, errors.DatabaseError("failed to create experiment", err)
	}

	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO runs (id, experiment, name, architecture, score, params, metrics, tags,
			artifact_uri, artifact_checksum, status, error_message, created_at)
		VALUES (:id, :experiment, :name, :architecture, :score, :params, :metrics, :tags,
			:artifact_uri, :artifact_checksum, :status, :error_message, :created_at)
	`, newRunRow(r, rec)); err != nil {
		return run.Run{}, errors.DatabaseError("failed to insert run", err)
	}

	if err := tx.Commit(); err != nil {
		return run.Run{}, errors.DatabaseError("failed to commit run", err)
	}
	s.logger.Debug("[SQLStore] Logged run %s (%s/%s, %s)", r.ID, r.Experiment, r.Name, r.Status)
	return r, nil
}

const runColumns = `id, experiment, name, architecture, score, params, metrics, tags,
	artifact_uri, artifact_checksum, status, error_message, created_at`

// GetRun returns one run by id.
func (s *Store) GetRun(ctx context.Context, id core.RunID) (*run.Run, error) {
	var row runRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+runColumns+` FROM runs WHERE id = ?`), id.String())
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w %s", core.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, errors.DatabaseError("failed to get run", err)
	}
	r := row.toRun()
	return &r, nil
}

// ListRuns returns runs in creation order.
func (s *Store) ListRuns(ctx context.Context, f ports.RunFilters) ([]run.Run, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Experiment != "" {
		where = append(where, "experiment = ?")
		args = append(args, f.Experiment)
	}
	if f.Architecture != "" {
		where = append(where, "architecture = ?")
		args = append(args, f.Architecture)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, errors.DatabaseError("failed to list runs", err)
	}
	if f.Limit <= 0 && f.Offset > 0 {
		if f.Offset >= len(rows) {
			return nil, nil
		}
		rows = rows[f.Offset:]
	}
	out := make([]run.Run, len(rows))
	for i, row := range rows {
		out[i] = row.toRun()
	}
	return out, nil
}
