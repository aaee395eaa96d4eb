package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dirkeep/internal/database/migrations"
	"dirkeep/internal/dk"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements dk.RunStore using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase opens the database at path and migrates it to the latest schema.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return &SQLiteDatabase{db: db, path: path}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is configured and migrated.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Run operations

func (s *SQLiteDatabase) CreateRun(run dk.RunRecord) error {
	status := run.Status
	if status == "" {
		status = dk.RunStatusRunning
	}
	_, err := s.db.ExecContext(context.Background(), `
		INSERT INTO runs (id, timestamp_tag, source, started_at, status)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.TimestampTag, run.Source, run.StartedAt.UTC(), status)
	if err != nil {
		return fmt.Errorf("creating run: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FinishRun(runID string, finishedAt time.Time, status string) error {
	res, err := s.db.ExecContext(context.Background(),
		`UPDATE runs SET finished_at = ?, status = ? WHERE id = ?`,
		finishedAt.UTC(), status, runID)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finishing run: no run with id %s", runID)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first, with per-run outcome counts.
// A non-positive limit returns every run.
func (s *SQLiteDatabase) ListRuns(limit int) ([]dk.RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT r.id, r.timestamp_tag, r.source, r.started_at, r.finished_at, r.status,
		       COUNT(o.sequence),
		       COALESCE(SUM(CASE WHEN o.error != '' THEN 1 ELSE 0 END), 0)
		FROM runs r
		LEFT JOIN outcomes o ON o.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC, r.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []dk.RunRecord
	for rows.Next() {
		var (
			r        dk.RunRecord
			finished sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.TimestampTag, &r.Source, &r.StartedAt, &finished, &r.Status,
			&r.EntryCount, &r.FailedCount); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// Outcome operations

func (s *SQLiteDatabase) RecordOutcome(runID string, o dk.OperationOutcome) error {
	var errText string
	if o.Err != nil {
		errText = o.Err.Error()
	}
	_, err := s.db.ExecContext(context.Background(), `
		INSERT INTO outcomes (run_id, sequence, path, action, include_subdirs,
		                      files_touched, bytes_touched, directories_touched, skipped,
		                      archive_file, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, o.Sequence, o.Entry.Path, o.Entry.Action.String(), o.Entry.IncludeSubdirectories,
		o.FilesTouched, o.BytesTouched, o.DirectoriesTouched, o.Skipped,
		o.ArchiveFile, errText, o.StartedAt.UTC(), o.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("recording outcome: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListOutcomes(runID string) ([]dk.OutcomeRecord, error) {
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT run_id, sequence, path, action, include_subdirs,
		       files_touched, bytes_touched, directories_touched, skipped,
		       archive_file, error
		FROM outcomes
		WHERE run_id = ?
		ORDER BY sequence`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []dk.OutcomeRecord
	for rows.Next() {
		var o dk.OutcomeRecord
		if err := rows.Scan(&o.RunID, &o.Sequence, &o.Path, &o.Action, &o.IncludeSubdirs,
			&o.FilesTouched, &o.BytesTouched, &o.DirectoriesTouched, &o.Skipped,
			&o.ArchiveFile, &o.Error); err != nil {
			return nil, fmt.Errorf("scanning outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing outcomes: %w", err)
	}
	return outcomes, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements dk.RunStore
var _ dk.RunStore = (*SQLiteDatabase)(nil)
