// Package journal persists completed operations and their progress
// trails to a local SQLite database. The journal is an audit trail, not
// a source of truth: generation state is always re-read from the system.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/luminix/luminix/pkg/engine"
	"github.com/luminix/luminix/pkg/progress"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Journal implements engine.Recorder over SQLite.
type Journal struct {
	db   *sql.DB
	path string
}

// Config holds journal configuration.
type Config struct {
	// Path is the database file. Empty means the default data-dir
	// location; ":memory:" keeps the journal in memory.
	Path string
}

// DefaultPath returns the per-user journal location.
func DefaultPath() (string, error) {
	return xdg.DataFile("luminix/journal.db")
}

// Open opens (creating if necessary) the journal database and brings the
// schema up to date.
func Open(ctx context.Context, cfg Config) (*Journal, error) {
	path := cfg.Path
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve journal path: %w", err)
		}
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping journal database: %w", err)
	}

	j := &Journal{db: db, path: path}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

func (j *Journal) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(j.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Record implements engine.Recorder.
func (j *Journal) Record(ctx context.Context, result *engine.ExecutionResult, events []progress.Event) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var errKind, errDetail sql.NullString
	if result.Error != nil {
		errKind = sql.NullString{String: string(result.Error.Kind), Valid: true}
		errDetail = sql.NullString{String: result.Error.Detail, Valid: result.Error.Detail != ""}
	}
	var data []byte
	if result.Data != nil {
		if data, err = json.Marshal(result.Data); err != nil {
			return fmt.Errorf("failed to encode result data: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO operations (id, kind, executor, success, message, error_kind, error_detail, data, duration_ms, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.OperationID,
		string(result.Kind),
		result.Executor,
		result.Success,
		result.Message,
		errKind,
		errDetail,
		data,
		result.Duration.Milliseconds(),
		result.StartedAt.UTC(),
		result.StartedAt.Add(result.Duration).UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record operation: %w", err)
	}

	for i, ev := range events {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO progress_events (operation_id, seq, phase, percent, message, emitted_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			result.OperationID, i, ev.Phase, ev.Percent, ev.Message, ev.Timestamp.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to record progress event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit journal entry: %w", err)
	}
	return nil
}

// Entry is one journaled operation.
type Entry struct {
	// OperationID identifies the operation.
	OperationID string `json:"operation_id"`

	// Kind is the operation kind.
	Kind string `json:"kind"`

	// Executor names the path that ran it.
	Executor string `json:"executor"`

	// Success reports whether the operation completed.
	Success bool `json:"success"`

	// Message is the user-facing summary.
	Message string `json:"message"`

	// ErrorKind is the failure classification, empty on success.
	ErrorKind string `json:"error_kind,omitempty"`

	// Duration is how long execution took.
	Duration time.Duration `json:"duration_ms"`

	// StartedAt is when execution began.
	StartedAt time.Time `json:"started_at"`
}

// Recent returns the latest entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, kind, executor, success, message, error_kind, duration_ms, started_at
		FROM operations
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var errKind sql.NullString
		var durationMS int64
		if err := rows.Scan(&e.OperationID, &e.Kind, &e.Executor, &e.Success,
			&e.Message, &errKind, &durationMS, &e.StartedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		e.ErrorKind = errKind.String
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal entries: %w", err)
	}
	return entries, nil
}

// ProgressTrail returns the recorded progress events for one operation in
// emission order.
func (j *Journal) ProgressTrail(ctx context.Context, operationID string) ([]progress.Event, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT phase, percent, message, emitted_at
		FROM progress_events
		WHERE operation_id = ?
		ORDER BY seq ASC
	`, operationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress trail: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []progress.Event
	for rows.Next() {
		var ev progress.Event
		if err := rows.Scan(&ev.Phase, &ev.Percent, &ev.Message, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan progress event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read progress events: %w", err)
	}
	return events, nil
}
