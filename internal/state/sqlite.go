package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // sqlite driver
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite state store instance.
// If logger is nil, a discard logger is used.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// OpenStore opens the history database at path and applies migrations.
func OpenStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	s := NewSQLiteStore(logger)
	if err := s.Open(path); err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Open opens a connection to the SQLite database, creating its directory.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := ":memory:?_pragma=foreign_keys(1)"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	s.logger.Debug("opened run history", slog.String("path", path))
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// StartRun inserts run with status running. A zero StartedAt is set to now.
func (s *SQLiteStore) StartRun(ctx context.Context, run *Run) error {
	if s.db == nil {
		return ErrNotOpen
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Status = RunStatusRunning

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, run_month, mode, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.RunMonth, run.Mode, string(run.Status), run.StartedAt.UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	s.logger.Debug("started run", slog.String("id", run.ID), slog.String("run_month", run.RunMonth))
	return nil
}

// RecordTable stores one written table.
func (s *SQLiteStore) RecordTable(ctx context.Context, t *TableRun) error {
	if s.db == nil {
		return ErrNotOpen
	}
	if t.WrittenAt.IsZero() {
		t.WrittenAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_tables (run_id, position, dataset, table_name, filter, path, row_count, written_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.RunID, t.Position, t.Dataset, t.Table, t.Filter, t.Path, t.Rows, t.WrittenAt.UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("failed to record table %s.%s: %w", t.Dataset, t.Table, err)
	}
	return nil
}

// FinishRun sets the run's final status and completion time.
func (s *SQLiteStore) FinishRun(ctx context.Context, id string, runErr error) error {
	if s.db == nil {
		return ErrNotOpen
	}
	var msg sql.NullString
	if runErr != nil {
		msg = sql.NullString{String: runErr.Error(), Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(StatusOf(runErr)), time.Now().UTC().UnixMicro(), msg, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// GetRun retrieves a run and its tables in the order they were written.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	run, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT id, run_month, mode, status, started_at, completed_at, error FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT position, dataset, table_name, filter, path, row_count, written_at
		 FROM run_tables WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		t := &TableRun{RunID: id}
		var written int64
		if err := rows.Scan(&t.Position, &t.Dataset, &t.Table, &t.Filter, &t.Path, &t.Rows, &written); err != nil {
			return nil, fmt.Errorf("failed to scan run table: %w", err)
		}
		t.WrittenAt = time.UnixMicro(written).UTC()
		run.Tables = append(run.Tables, t)
	}
	return run, rows.Err()
}

// ListRuns returns up to limit runs, newest first. A limit <= 0 returns all.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_month, mode, status, started_at, completed_at, error
		 FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	run := &Run{}
	var (
		status    string
		started   int64
		completed sql.NullInt64
		errMsg    sql.NullString
	)
	if err := row.Scan(&run.ID, &run.RunMonth, &run.Mode, &status, &started, &completed, &errMsg); err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	run.StartedAt = time.UnixMicro(started).UTC()
	if completed.Valid {
		t := time.UnixMicro(completed.Int64).UTC()
		run.CompletedAt = &t
	}
	run.Error = errMsg.String
	return run, nil
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
