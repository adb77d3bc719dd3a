// Package state records extraction run history in SQLite: one row per run
// and one row per table the run wrote.
package state

import (
	"context"
	"errors"
	"time"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

var (
	// ErrNotOpen is returned when the store is used before Open.
	ErrNotOpen = errors.New("state database not opened")
	// ErrRunNotFound is returned by GetRun for an unknown id.
	ErrRunNotFound = errors.New("run not found")
)

// Run is one extraction.
type Run struct {
	ID          string      `json:"id" yaml:"id"`
	RunMonth    string      `json:"run_month" yaml:"run_month"`
	Mode        string      `json:"mode" yaml:"mode"`
	Status      RunStatus   `json:"status" yaml:"status"`
	StartedAt   time.Time   `json:"started_at" yaml:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Error       string      `json:"error,omitempty" yaml:"error,omitempty"`
	Tables      []*TableRun `json:"tables,omitempty" yaml:"tables,omitempty"`
}

// Duration is the run's wall time, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// TableRun is one table written by a run.
type TableRun struct {
	RunID     string    `json:"-" yaml:"-"`
	Position  int       `json:"position" yaml:"position"`
	Dataset   string    `json:"dataset" yaml:"dataset"`
	Table     string    `json:"table" yaml:"table"`
	Filter    string    `json:"filter,omitempty" yaml:"filter,omitempty"`
	Path      string    `json:"path" yaml:"path"`
	Rows      int       `json:"rows" yaml:"rows"`
	WrittenAt time.Time `json:"written_at" yaml:"written_at"`
}

// Store persists run history.
type Store interface {
	Open(path string) error
	Close() error

	StartRun(ctx context.Context, run *Run) error
	RecordTable(ctx context.Context, t *TableRun) error
	// FinishRun marks the run completed, or failed with runErr's message.
	FinishRun(ctx context.Context, id string, runErr error) error

	GetRun(ctx context.Context, id string) (*Run, error)
	// ListRuns returns the most recent runs first, without their tables.
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
}

// StatusOf maps a run's final error onto its status.
func StatusOf(runErr error) RunStatus {
	switch {
	case runErr == nil:
		return RunStatusCompleted
	case errors.Is(runErr, context.Canceled):
		return RunStatusCancelled
	default:
		return RunStatusFailed
	}
}
