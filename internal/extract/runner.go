// Package extract runs a configured extraction: it resolves the run month's
// date variables once, renders every table filter, then extracts and persists
// each table in declaration order.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/leapetl/internal/config"
	"github.com/leapstack-labs/leapetl/internal/dates"
	"github.com/leapstack-labs/leapetl/internal/output"
	"github.com/leapstack-labs/leapetl/internal/source"
	"github.com/leapstack-labs/leapetl/internal/state"
	"github.com/leapstack-labs/leapetl/internal/template"
	"github.com/leapstack-labs/leapetl/pkg/core"
)

// Writer persists one extracted table.
type Writer interface {
	WriteFile(path string, tbl *core.Table) error
}

// Recorder keeps the history of runs and the tables they wrote.
type Recorder interface {
	StartRun(ctx context.Context, run *state.Run) error
	RecordTable(ctx context.Context, t *state.TableRun) error
	FinishRun(ctx context.Context, id string, runErr error) error
}

// Event reports a table that was extracted and written.
type Event struct {
	Dataset string `json:"dataset"`
	Table   string `json:"table"`
	Path    string `json:"path"`
	Rows    int    `json:"rows"`
	Index   int    `json:"index"` // 1-based position across all tables
	Total   int    `json:"total"`
}

// File is one persisted table.
type File struct {
	Dataset string `json:"dataset" yaml:"dataset"`
	Table   string `json:"table" yaml:"table"`
	Path    string `json:"path" yaml:"path"`
	Rows    int    `json:"rows" yaml:"rows"`
}

// Result summarises a completed run. Vars are not persisted anywhere.
type Result struct {
	RunID    string
	RunMonth dates.RunMonth
	Vars     dates.Vars
	Files    []File
	Duration time.Duration
}

// Runner executes an extraction.
type Runner struct {
	Config   *config.Config
	Source   source.Source
	Resolver *dates.Resolver
	Writer   Writer
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
	// Progress, when set, is called after each table is written.
	Progress func(Event)
	// History, when set, records the run. Recording failures are logged and
	// never fail the extraction.
	History Recorder

	closers []func() error
}

// Job is one table with its rendered filter and output path.
type Job struct {
	Ref    source.TableRef
	Filter string
	Path   string
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}

// Close releases the source and warehouse connections the runner opened.
func (r *Runner) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	r.closers = nil
	return first
}

// RunMonth returns the configured run month, or the default one when run_date
// is unset.
func (r *Runner) RunMonth() (dates.RunMonth, error) {
	if r.Config.RunDate == "" {
		return r.Resolver.RunMonth(nil), nil
	}
	rm, err := dates.ParseRunMonth(r.Config.RunDate)
	if err != nil {
		return dates.RunMonth{}, &config.ConfigError{Field: "run_date", Err: err}
	}
	base := rm.Date()
	return r.Resolver.RunMonth(&base), nil
}

// ResolveDates resolves the run month and its date variables.
func (r *Runner) ResolveDates(ctx context.Context) (dates.RunMonth, dates.Vars, error) {
	rm, err := r.RunMonth()
	if err != nil {
		return dates.RunMonth{}, nil, err
	}
	vars, err := r.Resolver.Resolve(ctx, rm)
	if err != nil {
		return dates.RunMonth{}, nil, err
	}
	return rm, vars, nil
}

// Plan renders every filter and computes every output path without touching
// any source, so an undefined variable fails the run before the first table.
func (r *Runner) Plan(vars dates.Vars) ([]Job, error) {
	jobs := make([]Job, 0, r.Config.TableCount())
	for _, ds := range r.Config.Datasets {
		for i, tbl := range ds.Tables {
			filter, err := template.Render(config.FilterField(ds.Key, i), tbl.Filter, vars)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, Job{
				Ref:    source.TableRef{Dataset: ds.Key, Path: ds.Path, Name: tbl.Name},
				Filter: filter,
				Path:   filepath.Join(r.Config.OutputDir, ds.Key, tbl.Stem()+output.Extension),
			})
		}
	}
	return jobs, nil
}

// Run executes the extraction. The first failure aborts the run; files
// already written are left in place.
func (r *Runner) Run(ctx context.Context) (res *Result, err error) {
	start := time.Now()
	runID := uuid.NewString()
	log := r.logger().With(slog.String("run_id", runID))

	rm, vars, err := r.ResolveDates(ctx)
	if err != nil {
		return nil, err
	}
	log.Info("resolved run month",
		slog.String("run_month", rm.String()),
		slog.String("month_id", rm.MonthID()),
		slog.Int("variables", len(vars)))

	if r.record(log, "start", func(h Recorder) error {
		return h.StartRun(ctx, &state.Run{ID: runID, RunMonth: rm.String(), Mode: r.Config.Mode, StartedAt: start.UTC()})
	}) {
		defer func() {
			r.record(log, "finish", func(h Recorder) error {
				return h.FinishRun(context.WithoutCancel(ctx), runID, err)
			})
		}()
	}

	jobs, err := r.Plan(vars)
	if err != nil {
		return nil, err
	}

	res = &Result{RunID: runID, RunMonth: rm, Vars: vars}
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		tbl, err := r.Source.Extract(ctx, job.Ref, job.Filter)
		if err != nil {
			return res, fmt.Errorf("extract %s: %w", job.Ref, err)
		}
		if err := r.Writer.WriteFile(job.Path, tbl); err != nil {
			return res, fmt.Errorf("write %s: %w", job.Ref, err)
		}

		f := File{Dataset: job.Ref.Dataset, Table: job.Ref.Name, Path: job.Path, Rows: tbl.Len()}
		res.Files = append(res.Files, f)

		r.record(log, "table", func(h Recorder) error {
			return h.RecordTable(ctx, &state.TableRun{
				RunID:    runID,
				Position: i + 1,
				Dataset:  f.Dataset,
				Table:    f.Table,
				Filter:   job.Filter,
				Path:     f.Path,
				Rows:     f.Rows,
			})
		})

		log.Info("extracted table",
			slog.String("dataset", f.Dataset),
			slog.String("table", f.Table),
			slog.Int("rows", f.Rows),
			slog.String("path", f.Path))

		if r.Progress != nil {
			r.Progress(Event{
				Dataset: f.Dataset,
				Table:   f.Table,
				Path:    f.Path,
				Rows:    f.Rows,
				Index:   i + 1,
				Total:   len(jobs),
			})
		}
	}

	res.Duration = time.Since(start)
	log.Info("extraction complete",
		slog.Int("tables", len(res.Files)),
		slog.Duration("duration", res.Duration))
	return res, nil
}

// record calls fn on the history recorder, if any, and reports whether it
// succeeded.
func (r *Runner) record(log *slog.Logger, op string, fn func(Recorder) error) bool {
	if r.History == nil {
		return false
	}
	if err := fn(r.History); err != nil {
		log.Warn("run history not recorded", slog.String("op", op), slog.Any("error", err))
		return false
	}
	return true
}
