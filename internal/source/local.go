package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/leapstack-labs/leapetl/pkg/adapter"
	"github.com/leapstack-labs/leapetl/pkg/adapters/duckdb"
	"github.com/leapstack-labs/leapetl/pkg/core"
)

// loadedTable is the temp table each file is loaded into before filtering.
const loadedTable = "leapetl_source"

// Local reads CSV and Parquet files through an in-process DuckDB engine.
// Filters are DuckDB boolean expressions over the file's columns.
type Local struct {
	engine *duckdb.Adapter
	logger *slog.Logger
}

// NewLocal wraps a connected DuckDB engine.
func NewLocal(engine *duckdb.Adapter, logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Local{engine: engine, logger: logger}
}

// OpenLocal connects an in-memory DuckDB engine and wraps it.
func OpenLocal(ctx context.Context, logger *slog.Logger) (*Local, error) {
	engine := duckdb.New(logger)
	if err := engine.Connect(ctx, adapter.Config{Type: "duckdb", Path: ":memory:"}); err != nil {
		return nil, err
	}
	return NewLocal(engine, logger), nil
}

// Close releases the engine.
func (l *Local) Close() error {
	return l.engine.Close()
}

// Extract loads the whole file then keeps the rows matching filter.
func (l *Local) Extract(ctx context.Context, ref TableRef, filter string) (*core.Table, error) {
	file := ref.File()
	if _, err := os.Stat(file); err != nil {
		return nil, &SourceError{Ref: ref, Op: "open " + file, Err: err}
	}

	if err := l.engine.LoadFile(ctx, loadedTable, file); err != nil {
		return nil, &SourceError{Ref: ref, Op: "read " + file, Err: err}
	}
	defer func() {
		if err := l.engine.Exec(context.WithoutCancel(ctx), "DROP TABLE IF EXISTS "+adapter.QuoteIdent(loadedTable)); err != nil {
			l.logger.Warn("failed to drop source table", slog.String("error", err.Error()))
		}
	}()

	query := "SELECT * FROM " + adapter.QuoteIdent(loadedTable)
	if f := strings.TrimSpace(filter); f != "" {
		query = fmt.Sprintf("%s WHERE (%s)", query, f)
	}

	l.logger.Debug("filtering local file",
		slog.String("dataset", ref.Dataset),
		slog.String("table", ref.Name),
		slog.String("query", query))

	tbl, err := l.engine.Query(ctx, query)
	if err != nil {
		return nil, &FilterEvaluationError{Ref: ref, Filter: filter, Err: err}
	}
	return tbl, nil
}

var _ Source = (*Local)(nil)
