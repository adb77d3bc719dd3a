package source

import (
	"context"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapetl/pkg/adapter"
	"github.com/leapstack-labs/leapetl/pkg/core"
)

// Warehouse reads tables with a single SELECT against a connected adapter.
// Filters are SQL clauses appended verbatim after the table reference.
type Warehouse struct {
	adapter adapter.Adapter
	logger  *slog.Logger
}

// NewWarehouse wraps a connected adapter.
func NewWarehouse(a adapter.Adapter, logger *slog.Logger) *Warehouse {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Warehouse{adapter: a, logger: logger}
}

// Query returns the SELECT issued for ref and filter.
func (w *Warehouse) Query(ref TableRef, filter string) string {
	query := "SELECT * FROM " + w.adapter.QuoteTable(ref.Dataset, ref.Name)
	if f := strings.TrimSpace(filter); f != "" {
		query += " " + f
	}
	return query
}

// Extract runs the query and materialises its result.
func (w *Warehouse) Extract(ctx context.Context, ref TableRef, filter string) (*core.Table, error) {
	query := w.Query(ref, filter)

	w.logger.Debug("querying warehouse",
		slog.String("dataset", ref.Dataset),
		slog.String("table", ref.Name),
		slog.String("query", query))

	tbl, err := w.adapter.Query(ctx, query)
	if err != nil {
		return nil, &SourceError{Ref: ref, Op: "query", Err: err}
	}
	return tbl, nil
}

var _ Source = (*Warehouse)(nil)
