package dates

import (
	"context"
	"fmt"
	"time"

	"github.com/leapstack-labs/leapetl/pkg/core"
)

// SourceWindow is the externally governed source-data date range.
type SourceWindow struct {
	Start string
	End   string
}

// ControlLookup supplies the source window from a control table.
type ControlLookup interface {
	SourceWindow(ctx context.Context) (SourceWindow, error)
}

// Querier runs a query and materialises its result. Warehouse adapters satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string) (*core.Table, error)
}

// QueryLookup reads the source window with a single query that must return
// exactly one row with source_start and source_end columns.
type QueryLookup struct {
	Querier Querier
	Query   string
}

// SourceWindow runs the control query.
func (q *QueryLookup) SourceWindow(ctx context.Context) (SourceWindow, error) {
	tbl, err := q.Querier.Query(ctx, q.Query)
	if err != nil {
		return SourceWindow{}, fmt.Errorf("control table query failed: %w", err)
	}
	if tbl.Len() != 1 {
		return SourceWindow{}, &ControlTableContractError{Query: q.Query, Rows: tbl.Len()}
	}

	row := tbl.Rows[0]
	var bounds [2]string
	for i, col := range []string{KeySourceStart, KeySourceEnd} {
		idx := tbl.ColumnIndex(col)
		if idx < 0 {
			return SourceWindow{}, &ControlTableContractError{
				Query:  q.Query,
				Rows:   1,
				Reason: fmt.Sprintf("column %s missing from result (columns: %v)", col, tbl.ColumnNames()),
			}
		}
		if row[idx] == nil {
			return SourceWindow{}, &ControlTableContractError{
				Query:  q.Query,
				Rows:   1,
				Reason: fmt.Sprintf("column %s is NULL", col),
			}
		}
		bounds[i] = formatBound(row[idx])
	}

	return SourceWindow{Start: bounds[0], End: bounds[1]}, nil
}

// formatBound renders dates as YYYY-MM-DD and anything with a clock component
// as "YYYY-MM-DD HH:MM:SS".
func formatBound(v any) string {
	switch x := v.(type) {
	case time.Time:
		h, m, s := x.Clock()
		if h == 0 && m == 0 && s == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.DateTime)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
