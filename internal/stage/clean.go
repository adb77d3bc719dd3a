// Package stage turns raw extracted tables into cleaned staging tables.
package stage

import (
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/leapetl/pkg/core"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CleanFunc transforms one raw table into its staged form.
type CleanFunc func(*core.Table) (*core.Table, error)

// Customer table columns.
const (
	ColCustomerID = "CUST_ID"
	ColImageDate  = "IMAGE_DT"
)

// timestampLayouts are tried in order when IMAGE_DT holds text.
var timestampLayouts = []string{
	time.DateOnly,
	time.DateTime,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"20060102",
}

// CleanCustomer normalises CUST_ID (trimmed, upper-cased), parses IMAGE_DT to
// a timestamp and drops rows repeating an earlier (CUST_ID, IMAGE_DT) pair.
// The input table is not modified.
func CleanCustomer(in *core.Table) (*core.Table, error) {
	idCol := in.ColumnIndex(ColCustomerID)
	if idCol < 0 {
		return nil, fmt.Errorf("customer table has no %s column", ColCustomerID)
	}
	dtCol := in.ColumnIndex(ColImageDate)
	if dtCol < 0 {
		return nil, fmt.Errorf("customer table has no %s column", ColImageDate)
	}

	out := &core.Table{
		Columns: append([]core.Column(nil), in.Columns...),
		Rows:    make([][]any, 0, in.Len()),
	}
	out.Columns[idCol].Kind = core.KindString
	out.Columns[dtCol].Kind = core.KindTimestamp

	upper := cases.Upper(language.Und)
	seen := make(map[string]bool, in.Len())

	for i, src := range in.Rows {
		row := append([]any(nil), src...)

		if v := core.NormalizeValue(row[idCol]); v != nil {
			s, ok := v.(string)
			if !ok {
				s = fmt.Sprint(v)
			}
			row[idCol] = upper.String(strings.TrimSpace(s))
		}

		ts, err := parseTimestamp(row[dtCol])
		if err != nil {
			return nil, fmt.Errorf("row %d: %s: %w", i, ColImageDate, err)
		}
		row[dtCol] = ts

		key := dedupeKey(row[idCol], ts)
		if seen[key] {
			continue
		}
		seen[key] = true
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// parseTimestamp returns nil for missing values and a UTC time otherwise.
func parseTimestamp(v any) (any, error) {
	switch x := core.NormalizeValue(v).(type) {
	case nil:
		return nil, nil
	case time.Time:
		return x.UTC(), nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil, nil
		}
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return nil, fmt.Errorf("cannot parse %q as a date", s)
	default:
		return nil, fmt.Errorf("cannot parse %T as a date", v)
	}
}

// dedupeKey treats missing values as equal to each other.
func dedupeKey(id, ts any) string {
	var b strings.Builder
	if id == nil {
		b.WriteString("\x00")
	} else {
		fmt.Fprintf(&b, "s:%s", id)
	}
	b.WriteByte('\x1f')
	if t, ok := ts.(time.Time); ok {
		fmt.Fprintf(&b, "t:%d", t.UnixNano())
	} else {
		b.WriteString("\x00")
	}
	return b.String()
}
