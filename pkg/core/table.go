package core

import (
	"database/sql"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Kind is the logical type of a column, independent of the engine that produced it.
type Kind int

// Kind constants for column logical types.
const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindDate
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	case KindTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// Column describes one column of a Table.
type Column struct {
	Name string
	Type string // engine-native type name, may be empty
	Kind Kind
}

// Table is the in-memory result of one extraction. Sources produce it, the
// persistence step consumes it, then it is discarded.
type Table struct {
	Columns []Column
	Rows    [][]any
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// KindOf maps an engine type name (DuckDB, Postgres, SQLite, BigQuery) to a Kind.
// Unknown names map to KindString.
func KindOf(dbType string) Kind {
	t := strings.ToUpper(strings.TrimSpace(dbType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	switch t {
	case "BOOLEAN", "BOOL":
		return KindBool
	case "TINYINT", "SMALLINT", "INTEGER", "INT", "BIGINT", "HUGEINT",
		"UTINYINT", "USMALLINT", "UINTEGER", "UBIGINT",
		"INT2", "INT4", "INT8", "INT64", "SERIAL", "BIGSERIAL":
		return KindInt
	case "FLOAT", "DOUBLE", "REAL", "FLOAT4", "FLOAT8", "FLOAT64",
		"DECIMAL", "NUMERIC", "BIGNUMERIC", "DOUBLE PRECISION":
		return KindFloat
	case "DATE":
		return KindDate
	case "TIMESTAMP", "TIMESTAMPTZ", "DATETIME", "TIMESTAMP WITH TIME ZONE",
		"TIMESTAMP_S", "TIMESTAMP_MS", "TIMESTAMP_NS":
		return KindTimestamp
	default:
		return KindString
	}
}

// kindOfValue infers a Kind from a normalised Go value.
func kindOfValue(v any) Kind {
	switch v.(type) {
	case int64:
		return KindInt
	case float64:
		return KindFloat
	case bool:
		return KindBool
	case time.Time:
		return KindTimestamp
	default:
		return KindString
	}
}

// NormalizeValue converts driver-specific values into the small set of Go types
// a Table carries: nil, string, int64, float64, bool, time.Time.
func NormalizeValue(v any) any {
	switch x := v.(type) {
	case nil, string, int64, float64, bool, time.Time:
		return x
	case []byte:
		return string(x)
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x) //nolint:gosec // row counts and ids fit in int64
	case float32:
		return float64(x)
	case *big.Int:
		if x == nil {
			return nil
		}
		if x.IsInt64() {
			return x.Int64()
		}
		f, _ := new(big.Float).SetInt(x).Float64()
		return f
	case *big.Rat:
		if x == nil {
			return nil
		}
		f, _ := x.Float64()
		return f
	case interface{ Float64() float64 }:
		return x.Float64()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// FromSQLRows drains rows into a Table. The caller still owns rows and must close it.
func FromSQLRows(rows *sql.Rows) (*Table, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}

	tbl := &Table{Columns: make([]Column, len(types))}
	untyped := make([]bool, len(types))
	for i, ct := range types {
		name := ct.DatabaseTypeName()
		tbl.Columns[i] = Column{Name: ct.Name(), Type: name, Kind: KindOf(name)}
		untyped[i] = name == ""
	}

	for rows.Next() {
		values := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i := range values {
			values[i] = NormalizeValue(values[i])
		}
		tbl.Rows = append(tbl.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	// Expression columns (SQLite) carry no declared type; infer from the data.
	for i, u := range untyped {
		if !u {
			continue
		}
		for _, row := range tbl.Rows {
			if row[i] != nil {
				tbl.Columns[i].Kind = kindOfValue(row[i])
				break
			}
		}
	}

	return tbl, nil
}
