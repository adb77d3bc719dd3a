// Package output persists extracted tables as Parquet files.
package output

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/leapstack-labs/leapetl/pkg/core"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

// Extension is the file extension of persisted tables.
const Extension = ".parquet"

// parallelism is the marshalling goroutine count handed to the parquet writer.
const parallelism = 4

// Writer writes tables to Parquet: one optional column per table column,
// no index column, SNAPPY-compressed.
type Writer struct {
	Logger *slog.Logger
}

// NewWriter creates a Writer. A nil logger discards.
func NewWriter(logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Writer{Logger: logger}
}

// WriteFile writes tbl to path, creating parent directories and replacing any
// existing file.
func (w *Writer) WriteFile(path string, tbl *core.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(fw, tbl); err != nil {
		_ = fw.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	w.logger().Debug("wrote parquet",
		slog.String("path", path),
		slog.Int("rows", tbl.Len()),
		slog.Int("columns", len(tbl.Columns)))
	return nil
}

// WriteTo writes tbl as a Parquet stream to out.
func (w *Writer) WriteTo(out io.Writer, tbl *core.Table) error {
	return write(writerfile.NewWriterFile(out), tbl)
}

func (w *Writer) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return w.Logger
}

// WriteParquet writes tbl to path with a default Writer.
func WriteParquet(path string, tbl *core.Table) error {
	return NewWriter(nil).WriteFile(path, tbl)
}

func write(pf source.ParquetFile, tbl *core.Table) error {
	if tbl == nil || len(tbl.Columns) == 0 {
		return fmt.Errorf("table has no columns")
	}

	md, err := Metadata(tbl.Columns)
	if err != nil {
		return err
	}

	pw, err := writer.NewCSVWriter(md, pf, parallelism)
	if err != nil {
		return fmt.Errorf("invalid parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i, row := range tbl.Rows {
		rec, err := encodeRow(tbl.Columns, row)
		if err != nil {
			_ = pw.WriteStop()
			return fmt.Errorf("row %d: %w", i, err)
		}
		if err := pw.Write(rec); err != nil {
			_ = pw.WriteStop()
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return pw.WriteStop()
}

// ColumnNameError reports a column name that cannot be stored in a Parquet
// schema.
type ColumnNameError struct {
	Column string
	Reason string
}

func (e *ColumnNameError) Error() string {
	return fmt.Sprintf("column %q: %s", e.Column, e.Reason)
}

// Metadata renders one schema tag per column for the positional writer.
// Internal names are synthetic (C0..Cn) so that columns differing only in
// case keep their own values; the file carries the real names.
func Metadata(cols []core.Column) ([]string, error) {
	md := make([]string, 0, len(cols))
	seen := make(map[string]bool, len(cols))
	for i, c := range cols {
		if err := checkColumnName(c.Name); err != nil {
			return nil, err
		}
		if seen[c.Name] {
			return nil, &ColumnNameError{Column: c.Name, Reason: "duplicate column"}
		}
		seen[c.Name] = true
		md = append(md, fmt.Sprintf("inname=C%d, name=%s, %s, repetitiontype=OPTIONAL", i, c.Name, physicalType(c.Kind)))
	}
	return md, nil
}

// checkColumnName rejects names the tag syntax cannot carry: commas split
// tags and surrounding whitespace is trimmed away.
func checkColumnName(name string) error {
	switch {
	case name == "":
		return &ColumnNameError{Column: name, Reason: "column without a name"}
	case strings.ContainsAny(name, ",\t"):
		return &ColumnNameError{Column: name, Reason: "name contains a comma or tab"}
	case strings.TrimSpace(name) != name:
		return &ColumnNameError{Column: name, Reason: "name has leading or trailing whitespace"}
	}
	return nil
}

func physicalType(k core.Kind) string {
	switch k {
	case core.KindInt:
		return "type=INT64"
	case core.KindFloat:
		return "type=DOUBLE"
	case core.KindBool:
		return "type=BOOLEAN"
	case core.KindDate:
		return "type=INT32, convertedtype=DATE"
	case core.KindTimestamp:
		return "type=INT64, convertedtype=TIMESTAMP_MICROS"
	default:
		return "type=BYTE_ARRAY, convertedtype=UTF8"
	}
}

// encodeRow converts one row into the positional record the writer consumes.
func encodeRow(cols []core.Column, row []any) ([]any, error) {
	if len(row) != len(cols) {
		return nil, fmt.Errorf("has %d values for %d columns", len(row), len(cols))
	}
	rec := make([]any, len(cols))
	for i, c := range cols {
		v, err := encodeValue(c.Kind, row[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.Name, err)
		}
		rec[i] = v
	}
	return rec, nil
}

func encodeValue(k core.Kind, v any) (any, error) {
	v = core.NormalizeValue(v)
	if v == nil {
		return nil, nil
	}

	switch k {
	case core.KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
		if t, ok := v.(time.Time); ok {
			return t.Format(time.RFC3339Nano), nil
		}
		return fmt.Sprint(v), nil
	case core.KindInt:
		switch x := v.(type) {
		case int64:
			return x, nil
		case float64:
			return int64(x), nil
		case bool:
			if x {
				return int64(1), nil
			}
			return int64(0), nil
		}
	case core.KindFloat:
		switch x := v.(type) {
		case float64:
			return x, nil
		case int64:
			return float64(x), nil
		}
	case core.KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case core.KindDate:
		if t, ok := asTime(v); ok {
			y, m, d := t.Date()
			days := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
			return int32(days), nil
		}
	case core.KindTimestamp:
		if t, ok := asTime(v); ok {
			return t.UnixMicro(), nil
		}
	}
	return nil, fmt.Errorf("cannot store %T as %s", v, k)
}

func asTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		for _, layout := range []string{time.DateOnly, time.DateTime, time.RFC3339Nano} {
			if t, err := time.Parse(layout, x); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
