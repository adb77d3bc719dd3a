// Package duckdb provides a DuckDB adapter for LeapETL.
//
// DuckDB plays two roles: it is the in-process engine local extractions load
// files into, and it can act as a warehouse when warehouse.type is "duckdb".
package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapetl/pkg/adapter"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// ErrUnsupportedFormat is returned when a file extension has no known reader.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Adapter implements the adapter.Adapter interface for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// Connect establishes a connection to DuckDB.
// Use ":memory:" (or an empty path) for an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	path := cfg.Path
	if path == "" {
		path = cfg.DSN
	}
	if path == "" {
		path = ":memory:"
	}

	params, err := ParseParams(cfg.Params)
	if err != nil {
		return err
	}

	a.Logger.Debug("opening duckdb", slog.String("path", path))

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	a.DB = db
	a.Cfg = cfg

	if err := a.applyParams(ctx, params); err != nil {
		_ = db.Close()
		a.DB = nil
		return err
	}

	return nil
}

func (a *Adapter) applyParams(ctx context.Context, p *Params) error {
	for _, ext := range p.Extensions {
		if err := a.Exec(ctx, fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)); err != nil {
			return fmt.Errorf("failed to load extension %s: %w", ext, err)
		}
	}

	keys := make([]string, 0, len(p.Settings))
	for k := range p.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		stmt := fmt.Sprintf("SET %s = %s", k, adapter.QuoteLiteral(p.Settings[k]))
		if err := a.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply setting %s: %w", k, err)
		}
	}
	return nil
}

// ScanFunction returns the DuckDB table function that reads the file at path,
// chosen by extension: delimited text or Parquet. Hive partition detection is
// off so key=value directories in the path never add columns.
func ScanFunction(path string) (string, error) {
	lit := adapter.QuoteLiteral(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return fmt.Sprintf("read_csv_auto(%s, header=true, hive_partitioning=false)", lit), nil
	case ".tsv":
		return fmt.Sprintf("read_csv_auto(%s, header=true, delim='\\t', hive_partitioning=false)", lit), nil
	case ".parquet", ".pq":
		return fmt.Sprintf("read_parquet(%s, hive_partitioning=false)", lit), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// LoadFile materialises the whole file into a temporary table.
// DuckDB infers the schema from the file.
func (a *Adapter) LoadFile(ctx context.Context, tableName string, filePath string) error {
	if a.DB == nil {
		return fmt.Errorf("database connection not established")
	}

	// Get absolute path for the file
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	scan, err := ScanFunction(absPath)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		"CREATE OR REPLACE TEMP TABLE %s AS SELECT * FROM %s",
		adapter.QuoteIdent(tableName),
		scan,
	)

	if err := a.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to load %s: %w", filepath.Base(filePath), err)
	}

	return nil
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
