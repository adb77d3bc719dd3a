// Package sqlite provides a SQLite warehouse adapter for LeapETL.
//
// SQLite has no datasets; each dataset key may be mapped to an attached
// database file through the "attach" param. Tables of unmapped datasets are
// looked up in the main database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/leapetl/pkg/adapter"

	_ "modernc.org/sqlite" // sqlite driver
)

// Params holds SQLite-specific configuration.
type Params struct {
	// Attach maps a dataset key to a database file attached under that name.
	Attach map[string]string `mapstructure:"attach"`
}

// Adapter implements the adapter.Adapter interface for SQLite.
type Adapter struct {
	adapter.BaseSQLAdapter
	attached map[string]bool
}

// New creates a new SQLite adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
		attached:       map[string]bool{},
	}
}

// Connect opens the database file (or ":memory:") and attaches dataset files.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	path := cfg.Path
	if path == "" {
		path = cfg.DSN
	}
	if path == "" {
		path = ":memory:"
	}

	var params Params
	if err := mapstructure.Decode(cfg.Params, &params); err != nil {
		return fmt.Errorf("invalid sqlite params: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite connection: %w", err)
	}
	// A single connection keeps ATTACH and :memory: state visible to every query.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite: %w", err)
	}
	a.DB = db
	a.Cfg = cfg

	names := make([]string, 0, len(params.Attach))
	for name := range params.Attach {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		stmt := fmt.Sprintf("ATTACH DATABASE %s AS %s", adapter.QuoteLiteral(params.Attach[name]), adapter.QuoteIdent(name))
		if err := a.Exec(ctx, stmt); err != nil {
			_ = db.Close()
			a.DB = nil
			return fmt.Errorf("failed to attach %s: %w", name, err)
		}
		a.attached[name] = true
	}

	a.Logger.Debug("opened sqlite", slog.String("path", path), slog.Int("attached", len(names)))
	return nil
}

// QuoteTable qualifies the table with the dataset only when that dataset is attached.
func (a *Adapter) QuoteTable(dataset, table string) string {
	if a.attached[dataset] {
		return a.BaseSQLAdapter.QuoteTable(dataset, table)
	}
	return adapter.QuoteIdent(table)
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
