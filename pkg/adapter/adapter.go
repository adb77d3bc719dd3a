// Package adapter provides the warehouse and engine adapter contract for LeapETL.
//
// Concrete adapter implementations are in pkg/adapters/ subdirectories and
// register themselves by name; callers select one with NewAdapter.
package adapter

import (
	"context"

	"github.com/leapstack-labs/leapetl/pkg/core"
)

// Config is an alias for core.AdapterConfig.
type Config = core.AdapterConfig

// Adapter defines the interface that all warehouse adapters must implement.
// Query results are returned fully materialised as a core.Table.
type Adapter interface {
	// Connect establishes a connection using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the connection and releases resources.
	Close() error

	// Exec executes a statement that doesn't return rows.
	Exec(ctx context.Context, sql string) error

	// Query executes a statement and materialises its result.
	Query(ctx context.Context, sql string) (*core.Table, error)

	// QuoteTable renders a dataset-qualified table reference in the adapter's dialect.
	QuoteTable(dataset, table string) string
}
