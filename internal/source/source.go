// Package source reads one table's rows, filtered, from either local files or a
// warehouse. Both implementations return the same in-memory core.Table.
package source

import (
	"context"
	"path/filepath"

	"github.com/leapstack-labs/leapetl/pkg/core"
)

// TableRef identifies a table within a dataset.
type TableRef struct {
	// Dataset is the dataset key. In warehouse mode it is also the warehouse
	// dataset (schema) name.
	Dataset string
	// Path is the dataset directory for local files.
	Path string
	// Name is the file name (local) or table name (warehouse).
	Name string
}

// File returns the local file path of the table.
func (r TableRef) File() string {
	return filepath.Join(r.Path, r.Name)
}

func (r TableRef) String() string {
	return r.Dataset + "." + r.Name
}

// Source extracts the rows of one table that satisfy a rendered filter.
// An empty filter selects every row.
type Source interface {
	Extract(ctx context.Context, ref TableRef, filter string) (*core.Table, error)
}
