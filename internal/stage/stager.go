package stage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/leapstack-labs/leapetl/internal/output"
	"github.com/leapstack-labs/leapetl/internal/source"
	"github.com/leapstack-labs/leapetl/pkg/core"
)

// Rule pairs a raw table name with its cleaning function.
type Rule struct {
	Table string
	Clean CleanFunc
}

// DefaultRules are the tables staged by Run.
var DefaultRules = []Rule{
	{Table: "customer", Clean: CleanCustomer},
}

// Writer persists one staged table.
type Writer interface {
	WriteFile(path string, tbl *core.Table) error
}

// Stager reads raw Parquet tables, cleans them and writes staging tables.
type Stager struct {
	Reader source.Source
	Writer Writer
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
	// Rules overrides DefaultRules when non-nil.
	Rules []Rule
}

func (s *Stager) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}

// StageTable reads <rawDir>/<name>.parquet, applies clean and writes
// <stagingDir>/<name>.parquet. It returns the written path.
func (s *Stager) StageTable(ctx context.Context, rawDir, stagingDir, name string, clean CleanFunc) (string, error) {
	ref := source.TableRef{Dataset: filepath.Base(rawDir), Path: rawDir, Name: name + output.Extension}

	raw, err := s.Reader.Extract(ctx, ref, "")
	if err != nil {
		return "", fmt.Errorf("stage %s: %w", name, err)
	}

	cleaned, err := clean(raw)
	if err != nil {
		return "", fmt.Errorf("stage %s: %w", name, err)
	}

	path := filepath.Join(stagingDir, name+output.Extension)
	if err := s.Writer.WriteFile(path, cleaned); err != nil {
		return "", fmt.Errorf("stage %s: %w", name, err)
	}

	s.logger().Info("staged table",
		slog.String("table", name),
		slog.Int("raw_rows", raw.Len()),
		slog.Int("rows", cleaned.Len()),
		slog.String("path", path))
	return path, nil
}

// Run stages every rule's table and returns the written paths in order.
func (s *Stager) Run(ctx context.Context, rawDir, stagingDir string) ([]string, error) {
	rules := s.Rules
	if rules == nil {
		rules = DefaultRules
	}

	paths := make([]string, 0, len(rules))
	for _, rule := range rules {
		path, err := s.StageTable(ctx, rawDir, stagingDir, rule.Table, rule.Clean)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
