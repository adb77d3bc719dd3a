package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/leapstack-labs/leapetl/internal/dates"
	"github.com/leapstack-labs/leapetl/internal/template"
	"github.com/leapstack-labs/leapetl/pkg/adapter"
)

// ConfigError reports an invalid or incomplete configuration. Field is the
// dotted path of the offending value.
type ConfigError struct {
	Field string
	Msg   string
	Err   error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("invalid config")
	if e.Field != "" {
		b.WriteString(": ")
		b.WriteString(e.Field)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Err }

// leadingClause matches a filter that opens with a SQL clause keyword.
var leadingClause = regexp.MustCompile(`(?i)^\s*(WHERE|QUALIFY|HAVING|SELECT|WINDOW|LIMIT|ORDER\s+BY|GROUP\s+BY)\b`)

// warehouseClauses are the clauses a warehouse filter may open with.
var warehouseClauses = map[string]bool{
	"WHERE":    true,
	"QUALIFY":  true,
	"ORDER BY": true,
	"LIMIT":    true,
	"GROUP BY": true,
}

// LeadingClause returns the normalised clause keyword filter starts with, or "".
func LeadingClause(filter string) string {
	m := leadingClause.FindStringSubmatch(filter)
	if m == nil {
		return ""
	}
	return strings.Join(strings.Fields(strings.ToUpper(m[1])), " ")
}

// columnOperand matches what follows a keyword that is being used as a column
// name: a comparison, arithmetic other than *, a predicate keyword or nothing.
var columnOperand = regexp.MustCompile(`(?i)^\s*($|[=<>!+\-/%)]|(IS|IN|BETWEEN|LIKE|ILIKE|GLOB|AND|OR)\b)`)

// keywordIsColumn reports whether filter opens with a clause keyword that
// is really a column reference, as in "limit > 5".
func keywordIsColumn(filter string) bool {
	loc := leadingClause.FindStringIndex(filter)
	if loc == nil {
		return false
	}
	return columnOperand.MatchString(filter[loc[1]:])
}

// Stem is the table name without its extension; it names the output file.
func (t TableConfig) Stem() string {
	base := filepath.Base(t.Name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// FilterField is the config path of a table's filter, used to label errors.
func FilterField(dataset string, index int) string {
	return fmt.Sprintf("datasets.%s.tables[%d].filter", dataset, index)
}

// Validate checks the configuration before any work is done.
func (c *Config) Validate() error {
	switch c.Mode {
	case "":
		return &ConfigError{Field: "mode", Msg: "is required (local or gcp)"}
	case ModeLocal, ModeGCP:
	default:
		return &ConfigError{Field: "mode", Msg: fmt.Sprintf("unknown mode %q (want local or gcp)", c.Mode)}
	}

	if c.OutputDir == "" {
		return &ConfigError{Field: "output_dir", Msg: "must not be empty"}
	}

	switch c.OutputFormat {
	case "", "auto", "text", "json", "yaml":
	default:
		return &ConfigError{Field: "output", Msg: fmt.Sprintf("unknown format %q (want auto, text, json or yaml)", c.OutputFormat)}
	}

	if c.RunDate != "" {
		if _, err := dates.ParseRunMonth(c.RunDate); err != nil {
			return &ConfigError{Field: "run_date", Err: err}
		}
	}

	if c.Mode == ModeGCP {
		if err := c.validateWarehouse(); err != nil {
			return err
		}
	}

	if len(c.Datasets) == 0 {
		return &ConfigError{Field: "datasets", Msg: "at least one dataset is required"}
	}
	for _, ds := range c.Datasets {
		if err := c.validateDataset(ds); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateWarehouse() error {
	if c.Warehouse == nil || c.Warehouse.Type == "" {
		return &ConfigError{Field: "warehouse.type", Msg: "is required in gcp mode"}
	}
	if !adapter.IsRegistered(c.Warehouse.Type) {
		return &ConfigError{
			Field: "warehouse.type",
			Err:   &adapter.UnknownAdapterError{Type: c.Warehouse.Type, Available: adapter.Registered()},
		}
	}
	if c.Control != nil && strings.TrimSpace(c.Control.Query) == "" {
		return &ConfigError{Field: "control.query", Msg: "must not be empty when control is set"}
	}
	return nil
}

func (c *Config) validateDataset(ds DatasetConfig) error {
	field := "datasets." + ds.Key
	if ds.Key == "" {
		return &ConfigError{Field: "datasets", Msg: "dataset key must not be empty"}
	}
	if c.Mode == ModeLocal && ds.Path == "" {
		return &ConfigError{Field: field + ".path", Msg: "is required in local mode"}
	}
	if len(ds.Tables) == 0 {
		return &ConfigError{Field: field + ".tables", Msg: "at least one table is required"}
	}

	stems := make(map[string]string, len(ds.Tables))
	for i, tbl := range ds.Tables {
		tfield := fmt.Sprintf("%s.tables[%d]", field, i)
		if strings.TrimSpace(tbl.Name) == "" {
			return &ConfigError{Field: tfield + ".name", Msg: "is required"}
		}
		if prev, ok := stems[tbl.Stem()]; ok {
			return &ConfigError{
				Field: tfield + ".name",
				Msg:   fmt.Sprintf("%q and %q would both write %s.parquet", prev, tbl.Name, tbl.Stem()),
			}
		}
		stems[tbl.Stem()] = tbl.Name

		if err := c.validateFilter(FilterField(ds.Key, i), tbl.Filter); err != nil {
			return err
		}
	}
	return nil
}

// validateFilter checks template syntax and that the filter has the shape the
// mode expects: a row expression locally, a SQL clause against a warehouse.
func (c *Config) validateFilter(field, filter string) error {
	if strings.TrimSpace(filter) == "" {
		return nil
	}
	if _, err := template.Placeholders(field, filter); err != nil {
		return &ConfigError{Field: field, Msg: "malformed filter template", Err: err}
	}

	clause := LeadingClause(filter)
	switch c.Mode {
	case ModeLocal:
		if clause != "" && !keywordIsColumn(filter) {
			return &ConfigError{
				Field: field,
				Msg:   fmt.Sprintf("local filters are row expressions and must not start with %s", clause),
			}
		}
	case ModeGCP:
		if !warehouseClauses[clause] {
			return &ConfigError{
				Field: field,
				Msg:   "warehouse filters are appended after the table and must start with WHERE, QUALIFY, ORDER BY, LIMIT or GROUP BY",
			}
		}
	}
	return nil
}
