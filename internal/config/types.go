// Package config loads and validates the extraction configuration.
//
// Values are layered with koanf: built-in defaults, then the YAML file, then
// LEAPETL_ environment variables, then explicitly set CLI flags. Dataset and
// table order always follow the YAML declaration order.
package config

import (
	"maps"

	"github.com/leapstack-labs/leapetl/pkg/core"
)

// Extraction modes.
const (
	ModeLocal = "local"
	ModeGCP   = "gcp"
)

// Config is the extraction configuration.
type Config struct {
	Mode         string           `koanf:"mode"`
	OutputDir    string           `koanf:"output_dir"`
	StagingDir   string           `koanf:"staging_dir"`
	RunDate      string           `koanf:"run_date"` // any day of the run month, optional
	Verbose      bool             `koanf:"verbose"`
	OutputFormat string           `koanf:"output"`
	History      string           `koanf:"history"` // run history database; empty disables it
	Warehouse    *WarehouseConfig `koanf:"warehouse"`
	Control      *ControlConfig   `koanf:"control"`

	// Datasets in declaration order. Filled by the loader, not by koanf.
	Datasets []DatasetConfig `koanf:"-"`

	// File is the config file the values were read from, if any.
	File string `koanf:"-"`
}

// WarehouseConfig holds warehouse connection settings for gcp mode.
type WarehouseConfig struct {
	Type string `koanf:"type"` // bigquery, postgres, duckdb, sqlite

	// BigQuery
	Project         string `koanf:"project"`
	Location        string `koanf:"location"`
	CredentialsFile string `koanf:"credentials_file"`

	// SQL warehouses
	DSN      string `koanf:"dsn"`
	Path     string `koanf:"path"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`

	// Additional driver-specific options
	Options map[string]string `koanf:"options"`

	// Params holds adapter-specific configuration (DuckDB settings, SQLite attachments)
	Params map[string]any `koanf:"params"`
}

// AdapterConfig converts the warehouse settings into the adapter contract.
func (w *WarehouseConfig) AdapterConfig() core.AdapterConfig {
	params := make(map[string]any, len(w.Params)+3)
	maps.Copy(params, w.Params)
	if w.Type == "bigquery" {
		setIfSet(params, "project", w.Project)
		setIfSet(params, "location", w.Location)
		setIfSet(params, "credentials_file", w.CredentialsFile)
	}

	return core.AdapterConfig{
		Type:     w.Type,
		Path:     w.Path,
		DSN:      w.DSN,
		Host:     w.Host,
		Port:     w.Port,
		Database: w.Database,
		Username: w.User,
		Password: w.Password,
		Options:  w.Options,
		Params:   params,
	}
}

func setIfSet(m map[string]any, key, val string) {
	if val != "" {
		m[key] = val
	}
}

// ControlConfig configures the control-table lookup of source_start/source_end.
type ControlConfig struct {
	Query string `koanf:"query"`
}

// DatasetConfig is a named group of tables. Path is the directory holding the
// files in local mode; in gcp mode the key is the warehouse dataset.
type DatasetConfig struct {
	Key    string        `koanf:"-"`
	Path   string        `koanf:"path"`
	Tables []TableConfig `koanf:"tables"`
}

// TableConfig describes one table to extract.
type TableConfig struct {
	Name   string `koanf:"name"`
	Filter string `koanf:"filter"`
}

// ControlQuery returns the control-table query when the lookup applies: only
// outside local mode and only when configured.
func (c *Config) ControlQuery() string {
	if c.Mode == ModeLocal || c.Control == nil {
		return ""
	}
	return c.Control.Query
}

// TableCount returns the number of configured tables across all datasets.
func (c *Config) TableCount() int {
	n := 0
	for _, ds := range c.Datasets {
		n += len(ds.Tables)
	}
	return n
}
