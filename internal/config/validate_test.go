package config

import (
	"errors"
	"testing"

	"github.com/leapstack-labs/leapetl/internal/template"
	"github.com/leapstack-labs/leapetl/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validLocal() *Config {
	return &Config{
		Mode:      ModeLocal,
		OutputDir: DefaultOutputDir,
		Datasets: []DatasetConfig{{
			Key:  "crm",
			Path: "data/crm",
			Tables: []TableConfig{
				{Name: "customer.csv", Filter: "IMAGE_DT >= '{calendar_start}'"},
				{Name: "orders.parquet"},
			},
		}},
	}
}

func validGCP() *Config {
	return &Config{
		Mode:      ModeGCP,
		OutputDir: DefaultOutputDir,
		Warehouse: &WarehouseConfig{Type: "sqlite"},
		Datasets: []DatasetConfig{{
			Key:    "crm",
			Tables: []TableConfig{{Name: "customer", Filter: "WHERE IMAGE_DT = '{run_month}'"}},
		}},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		cfg       func() *Config
		wantField string
		wantSub   string
	}{
		{name: "valid local", cfg: validLocal},
		{name: "valid gcp", cfg: validGCP},
		{
			name:      "missing mode",
			cfg:       func() *Config { c := validLocal(); c.Mode = ""; return c },
			wantField: "mode",
		},
		{
			name:      "unknown mode",
			cfg:       func() *Config { c := validLocal(); c.Mode = "azure"; return c },
			wantField: "mode",
			wantSub:   `unknown mode "azure"`,
		},
		{
			name:      "empty output dir",
			cfg:       func() *Config { c := validLocal(); c.OutputDir = ""; return c },
			wantField: "output_dir",
		},
		{
			name:      "bad output format",
			cfg:       func() *Config { c := validLocal(); c.OutputFormat = "xml"; return c },
			wantField: "output",
		},
		{
			name:      "bad run date",
			cfg:       func() *Config { c := validLocal(); c.RunDate = "March"; return c },
			wantField: "run_date",
		},
		{
			name:      "no datasets",
			cfg:       func() *Config { c := validLocal(); c.Datasets = nil; return c },
			wantField: "datasets",
		},
		{
			name:      "dataset without tables",
			cfg:       func() *Config { c := validLocal(); c.Datasets[0].Tables = nil; return c },
			wantField: "datasets.crm.tables",
		},
		{
			name:      "local dataset without path",
			cfg:       func() *Config { c := validLocal(); c.Datasets[0].Path = ""; return c },
			wantField: "datasets.crm.path",
		},
		{
			name:      "table without name",
			cfg:       func() *Config { c := validLocal(); c.Datasets[0].Tables[1].Name = " "; return c },
			wantField: "datasets.crm.tables[1].name",
		},
		{
			name: "colliding stems",
			cfg: func() *Config {
				c := validLocal()
				c.Datasets[0].Tables[1].Name = "customer.parquet"
				return c
			},
			wantField: "datasets.crm.tables[1].name",
			wantSub:   "customer.parquet",
		},
		{
			name:      "local filter with WHERE",
			cfg:       func() *Config { c := validLocal(); c.Datasets[0].Tables[0].Filter = "where IMAGE_DT = 1"; return c },
			wantField: "datasets.crm.tables[0].filter",
			wantSub:   "must not start with WHERE",
		},
		{
			name:      "warehouse filter without clause",
			cfg:       func() *Config { c := validGCP(); c.Datasets[0].Tables[0].Filter = "IMAGE_DT = '{run_month}'"; return c },
			wantField: "datasets.crm.tables[0].filter",
			wantSub:   "must start with WHERE",
		},
		{
			name:      "warehouse filter with SELECT",
			cfg:       func() *Config { c := validGCP(); c.Datasets[0].Tables[0].Filter = "SELECT 1"; return c },
			wantField: "datasets.crm.tables[0].filter",
		},
		{
			name:      "missing warehouse",
			cfg:       func() *Config { c := validGCP(); c.Warehouse = nil; return c },
			wantField: "warehouse.type",
		},
		{
			name:      "empty control query",
			cfg:       func() *Config { c := validGCP(); c.Control = &ControlConfig{Query: "  "}; return c },
			wantField: "control.query",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg().Validate()
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantField, cfgErr.Field)
			if tt.wantSub != "" {
				assert.Contains(t, cfgErr.Error(), tt.wantSub)
			}
		})
	}
}

func TestValidate_WarehouseFilterClauses(t *testing.T) {
	for _, filter := range []string{
		"WHERE a = 1",
		"where a = 1",
		"QUALIFY ROW_NUMBER() OVER (PARTITION BY id ORDER BY ts DESC) = 1",
		"ORDER  BY id",
		"LIMIT 10",
		"GROUP BY id",
		"",
	} {
		c := validGCP()
		c.Datasets[0].Tables[0].Filter = filter
		assert.NoError(t, c.Validate(), filter)
	}
}

func TestValidate_LocalFilterOnKeywordNamedColumn(t *testing.T) {
	tests := []struct {
		filter string
		valid  bool
	}{
		{"limit > 5", true},
		{"LIMIT >= {month_id}", true},
		{"order = 'open'", true},
		{"select IS NOT NULL", true},
		{"window IN ('a', 'b')", true},
		{"limit - 1 < 5", true},
		{`"limit" > 5`, true},
		{"LIMIT 5", false},
		{"WHERE limit > 5", false},
		{"WHERE NOT deleted", false},
		{"ORDER BY id", false},
		{"SELECT * FROM t", false},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			c := validLocal()
			c.Datasets[0].Tables[0].Filter = tt.filter
			err := c.Validate()
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, cfgErr.Msg, "must not start with")
		})
	}
}

func TestValidate_UnknownWarehouse(t *testing.T) {
	c := validGCP()
	c.Warehouse.Type = "snowflake"

	err := c.Validate()
	var unknown *adapter.UnknownAdapterError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "snowflake", unknown.Type)
	assert.Contains(t, unknown.Available, "bigquery")
}

func TestValidate_MalformedTemplate(t *testing.T) {
	c := validLocal()
	c.Datasets[0].Tables[0].Filter = "IMAGE_DT = '{run_month'"

	err := c.Validate()
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)

	var lexErr *template.LexError
	require.True(t, errors.As(err, &lexErr))
	assert.Equal(t, "datasets.crm.tables[0].filter", lexErr.Position().File)
}

func TestValidate_UnknownPlaceholderIsNotAConfigError(t *testing.T) {
	c := validLocal()
	c.Datasets[0].Tables[0].Filter = "IMAGE_DT = '{calendar_start_99m}'"
	assert.NoError(t, c.Validate(), "undefined variables surface when filters are rendered")
}

func TestLeadingClause(t *testing.T) {
	assert.Equal(t, "WHERE", LeadingClause("  where x"))
	assert.Equal(t, "ORDER BY", LeadingClause("order\n by x"))
	assert.Equal(t, "", LeadingClause("WHEREAS = 1"))
	assert.Equal(t, "", LeadingClause("IMAGE_DT = 1"))
}

func TestTableConfig_Stem(t *testing.T) {
	assert.Equal(t, "customer", TableConfig{Name: "customer.csv"}.Stem())
	assert.Equal(t, "customer.v2", TableConfig{Name: "customer.v2.parquet"}.Stem())
	assert.Equal(t, "customer", TableConfig{Name: "customer"}.Stem())
	assert.Equal(t, "orders", TableConfig{Name: "sub/orders.csv"}.Stem())
}
