package adapter_test

import (
	"testing"

	"github.com/leapstack-labs/leapetl/pkg/adapter"
	"github.com/leapstack-labs/leapetl/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Each warehouse registers itself on import.
	_ "github.com/leapstack-labs/leapetl/pkg/adapters/bigquery"
	_ "github.com/leapstack-labs/leapetl/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leapetl/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/leapetl/pkg/adapters/sqlite"
)

func TestRegistered_IncludesEveryWarehouse(t *testing.T) {
	names := adapter.Registered()
	assert.Subset(t, names, []string{"bigquery", "duckdb", "postgres", "sqlite"})
	assert.IsNonDecreasing(t, names)
}

func TestIsRegistered(t *testing.T) {
	tests := []struct {
		warehouse string
		want      bool
	}{
		{"duckdb", true},
		{"postgres", true},
		{"sqlite", true},
		{"bigquery", true},
		{"snowflake", false},
		{"DuckDB", false},
	}

	for _, tt := range tests {
		t.Run(tt.warehouse, func(t *testing.T) {
			assert.Equal(t, tt.want, adapter.IsRegistered(tt.warehouse))
		})
	}
}

func TestLookup(t *testing.T) {
	factory, ok := adapter.Lookup("duckdb")
	require.True(t, ok)
	require.NotNil(t, factory)

	_, ok = adapter.Lookup("snowflake")
	assert.False(t, ok)
}

func TestNew_BuildsUnconnectedAdapter(t *testing.T) {
	adp, err := adapter.New(core.AdapterConfig{Type: "duckdb", Path: ":memory:"}, nil)
	require.NoError(t, err)
	require.NotNil(t, adp)
	assert.Equal(t, `"crm"."customer"`, adp.QuoteTable("crm", "customer"))
}

func TestNew_UnknownWarehouse(t *testing.T) {
	_, err := adapter.New(core.AdapterConfig{Type: "snowflake"}, nil)

	var unknownErr *adapter.UnknownAdapterError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "snowflake", unknownErr.Type)
	assert.Contains(t, unknownErr.Available, "duckdb")
}
