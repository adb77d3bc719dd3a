package extract

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapetl/internal/config"
	"github.com/leapstack-labs/leapetl/internal/dates"
	"github.com/leapstack-labs/leapetl/internal/testutil"
	"github.com/leapstack-labs/leapetl/pkg/adapter"
	"github.com/leapstack-labs/leapetl/pkg/adapters/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedWarehouse(t *testing.T, stmts ...string) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "crm.db")
	seed := sqlite.New(nil)
	require.NoError(t, seed.Connect(ctx, adapter.Config{Path: path}))
	for _, stmt := range stmts {
		require.NoError(t, seed.Exec(ctx, stmt))
	}
	require.NoError(t, seed.Close())
	return path
}

func warehouseConfig(t *testing.T, crmPath, controlQuery string) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Mode:      config.ModeGCP,
		OutputDir: filepath.Join(t.TempDir(), "out"),
		RunDate:   "2024-03-15",
		Warehouse: &config.WarehouseConfig{
			Type:   "sqlite",
			Params: map[string]any{"attach": map[string]any{"crm": crmPath}},
		},
		Datasets: []config.DatasetConfig{{
			Key: "crm",
			Tables: []config.TableConfig{
				{Name: "customer", Filter: "WHERE IMAGE_DT BETWEEN '{source_start}' AND '{calendar_end}'"},
			},
		}},
	}
	if controlQuery != "" {
		cfg.Control = &config.ControlConfig{Query: controlQuery}
	}
	return cfg
}

func TestNew_WarehouseEndToEnd(t *testing.T) {
	ctx := context.Background()
	crmPath := seedWarehouse(t,
		`CREATE TABLE customer (CUST_ID TEXT, IMAGE_DT TEXT)`,
		`INSERT INTO customer VALUES ('c1', '2022-12-31'), ('c2', '2023-06-30'), ('c3', '2024-03-31'), ('c4', '2024-04-30')`,
		`CREATE TABLE ctl_window (source_start TEXT, source_end TEXT)`,
		`INSERT INTO ctl_window VALUES ('2023-01-01', '2024-02-29')`,
	)
	cfg := warehouseConfig(t, crmPath, `SELECT source_start, source_end FROM crm.ctl_window`)
	require.NoError(t, cfg.Validate())

	r, err := New(ctx, cfg, testutil.NewTestLogger(t), Options{})
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	res, err := r.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, "2023-01-01", res.Vars[dates.KeySourceStart])
	assert.Equal(t, "2024-02-29", res.Vars[dates.KeySourceEnd])
	require.Len(t, res.Files, 1)
	assert.Equal(t, 2, res.Files[0].Rows, "c2 and c3 fall in the window")
	assert.FileExists(t, filepath.Join(cfg.OutputDir, "crm", "customer.parquet"))
}

func TestNew_WarehouseControlContract(t *testing.T) {
	ctx := context.Background()
	crmPath := seedWarehouse(t,
		`CREATE TABLE customer (CUST_ID TEXT, IMAGE_DT TEXT)`,
		`CREATE TABLE ctl_window (source_start TEXT, source_end TEXT)`,
	)
	cfg := warehouseConfig(t, crmPath, `SELECT source_start, source_end FROM crm.ctl_window`)

	r, err := New(ctx, cfg, nil, Options{})
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	_, err = r.Run(ctx)
	var contract *dates.ControlTableContractError
	require.ErrorAs(t, err, &contract)
	assert.Equal(t, 0, contract.Rows)
	assert.NoDirExists(t, cfg.OutputDir)
}

func TestNew_LocalNeverLooksUpControlTable(t *testing.T) {
	cfg := &config.Config{
		Mode:      config.ModeLocal,
		OutputDir: t.TempDir(),
		Control:   &config.ControlConfig{Query: "SELECT 1"},
		Datasets: []config.DatasetConfig{{
			Key: "crm", Path: t.TempDir(),
			Tables: []config.TableConfig{{Name: "customer.csv"}},
		}},
	}

	r, err := New(context.Background(), cfg, nil, Options{})
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	assert.Nil(t, r.Resolver.Lookup)
}

func TestNew_Offline(t *testing.T) {
	cfg := warehouseConfig(t, "unused.db", "SELECT source_start, source_end FROM ctl")
	cfg.Warehouse.Type = "bigquery-not-registered"

	r, err := New(context.Background(), cfg, nil, Options{Offline: true})
	require.NoError(t, err, "offline wiring never touches the warehouse")
	assert.Nil(t, r.Source)

	_, vars, err := r.ResolveDates(context.Background())
	require.NoError(t, err)
	jobs, err := r.Plan(vars)
	require.NoError(t, err)
	assert.Equal(t, "WHERE IMAGE_DT BETWEEN '<source_start>' AND '2024-03-31'", jobs[0].Filter)
}

func TestNew_UnknownWarehouse(t *testing.T) {
	cfg := warehouseConfig(t, "unused.db", "")
	cfg.Warehouse.Type = "oracle"

	_, err := New(context.Background(), cfg, nil, Options{})
	var unknown *adapter.UnknownAdapterError
	assert.ErrorAs(t, err, &unknown)
}
