package source

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapetl/internal/testutil"
	"github.com/leapstack-labs/leapetl/pkg/adapter"
	"github.com/leapstack-labs/leapetl/pkg/adapters/sqlite"
	"github.com/leapstack-labs/leapetl/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingAdapter quotes tables BigQuery-style and records issued queries.
type recordingAdapter struct {
	queries []string
	result  *core.Table
	err     error
}

func (r *recordingAdapter) Connect(context.Context, adapter.Config) error { return nil }
func (r *recordingAdapter) Close() error                                  { return nil }
func (r *recordingAdapter) Exec(context.Context, string) error            { return nil }
func (r *recordingAdapter) QuoteTable(dataset, table string) string {
	return "`" + dataset + "." + table + "`"
}

func (r *recordingAdapter) Query(_ context.Context, sql string) (*core.Table, error) {
	r.queries = append(r.queries, sql)
	return r.result, r.err
}

func TestWarehouse_QueryShape(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		want   string
	}{
		{"no filter", "", "SELECT * FROM `crm.customer`"},
		{"where", "WHERE IMAGE_DT = '2024-03-31'", "SELECT * FROM `crm.customer` WHERE IMAGE_DT = '2024-03-31'"},
		{"qualify", "QUALIFY ROW_NUMBER() OVER (PARTITION BY id) = 1", "SELECT * FROM `crm.customer` QUALIFY ROW_NUMBER() OVER (PARTITION BY id) = 1"},
		{"trimmed", "  LIMIT 10 ", "SELECT * FROM `crm.customer` LIMIT 10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingAdapter{result: &core.Table{}}
			w := NewWarehouse(rec, testutil.NewTestLogger(t))

			_, err := w.Extract(context.Background(), TableRef{Dataset: "crm", Name: "customer"}, tt.filter)
			require.NoError(t, err)
			require.Len(t, rec.queries, 1)
			assert.Equal(t, tt.want, rec.queries[0])
			assert.Equal(t, tt.want, w.Query(TableRef{Dataset: "crm", Name: "customer"}, tt.filter))
		})
	}
}

func TestWarehouse_QueryFailure(t *testing.T) {
	cause := errors.New("403 access denied")
	w := NewWarehouse(&recordingAdapter{err: cause}, nil)

	_, err := w.Extract(context.Background(), TableRef{Dataset: "crm", Name: "customer"}, "")

	var srcErr *SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "query", srcErr.Op)
}

func TestWarehouse_SQLite(t *testing.T) {
	ctx := context.Background()
	crmPath := filepath.Join(t.TempDir(), "crm.db")

	seed := sqlite.New(nil)
	require.NoError(t, seed.Connect(ctx, adapter.Config{Path: crmPath}))
	require.NoError(t, seed.Exec(ctx, `CREATE TABLE customer (CUST_ID TEXT, IMAGE_DT TEXT)`))
	require.NoError(t, seed.Exec(ctx, `INSERT INTO customer VALUES ('c1', '2024-02-29'), ('c2', '2024-03-31')`))
	require.NoError(t, seed.Close())

	wh := sqlite.New(nil)
	require.NoError(t, wh.Connect(ctx, adapter.Config{
		Params: map[string]any{"attach": map[string]any{"crm": crmPath}},
	}))
	defer func() { _ = wh.Close() }()

	tbl, err := NewWarehouse(wh, nil).Extract(ctx,
		TableRef{Dataset: "crm", Name: "customer"},
		"WHERE IMAGE_DT = '2024-03-31'")
	require.NoError(t, err)

	require.Equal(t, 1, tbl.Len())
	assert.Equal(t, "c2", tbl.Rows[0][0])

	_, err = NewWarehouse(wh, nil).Extract(ctx, TableRef{Dataset: "crm", Name: "missing"}, "")
	var srcErr *SourceError
	assert.ErrorAs(t, err, &srcErr)
}
