package output

import (
	"bytes"
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/leapstack-labs/leapetl/internal/testutil"
	"github.com/leapstack-labs/leapetl/pkg/adapters/duckdb"
	"github.com/leapstack-labs/leapetl/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
)

func sampleTable() *core.Table {
	return &core.Table{
		Columns: []core.Column{
			{Name: "CUST_ID", Kind: core.KindString},
			{Name: "IMAGE_DT", Kind: core.KindDate},
			{Name: "LOADED_AT", Kind: core.KindTimestamp},
			{Name: "BALANCE", Kind: core.KindFloat},
			{Name: "VISITS", Kind: core.KindInt},
			{Name: "ACTIVE", Kind: core.KindBool},
		},
		Rows: [][]any{
			{"c1", time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), time.Date(2024, 4, 1, 6, 30, 0, 0, time.UTC), 10.5, int64(3), true},
			{"c2", "1969-12-31", nil, int64(20), nil, false},
			{nil, nil, nil, nil, int64(-1), nil},
		},
	}
}

func readBack(t *testing.T, path string) *core.Table {
	t.Helper()
	ctx := context.Background()
	engine := duckdb.New(nil)
	require.NoError(t, engine.Connect(ctx, core.AdapterConfig{Path: ":memory:"}))
	t.Cleanup(func() { _ = engine.Close() })

	require.NoError(t, engine.LoadFile(ctx, "t", path))
	tbl, err := engine.Query(ctx, `SELECT * FROM "t"`)
	require.NoError(t, err)
	return tbl
}

func TestWriter_WriteFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crm", "customer.parquet")
	w := NewWriter(testutil.NewTestLogger(t))

	require.NoError(t, w.WriteFile(path, sampleTable()))

	got := readBack(t, path)
	assert.Equal(t, []string{"CUST_ID", "IMAGE_DT", "LOADED_AT", "BALANCE", "VISITS", "ACTIVE"}, got.ColumnNames(), "no index column is added")
	require.Equal(t, 3, got.Len())

	assert.Equal(t, "c1", got.Rows[0][0])
	assert.Equal(t, "2024-03-31", got.Rows[0][1].(time.Time).Format(time.DateOnly))
	assert.Equal(t, time.Date(2024, 4, 1, 6, 30, 0, 0, time.UTC), got.Rows[0][2].(time.Time).UTC())
	assert.InDelta(t, 10.5, got.Rows[0][3], 1e-9)
	assert.Equal(t, int64(3), got.Rows[0][4])
	assert.Equal(t, true, got.Rows[0][5])

	assert.Equal(t, "1969-12-31", got.Rows[1][1].(time.Time).Format(time.DateOnly))
	assert.InDelta(t, 20.0, got.Rows[1][3], 1e-9)
	assert.Nil(t, got.Rows[1][2])

	assert.Nil(t, got.Rows[2][0])
	assert.Equal(t, int64(-1), got.Rows[2][4])
}

func TestWriter_WriteFile_EmptyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.parquet")
	tbl := &core.Table{Columns: []core.Column{{Name: "CUST_ID", Kind: core.KindString}}}

	require.NoError(t, WriteParquet(path, tbl))

	got := readBack(t, path)
	assert.Equal(t, 0, got.Len())
	assert.Equal(t, []string{"CUST_ID"}, got.ColumnNames())
}

func TestWriter_WriteFile_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "customer.parquet")
	require.NoError(t, WriteParquet(path, sampleTable()))

	smaller := sampleTable()
	smaller.Rows = smaller.Rows[:1]
	require.NoError(t, WriteParquet(path, smaller))

	assert.Equal(t, 1, readBack(t, path).Len())
}

func TestWriter_WriteTo(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter(nil).WriteTo(&buf, sampleTable()))

	b := buf.Bytes()
	require.Greater(t, len(b), 8)
	assert.Equal(t, "PAR1", string(b[:4]))
	assert.Equal(t, "PAR1", string(b[len(b)-4:]))
}

func TestWriter_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		tbl  *core.Table
	}{
		{"nil table", nil},
		{"no columns", &core.Table{}},
		{"duplicate column", &core.Table{Columns: []core.Column{{Name: "a"}, {Name: "a"}}}},
		{"ragged row", &core.Table{Columns: []core.Column{{Name: "a"}}, Rows: [][]any{{"x", "y"}}}},
		{"bad bool", &core.Table{Columns: []core.Column{{Name: "a", Kind: core.KindBool}}, Rows: [][]any{{"yes"}}}},
		{"bad date", &core.Table{Columns: []core.Column{{Name: "a", Kind: core.KindDate}}, Rows: [][]any{{"31/03/2024"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, WriteParquet(filepath.Join(dir, tt.name+".parquet"), tt.tbl))
		})
	}
}

func TestMetadata(t *testing.T) {
	md, err := Metadata([]core.Column{
		{Name: "id", Kind: core.KindInt},
		{Name: "dt", Kind: core.KindDate},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"inname=C0, name=id, type=INT64, repetitiontype=OPTIONAL",
		"inname=C1, name=dt, type=INT32, convertedtype=DATE, repetitiontype=OPTIONAL",
	}, md)
}

func TestMetadata_RejectsUnstorableNames(t *testing.T) {
	tests := []struct {
		name   string
		column string
	}{
		{"comma", "amount,usd"},
		{"tab", "amount\tusd"},
		{"padded", " amount"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Metadata([]core.Column{{Name: "id"}, {Name: tt.column}})
			var nameErr *ColumnNameError
			require.ErrorAs(t, err, &nameErr)
			assert.Equal(t, tt.column, nameErr.Column)
		})
	}

	t.Run("write fails before creating rows", func(t *testing.T) {
		tbl := &core.Table{
			Columns: []core.Column{{Name: "amount,usd", Kind: core.KindString}},
			Rows:    [][]any{{"1"}},
		}
		var nameErr *ColumnNameError
		assert.ErrorAs(t, WriteParquet(filepath.Join(t.TempDir(), "x.parquet"), tbl), &nameErr)
	})
}

func footerNames(t *testing.T, path string) []string {
	t.Helper()
	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fr.Close() })

	pr := &reader.ParquetReader{PFile: fr}
	require.NoError(t, pr.ReadFooter())

	var names []string
	for _, el := range pr.Footer.Schema[1:] {
		names = append(names, el.Name)
	}
	return names
}

func TestWriter_WriteFile_KeepsColumnsApartByPosition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.parquet")
	tbl := &core.Table{
		Columns: []core.Column{
			{Name: "id", Kind: core.KindString},
			{Name: "Id", Kind: core.KindString},
			{Name: "rate=pct", Kind: core.KindFloat},
		},
		Rows: [][]any{
			{"lower", "UPPER", 1.5},
			{nil, "only-upper", nil},
		},
	}

	require.NoError(t, WriteParquet(path, tbl))

	assert.Equal(t, []string{"id", "Id", "rate=pct"}, footerNames(t, path))

	got := readRows(t, path, `{"Tag": "name=parquet_go_root, repetitiontype=REQUIRED", "Fields": [
		{"Tag": "name=id, inname=Lower, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"},
		{"Tag": "name=Id, inname=Upper, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"},
		{"Tag": "name=rate=pct, inname=Rate, type=DOUBLE, repetitiontype=OPTIONAL"}
	]}`, 2)
	assert.Equal(t, [][]any{
		{"lower", "UPPER", 1.5},
		{nil, "only-upper", nil},
	}, got)
}

// readRows reads n rows with an explicit read schema, so columns whose names
// differ only in case map to distinct fields.
func readRows(t *testing.T, path, schema string, n int) [][]any {
	t.Helper()
	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fr.Close() })

	pr, err := reader.NewParquetReader(fr, schema, 1)
	require.NoError(t, err)
	defer pr.ReadStop()

	rows, err := pr.ReadByNumber(n)
	require.NoError(t, err)

	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		v := reflect.ValueOf(r)
		vals := make([]any, v.NumField())
		for i := range vals {
			f := v.Field(i)
			if f.Kind() == reflect.Ptr {
				if f.IsNil() {
					continue
				}
				f = f.Elem()
			}
			vals[i] = f.Interface()
		}
		out = append(out, vals)
	}
	return out
}
