package stage

import (
	"testing"
	"time"

	"github.com/leapstack-labs/leapetl/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func customerTable(rows ...[]any) *core.Table {
	return &core.Table{
		Columns: []core.Column{
			{Name: "CUST_ID", Kind: core.KindString},
			{Name: "IMAGE_DT", Kind: core.KindString},
			{Name: "BALANCE", Kind: core.KindFloat},
		},
		Rows: rows,
	}
}

func ts(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCleanCustomer(t *testing.T) {
	in := customerTable(
		[]any{"  ab12 ", "2024-03-31", 1.0},
		[]any{"AB12", "2024-03-31", 2.0},
		[]any{"ab12", "2024-02-29", 3.0},
		[]any{"straße", "2024-03-31 00:00:00", 4.0},
		[]any{nil, nil, 5.0},
		[]any{nil, "", 6.0},
		[]any{int64(42), ts(2024, 3, 31), 7.0},
	)

	out, err := CleanCustomer(in)
	require.NoError(t, err)

	require.Equal(t, 5, out.Len())
	assert.Equal(t, []any{"AB12", ts(2024, 3, 31), 1.0}, out.Rows[0], "first occurrence wins")
	assert.Equal(t, []any{"AB12", ts(2024, 2, 29), 3.0}, out.Rows[1])
	assert.Equal(t, "STRASSE", out.Rows[2][0])
	assert.Equal(t, []any{nil, nil, 5.0}, out.Rows[3], "missing keys dedupe together")
	assert.Equal(t, "42", out.Rows[4][0])

	assert.Equal(t, core.KindTimestamp, out.Columns[1].Kind)
	assert.Equal(t, core.KindString, in.Columns[1].Kind, "input schema untouched")
	assert.Equal(t, "  ab12 ", in.Rows[0][0], "input rows untouched")
}

func TestCleanCustomer_Idempotent(t *testing.T) {
	in := customerTable(
		[]any{" x ", "2024-03-31", 1.0},
		[]any{"X", "2024-03-31", 2.0},
	)
	once, err := CleanCustomer(in)
	require.NoError(t, err)
	twice, err := CleanCustomer(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestCleanCustomer_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   *core.Table
		want string
	}{
		{
			name: "missing CUST_ID",
			in:   &core.Table{Columns: []core.Column{{Name: "IMAGE_DT"}}},
			want: "no CUST_ID column",
		},
		{
			name: "missing IMAGE_DT",
			in:   &core.Table{Columns: []core.Column{{Name: "CUST_ID"}}},
			want: "no IMAGE_DT column",
		},
		{
			name: "unparsable date",
			in:   customerTable([]any{"a", "not a date", 1.0}),
			want: `row 0: IMAGE_DT: cannot parse "not a date"`,
		},
		{
			name: "boolean date",
			in:   customerTable([]any{"a", true, 1.0}),
			want: "cannot parse bool",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CleanCustomer(tt.in)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
