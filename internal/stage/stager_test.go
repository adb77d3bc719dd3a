package stage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/leapetl/internal/output"
	"github.com/leapstack-labs/leapetl/internal/source"
	"github.com/leapstack-labs/leapetl/internal/testutil"
	"github.com/leapstack-labs/leapetl/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStager_Run(t *testing.T) {
	ctx := context.Background()
	rawDir := filepath.Join(t.TempDir(), "raw")
	stagingDir := filepath.Join(t.TempDir(), "staging")

	require.NoError(t, output.WriteParquet(filepath.Join(rawDir, "customer.parquet"), customerTable(
		[]any{" c1", "2024-03-31", 1.0},
		[]any{"C1", "2024-03-31", 2.0},
		[]any{"c2", "2024-03-31", 3.0},
	)))

	local, err := source.OpenLocal(ctx, nil)
	require.NoError(t, err)
	defer func() { _ = local.Close() }()

	s := &Stager{Reader: local, Writer: output.NewWriter(nil), Logger: testutil.NewTestLogger(t)}
	paths, err := s.Run(ctx, rawDir, stagingDir)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(stagingDir, "customer.parquet")}, paths)

	staged, err := local.Extract(ctx, source.TableRef{Path: stagingDir, Name: "customer.parquet"}, "")
	require.NoError(t, err)
	require.Equal(t, 2, staged.Len())
	assert.Equal(t, "C1", staged.Rows[0][0])
	assert.Equal(t, "C2", staged.Rows[1][0])
	assert.Equal(t, core.KindTimestamp, staged.Columns[1].Kind)
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), staged.Rows[0][1].(time.Time).UTC())
}

func TestStager_MissingRawTable(t *testing.T) {
	ctx := context.Background()
	local, err := source.OpenLocal(ctx, nil)
	require.NoError(t, err)
	defer func() { _ = local.Close() }()

	s := &Stager{Reader: local, Writer: output.NewWriter(nil)}
	_, err = s.Run(ctx, t.TempDir(), t.TempDir())

	var srcErr *source.SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Contains(t, err.Error(), "stage customer")
}

func TestStager_CustomRules(t *testing.T) {
	ctx := context.Background()
	rawDir := t.TempDir()
	require.NoError(t, output.WriteParquet(filepath.Join(rawDir, "accounts.parquet"), &core.Table{
		Columns: []core.Column{{Name: "ID", Kind: core.KindInt}},
		Rows:    [][]any{{int64(1)}, {int64(2)}},
	}))

	local, err := source.OpenLocal(ctx, nil)
	require.NoError(t, err)
	defer func() { _ = local.Close() }()

	var seen int
	s := &Stager{
		Reader: local,
		Writer: output.NewWriter(nil),
		Rules: []Rule{{Table: "accounts", Clean: func(tbl *core.Table) (*core.Table, error) {
			seen = tbl.Len()
			return tbl, nil
		}}},
	}
	paths, err := s.Run(ctx, rawDir, t.TempDir())
	require.NoError(t, err)
	assert.Len(t, paths, 1)
	assert.Equal(t, 2, seen)
}
