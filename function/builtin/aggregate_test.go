package builtin

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowquery-dev/flowquery/function"
)

func reduceAll(t *testing.T, name string, rows [][]any) any {
	t.Helper()
	d, err := function.Default.Lookup(name)
	require.NoError(t, err)
	fn, ok := d.New().(function.AggregateFunc)
	require.True(t, ok)
	r := fn.NewReducer()
	for _, row := range rows {
		r = fn.Reduce(r, row)
	}
	return fn.Finalize(r)
}

func TestSumAgg(t *testing.T) {
	require.Equal(t, int64(6), reduceAll(t, "sum", [][]any{{int64(1)}, {int64(2)}, {int64(3)}}))
	require.Equal(t, int64(0), reduceAll(t, "sum", [][]any{{nil}, {nil}}))
	require.Equal(t, 3.5, reduceAll(t, "sum", [][]any{{int64(1)}, {2.5}}))
}

func TestAvgAgg(t *testing.T) {
	require.Equal(t, 2.0, reduceAll(t, "avg", [][]any{{int64(1)}, {int64(2)}, {int64(3)}}))
	require.Nil(t, reduceAll(t, "avg", [][]any{{nil}}))
}

func TestMinMaxAgg(t *testing.T) {
	require.Equal(t, int64(1), reduceAll(t, "min", [][]any{{int64(3)}, {int64(1)}, {int64(2)}}))
	require.Equal(t, int64(3), reduceAll(t, "max", [][]any{{int64(3)}, {int64(1)}, {int64(2)}}))
	require.Nil(t, reduceAll(t, "min", [][]any{{nil}}))
}

func TestCountAgg(t *testing.T) {
	// count(*) passes no args per row.
	require.Equal(t, int64(3), reduceAll(t, "count", [][]any{{}, {}, {}}))
	// count(expr) skips rows where the expr evaluated to null.
	require.Equal(t, int64(2), reduceAll(t, "count", [][]any{{int64(1)}, {nil}, {int64(2)}}))
}

func TestCollectAgg(t *testing.T) {
	got := reduceAll(t, "collect", [][]any{{int64(1)}, {nil}, {int64(2)}})
	require.Equal(t, []any{int64(1), int64(2)}, got)
}

func TestCollectAggEmptyIsEmptySliceNotNil(t *testing.T) {
	got := reduceAll(t, "collect", [][]any{{nil}})
	require.Equal(t, []any{}, got)
}
