package provider

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowquery-dev/flowquery/function"
)

// These providers need a live Redis/Mongo server to exercise Call end to
// end, so only their registration shape is checked here; chanIter's
// draining/error-propagation behavior (exercised by both providers'
// goroutines) is covered directly in chaniter_test.go.

func TestRedisScanIsRegisteredAsAsync(t *testing.T) {
	d, err := function.Default.Lookup("redisScan")
	require.NoError(t, err)
	require.Equal(t, function.Async, d.Category)
	require.True(t, d.Arity.Accepts(2))
	require.False(t, d.Arity.Accepts(1))
	require.False(t, d.Arity.Accepts(3))
	require.Equal(t, []string{"addr", "pattern"}, paramNames(d.Params))

	_, ok := d.New().(function.AsyncProvider)
	require.True(t, ok)
}

func TestMongoFindIsRegisteredAsAsync(t *testing.T) {
	d, err := function.Default.Lookup("mongoFind")
	require.NoError(t, err)
	require.Equal(t, function.Async, d.Category)
	require.True(t, d.Arity.Accepts(4))
	require.False(t, d.Arity.Accepts(3))
	require.Equal(t, []string{"uri", "database", "collection", "filter"}, paramNames(d.Params))

	_, ok := d.New().(function.AsyncProvider)
	require.True(t, ok)
}

func paramNames(params []function.ParamSchema) []string {
	out := make([]string, len(params))
	for i, p := range params {
		out[i] = p.Name
	}
	return out
}
