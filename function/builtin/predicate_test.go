package builtin

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowquery-dev/flowquery/ast"
	"github.com/flowquery-dev/flowquery/function"
	"github.com/flowquery-dev/flowquery/scope"
)

var dummyExpr ast.Expr = &ast.Literal{Value: true}

// gtOne evaluates the loop variable bound under loopVar and reports
// whether it is greater than 1, independent of the expr passed in (the
// fake evaluator ignores it and reads straight out of the scope).
func gtOne(loopVar string) function.Evaluator {
	return func(e ast.Expr, sc *scope.Scope) (any, error) {
		v, _ := sc.Get(loopVar)
		return v.(int64) > 1, nil
	}
}

func doubleVal(loopVar string) function.Evaluator {
	return func(e ast.Expr, sc *scope.Scope) (any, error) {
		v, _ := sc.Get(loopVar)
		return v.(int64) * 2, nil
	}
}

func lookupPredicate(t *testing.T, name string) function.PredicateFunc {
	t.Helper()
	d, err := function.Default.Lookup(name)
	require.NoError(t, err)
	fn, ok := d.New().(function.PredicateFunc)
	require.True(t, ok)
	return fn
}

func TestAllPredicate(t *testing.T) {
	fn := lookupPredicate(t, "all")
	list := []any{int64(2), int64(3)}
	v, err := fn.Eval(list, "x", dummyExpr, nil, scope.New(), gtOne("x"))
	require.NoError(t, err)
	require.Equal(t, true, v)

	list = []any{int64(2), int64(1)}
	v, err = fn.Eval(list, "x", dummyExpr, nil, scope.New(), gtOne("x"))
	require.NoError(t, err)
	require.Equal(t, false, v)
}

func TestAnyPredicate(t *testing.T) {
	fn := lookupPredicate(t, "any")
	list := []any{int64(0), int64(2)}
	v, err := fn.Eval(list, "x", dummyExpr, nil, scope.New(), gtOne("x"))
	require.NoError(t, err)
	require.Equal(t, true, v)

	list = []any{int64(0), int64(1)}
	v, err = fn.Eval(list, "x", dummyExpr, nil, scope.New(), gtOne("x"))
	require.NoError(t, err)
	require.Equal(t, false, v)
}

func TestNonePredicate(t *testing.T) {
	fn := lookupPredicate(t, "none")
	list := []any{int64(0), int64(1)}
	v, err := fn.Eval(list, "x", dummyExpr, nil, scope.New(), gtOne("x"))
	require.NoError(t, err)
	require.Equal(t, true, v)

	list = []any{int64(0), int64(2)}
	v, err = fn.Eval(list, "x", dummyExpr, nil, scope.New(), gtOne("x"))
	require.NoError(t, err)
	require.Equal(t, false, v)
}

func TestSinglePredicate(t *testing.T) {
	fn := lookupPredicate(t, "single")
	list := []any{int64(0), int64(2), int64(3)}
	v, err := fn.Eval(list, "x", dummyExpr, nil, scope.New(), gtOne("x"))
	require.NoError(t, err)
	require.Equal(t, false, v) // two matches, not exactly one

	list = []any{int64(0), int64(2), int64(1)}
	v, err = fn.Eval(list, "x", dummyExpr, nil, scope.New(), gtOne("x"))
	require.NoError(t, err)
	require.Equal(t, true, v)
}

func TestFilterPredicate(t *testing.T) {
	fn := lookupPredicate(t, "filter")
	list := []any{int64(0), int64(1), int64(2), int64(3)}
	v, err := fn.Eval(list, "x", dummyExpr, nil, scope.New(), gtOne("x"))
	require.NoError(t, err)
	require.Equal(t, []any{int64(2), int64(3)}, v)
}

func TestFilterPredicateEmptyIsEmptySliceNotNil(t *testing.T) {
	fn := lookupPredicate(t, "filter")
	v, err := fn.Eval([]any{int64(0)}, "x", dummyExpr, nil, scope.New(), gtOne("x"))
	require.NoError(t, err)
	require.Equal(t, []any{}, v)
}

func TestExtractPredicate(t *testing.T) {
	fn := lookupPredicate(t, "extract")
	list := []any{int64(1), int64(2), int64(3)}
	v, err := fn.Eval(list, "x", nil, dummyExpr, scope.New(), doubleVal("x"))
	require.NoError(t, err)
	require.Equal(t, []any{int64(2), int64(4), int64(6)}, v)
}
