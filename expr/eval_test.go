package expr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowquery-dev/flowquery/ast"
	"github.com/flowquery-dev/flowquery/function"
	"github.com/flowquery-dev/flowquery/scope"
	"github.com/flowquery-dev/flowquery/value"

	_ "github.com/flowquery-dev/flowquery/function/builtin"
)

func testEnv() *Env {
	return &Env{Functions: function.Default}
}

func evalStr(t *testing.T, e ast.Expr, sc *scope.Scope) any {
	t.Helper()
	v, err := Eval(e, sc, testEnv())
	require.NoError(t, err)
	return v
}

func TestEvalLiteralsAndCollections(t *testing.T) {
	sc := scope.New()
	require.Equal(t, int64(1), evalStr(t, &ast.Literal{Value: int64(1)}, sc))

	list := &ast.ListLiteral{Items: []ast.Expr{&ast.Literal{Value: int64(1)}, &ast.Literal{Value: int64(2)}}}
	require.Equal(t, []any{int64(1), int64(2)}, evalStr(t, list, sc))

	m := &ast.MapLiteral{Keys: []string{"a", "b"}, Values: []ast.Expr{&ast.Literal{Value: int64(1)}, &ast.Literal{Value: "x"}}}
	require.Equal(t, map[string]any{"a": int64(1), "b": "x"}, evalStr(t, m, sc))
}

func TestEvalFString(t *testing.T) {
	sc := scope.New()
	sc.Set("name", "world")
	f := &ast.FString{
		Segments: []string{"hello ", "!"},
		Exprs:    []ast.Expr{&ast.Ident{Name: "name"}},
	}
	require.Equal(t, "hello world!", evalStr(t, f, sc))
}

func TestEvalIdentUnboundErrors(t *testing.T) {
	sc := scope.New()
	_, err := Eval(&ast.Ident{Name: "missing"}, sc, testEnv())
	require.Error(t, err)
}

func TestEvalPropertyAndIndexAccess(t *testing.T) {
	sc := scope.New()
	n := &value.Node{Label: "Person", Props: map[string]any{"id": int64(1), "name": "Alice"}}
	sc.Set("p", n)

	prop := &ast.Property{Base: &ast.Ident{Name: "p"}, Field: "name"}
	require.Equal(t, "Alice", evalStr(t, prop, sc))

	sc.Set("xs", []any{int64(10), int64(20), int64(30)})
	idx := &ast.Index{Base: &ast.Ident{Name: "xs"}, Index: &ast.Literal{Value: int64(-1)}}
	require.Equal(t, int64(30), evalStr(t, idx, sc))

	idxOOB := &ast.Index{Base: &ast.Ident{Name: "xs"}, Index: &ast.Literal{Value: int64(99)}}
	require.Nil(t, evalStr(t, idxOOB, sc))
}

func TestEvalUnary(t *testing.T) {
	sc := scope.New()
	require.Equal(t, int64(-5), evalStr(t, &ast.Unary{Op: "-", X: &ast.Literal{Value: int64(5)}}, sc))
	require.Equal(t, true, evalStr(t, &ast.Unary{Op: "NOT", X: &ast.Literal{Value: false}}, sc))
}

func TestEvalCaseWithTest(t *testing.T) {
	sc := scope.New()
	c := &ast.CaseExpr{
		Test:  &ast.Literal{Value: int64(2)},
		Whens: []ast.Expr{&ast.Literal{Value: int64(1)}, &ast.Literal{Value: int64(2)}},
		Thens: []ast.Expr{&ast.Literal{Value: "one"}, &ast.Literal{Value: "two"}},
		Else:  &ast.Literal{Value: "other"},
	}
	require.Equal(t, "two", evalStr(t, c, sc))
}

func TestEvalCaseFallsThroughToElse(t *testing.T) {
	sc := scope.New()
	c := &ast.CaseExpr{
		Whens: []ast.Expr{&ast.Literal{Value: false}},
		Thens: []ast.Expr{&ast.Literal{Value: "never"}},
		Else:  &ast.Literal{Value: "fallback"},
	}
	require.Equal(t, "fallback", evalStr(t, c, sc))
}

func TestEvalScalarFuncCall(t *testing.T) {
	sc := scope.New()
	fc := &ast.FuncCall{Name: "toUpper", Args: []ast.Expr{&ast.Literal{Value: "abc"}}}
	require.Equal(t, "ABC", evalStr(t, fc, sc))
}

func TestEvalAggregateFuncCallUsesPrecomputedResult(t *testing.T) {
	sc := scope.New()
	fc := &ast.FuncCall{Name: "count", IsAggregate: true}
	env := &Env{Functions: function.Default, AggregateResults: map[*ast.FuncCall]any{fc: int64(7)}}
	v, err := Eval(fc, sc, env)
	require.NoError(t, err)
	require.Equal(t, int64(7), v)
}

func TestEvalAggregateFuncCallOutsideGroupingErrors(t *testing.T) {
	sc := scope.New()
	fc := &ast.FuncCall{Name: "count", IsAggregate: true}
	env := &Env{Functions: function.Default, AggregateResults: map[*ast.FuncCall]any{}}
	_, err := Eval(fc, sc, env)
	require.Error(t, err)
}

func TestEvalPredicateFuncCall(t *testing.T) {
	sc := scope.New()
	fc := &ast.FuncCall{
		Name:     "filter",
		LoopVar:  "x",
		LoopList: &ast.ListLiteral{Items: []ast.Expr{&ast.Literal{Value: int64(1)}, &ast.Literal{Value: int64(2)}, &ast.Literal{Value: int64(3)}}},
		Filter: &ast.Postfix{Items: []ast.PostfixItem{
			{Operand: &ast.Ident{Name: "x"}},
			{Operand: &ast.Literal{Value: int64(1)}},
			{Op: ">"},
		}},
	}
	require.Equal(t, []any{int64(2), int64(3)}, evalStr(t, fc, sc))
}

func TestEvalAsyncFuncCallErrors(t *testing.T) {
	sc := scope.New()
	fc := &ast.FuncCall{Name: "redisScan", Args: []ast.Expr{&ast.Literal{Value: "localhost:6379"}, &ast.Literal{Value: "*"}}}
	_, err := Eval(fc, sc, testEnv())
	require.Error(t, err)
}

func TestEvalPostfixArithmetic(t *testing.T) {
	sc := scope.New()
	// 1 + 2 * 3  linearized to 1 2 3 * + => 7
	in := &ast.Infix{Items: []ast.InfixItem{
		{Expr: &ast.Literal{Value: int64(1)}}, {Op: "+"},
		{Expr: &ast.Literal{Value: int64(2)}}, {Op: "*"},
		{Expr: &ast.Literal{Value: int64(3)}},
	}}
	pf, err := Linearize(in)
	require.NoError(t, err)
	require.Equal(t, int64(7), evalStr(t, pf, sc))
}

func TestEvalPostfixStringConcat(t *testing.T) {
	sc := scope.New()
	in := &ast.Infix{Items: []ast.InfixItem{
		{Expr: &ast.Literal{Value: "a"}}, {Op: "+"}, {Expr: &ast.Literal{Value: "b"}},
	}}
	pf, err := Linearize(in)
	require.NoError(t, err)
	require.Equal(t, "ab", evalStr(t, pf, sc))
}

func TestEvalPostfixDivisionByZeroErrors(t *testing.T) {
	sc := scope.New()
	in := &ast.Infix{Items: []ast.InfixItem{
		{Expr: &ast.Literal{Value: int64(1)}}, {Op: "/"}, {Expr: &ast.Literal{Value: int64(0)}},
	}}
	pf, err := Linearize(in)
	require.NoError(t, err)
	_, err = Eval(pf, sc, testEnv())
	require.Error(t, err)
}

func TestEvalThreeValuedAnd(t *testing.T) {
	require.Equal(t, false, evalBinaryHelper(t, "AND", false, nil))
	require.Nil(t, evalBinaryHelper(t, "AND", true, nil))
	require.Equal(t, true, evalBinaryHelper(t, "AND", true, true))
}

func evalBinaryHelper(t *testing.T, op string, l, r any) any {
	t.Helper()
	v, err := evalBinary(op, l, r)
	require.NoError(t, err)
	return v
}

func TestEvalInAndNotIn(t *testing.T) {
	require.Equal(t, true, evalBinaryHelper(t, "IN", int64(2), []any{int64(1), int64(2)}))
	require.Equal(t, false, evalBinaryHelper(t, "NOT IN", int64(2), []any{int64(1), int64(2)}))
}

func TestEvalStartsWithEndsWithContains(t *testing.T) {
	require.Equal(t, true, evalBinaryHelper(t, "STARTS WITH", "hello", "he"))
	require.Equal(t, true, evalBinaryHelper(t, "ENDS WITH", "hello", "lo"))
	require.Equal(t, true, evalBinaryHelper(t, "CONTAINS", "hello", "ell"))
	require.Equal(t, false, evalBinaryHelper(t, "NOT CONTAINS", "hello", "ell"))
}
