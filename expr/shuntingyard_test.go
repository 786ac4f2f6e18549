package expr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowquery-dev/flowquery/ast"
)

func lit(v any) ast.Expr { return &ast.Literal{Value: v} }

func operand(v any) ast.InfixItem { return ast.InfixItem{Expr: lit(v)} }
func op(s string) ast.InfixItem   { return ast.InfixItem{Op: s} }

// opSeq walks a postfix sequence's operators, in order, for assertions that
// don't care about the interleaved operand literals.
func opSeq(p *ast.Postfix) []string {
	var out []string
	for _, it := range p.Items {
		if it.Op != "" {
			out = append(out, it.Op)
		}
	}
	return out
}

func TestLinearizeSimplePrecedence(t *testing.T) {
	// 1 + 2 * 3  =>  1 2 3 * +
	in := &ast.Infix{Items: []ast.InfixItem{
		operand(int64(1)), op("+"), operand(int64(2)), op("*"), operand(int64(3)),
	}}
	out, err := Linearize(in)
	require.NoError(t, err)
	require.Equal(t, []string{"*", "+"}, opSeq(out))
	require.Equal(t, int64(1), out.Items[0].Operand.(*ast.Literal).Value)
	require.Equal(t, int64(2), out.Items[1].Operand.(*ast.Literal).Value)
	require.Equal(t, int64(3), out.Items[2].Operand.(*ast.Literal).Value)
}

func TestLinearizeLeftAssociativeSamePrecedence(t *testing.T) {
	// 1 - 2 - 3  =>  1 2 - 3 -  (left-to-right)
	in := &ast.Infix{Items: []ast.InfixItem{
		operand(int64(1)), op("-"), operand(int64(2)), op("-"), operand(int64(3)),
	}}
	out, err := Linearize(in)
	require.NoError(t, err)
	require.Equal(t, []string{"-", "-"}, opSeq(out))
}

func TestLinearizeRightAssociativePower(t *testing.T) {
	// 2 ^ 3 ^ 2  =>  2 3 2 ^ ^  (right-to-left: 2^(3^2))
	in := &ast.Infix{Items: []ast.InfixItem{
		operand(int64(2)), op("^"), operand(int64(3)), op("^"), operand(int64(2)),
	}}
	out, err := Linearize(in)
	require.NoError(t, err)
	// an incoming right-assoc op pops a stacked op only when the stacked op's
	// prec is *strictly higher*; equal prec with rightAssoc never pops it,
	// so both operators survive to the final drain in stack order (^, ^).
	require.Equal(t, []string{"^", "^"}, opSeq(out))
}

func TestLinearizeComparisonBelowArithmetic(t *testing.T) {
	// 1 + 2 > 3  =>  1 2 + 3 >
	in := &ast.Infix{Items: []ast.InfixItem{
		operand(int64(1)), op("+"), operand(int64(2)), op(">"), operand(int64(3)),
	}}
	out, err := Linearize(in)
	require.NoError(t, err)
	require.Equal(t, []string{"+", ">"}, opSeq(out))
}

func TestLinearizeAndOrPrecedence(t *testing.T) {
	// a = 1 AND b = 2 OR c = 3  =>  comparisons bind tighter than AND/OR
	in := &ast.Infix{Items: []ast.InfixItem{
		operand("a"), op("="), operand(int64(1)),
		op("AND"),
		operand("b"), op("="), operand(int64(2)),
		op("OR"),
		operand("c"), op("="), operand(int64(3)),
	}}
	out, err := Linearize(in)
	require.NoError(t, err)
	require.Equal(t, []string{"=", "=", "AND", "=", "OR"}, opSeq(out))
}

func TestLinearizeRejectsConsecutiveOperands(t *testing.T) {
	in := &ast.Infix{Items: []ast.InfixItem{operand(int64(1)), operand(int64(2))}}
	_, err := Linearize(in)
	require.Error(t, err)
}

func TestLinearizeRejectsDanglingOperator(t *testing.T) {
	in := &ast.Infix{Items: []ast.InfixItem{operand(int64(1)), op("+")}}
	_, err := Linearize(in)
	require.Error(t, err)
}

func TestLinearizeRejectsLeadingOperator(t *testing.T) {
	in := &ast.Infix{Items: []ast.InfixItem{op("+"), operand(int64(1))}}
	_, err := Linearize(in)
	require.Error(t, err)
}

func TestLinearizeRejectsUnknownOperator(t *testing.T) {
	in := &ast.Infix{Items: []ast.InfixItem{operand(int64(1)), op("??"), operand(int64(2))}}
	_, err := Linearize(in)
	require.Error(t, err)
}

func TestIsOperatorRecognizesMultiWordForms(t *testing.T) {
	require.True(t, IsOperator("STARTS WITH"))
	require.True(t, IsOperator("NOT IN"))
	require.False(t, IsOperator("STARTS"))
}
