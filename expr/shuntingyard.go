package expr

import (
	"github.com/flowquery-dev/flowquery/ast"
	"github.com/flowquery-dev/flowquery/fqerr"
)

// Linearize rewrites an unlinearized Infix sequence (operand, operator,
// operand, operator, ... in source order) into postfix order via the
// shunting-yard algorithm, honoring operatorTable's precedence and
// associativity, per spec.md §4.D.
func Linearize(in *ast.Infix) (*ast.Postfix, error) {
	var output []ast.PostfixItem
	var opStack []string

	popOp := func() {
		op := opStack[len(opStack)-1]
		opStack = opStack[:len(opStack)-1]
		output = append(output, ast.PostfixItem{Op: op})
	}

	expectOperand := true
	for _, item := range in.Items {
		if item.Op == "" {
			if !expectOperand {
				return nil, fqerr.ErrSyntax.New("unexpected operand at " + in.P.String())
			}
			output = append(output, ast.PostfixItem{Operand: item.Expr})
			expectOperand = false
			continue
		}
		info, ok := operatorTable[item.Op]
		if !ok {
			return nil, fqerr.ErrSyntax.New("unknown operator " + item.Op)
		}
		if expectOperand {
			return nil, fqerr.ErrSyntax.New("unexpected operator " + item.Op + " at " + in.P.String())
		}
		for len(opStack) > 0 {
			top := opStack[len(opStack)-1]
			topInfo := operatorTable[top]
			if topInfo.prec > info.prec || (topInfo.prec == info.prec && !info.rightAssoc) {
				popOp()
				continue
			}
			break
		}
		opStack = append(opStack, item.Op)
		expectOperand = true
	}
	if expectOperand {
		return nil, fqerr.ErrSyntax.New("expression ends with a dangling operator at " + in.P.String())
	}
	for len(opStack) > 0 {
		popOp()
	}
	return &ast.Postfix{Items: output, P: in.P}, nil
}
