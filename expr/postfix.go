package expr

import (
	"fmt"
	"strings"

	"github.com/flowquery-dev/flowquery/ast"
	"github.com/flowquery-dev/flowquery/fqerr"
	"github.com/flowquery-dev/flowquery/scope"
	"github.com/flowquery-dev/flowquery/value"
)

// evalPostfix walks a linearized postfix Expr sequence with a value stack,
// per spec.md §4.D.
func evalPostfix(p *ast.Postfix, sc *scope.Scope, env *Env) (any, error) {
	var stack []any
	for _, item := range p.Items {
		if item.Op == "" {
			v, err := Eval(item.Operand, sc, env)
			if err != nil {
				return nil, err
			}
			stack = append(stack, v)
			continue
		}
		if len(stack) < 2 {
			return nil, fqerr.ErrSyntax.New("malformed expression: operator " + item.Op + " missing operands")
		}
		r := stack[len(stack)-1]
		l := stack[len(stack)-2]
		stack = stack[:len(stack)-2]
		v, err := evalBinary(item.Op, l, r)
		if err != nil {
			return nil, err
		}
		stack = append(stack, v)
	}
	if len(stack) != 1 {
		return nil, fqerr.ErrSyntax.New("malformed expression: leftover operands")
	}
	return stack[0], nil
}

func evalBinary(op string, l, r any) (any, error) {
	switch op {
	case "+":
		return evalPlus(l, r)
	case "-", "*", "/", "%", "^":
		return evalArith(op, l, r)
	case "=":
		if l == nil || r == nil {
			return nil, nil
		}
		return value.Equal(l, r), nil
	case "<>":
		if l == nil || r == nil {
			return nil, nil
		}
		return !value.Equal(l, r), nil
	case "<", "<=", ">", ">=":
		return evalCompare(op, l, r)
	case "CONTAINS", "NOT CONTAINS":
		return evalStringOp(op, l, r, strings.Contains)
	case "STARTS WITH", "NOT STARTS WITH":
		return evalStringOp(op, l, r, strings.HasPrefix)
	case "ENDS WITH", "NOT ENDS WITH":
		return evalStringOp(op, l, r, strings.HasSuffix)
	case "IS":
		return l == nil, nil
	case "IS NOT":
		return l != nil, nil
	case "IN", "NOT IN":
		return evalIn(op, l, r)
	case "AND":
		return evalAnd(l, r), nil
	case "OR":
		return evalOr(l, r), nil
	case "XOR":
		return evalXor(l, r), nil
	default:
		return nil, fqerr.ErrSyntax.New("unknown operator " + op)
	}
}

func evalPlus(l, r any) (any, error) {
	if l == nil || r == nil {
		return nil, nil
	}
	if ls, ok := l.(string); ok {
		if rs, ok := r.(string); ok {
			return ls + rs, nil
		}
		return ls + fmt.Sprintf("%v", r), nil
	}
	if rs, ok := r.(string); ok {
		return fmt.Sprintf("%v", l) + rs, nil
	}
	if ll, ok := l.([]any); ok {
		if rl, ok := r.([]any); ok {
			out := make([]any, 0, len(ll)+len(rl))
			out = append(out, ll...)
			out = append(out, rl...)
			return out, nil
		}
		return append(append([]any{}, ll...), r), nil
	}
	return numericArith("+", l, r)
}

func evalArith(op string, l, r any) (any, error) {
	if l == nil || r == nil {
		return nil, nil
	}
	return numericArith(op, l, r)
}

func numericArith(op string, l, r any) (any, error) {
	lf, lIsInt, err := asNumber(l)
	if err != nil {
		return nil, err
	}
	rf, rIsInt, err := asNumber(r)
	if err != nil {
		return nil, err
	}
	switch op {
	case "/":
		if rf == 0 {
			return nil, fqerr.ErrTypeMismatch.New("division by zero")
		}
		res := lf / rf
		if lIsInt && rIsInt && lf == float64(int64(lf)) && rf == float64(int64(rf)) && int64(lf)%int64(rf) == 0 {
			return int64(lf) / int64(rf), nil
		}
		return res, nil
	case "%":
		if rf == 0 {
			return nil, fqerr.ErrTypeMismatch.New("modulo by zero")
		}
		if lIsInt && rIsInt {
			return int64(lf) % int64(rf), nil
		}
		return mathMod(lf, rf), nil
	case "^":
		return mathPow(lf, rf), nil
	}
	var res float64
	switch op {
	case "+":
		res = lf + rf
	case "-":
		res = lf - rf
	case "*":
		res = lf * rf
	}
	if lIsInt && rIsInt {
		return int64(res), nil
	}
	return res, nil
}

func mathMod(a, b float64) float64 {
	for a >= b {
		a -= b
	}
	return a
}

func mathPow(a, b float64) float64 {
	if b == 0 {
		return 1
	}
	res := 1.0
	neg := b < 0
	n := b
	if neg {
		n = -n
	}
	for i := 0; i < int(n); i++ {
		res *= a
	}
	if neg {
		return 1 / res
	}
	return res
}

func asNumber(v any) (f float64, isInt bool, err error) {
	switch n := v.(type) {
	case int64:
		return float64(n), true, nil
	case int:
		return float64(n), true, nil
	case float64:
		return n, false, nil
	default:
		return 0, false, fqerr.ErrTypeMismatch.New(fmt.Sprintf("expected a number, got %T", v))
	}
}

func evalCompare(op string, l, r any) (any, error) {
	if l == nil || r == nil {
		return nil, nil
	}
	lk, rk := value.NewSortKey(l), value.NewSortKey(r)
	switch op {
	case "<":
		return lk.Less(rk), nil
	case "<=":
		return lk.Less(rk) || !rk.Less(lk), nil
	case ">":
		return rk.Less(lk), nil
	case ">=":
		return rk.Less(lk) || !lk.Less(rk), nil
	}
	return nil, fqerr.ErrSyntax.New("unknown comparison operator " + op)
}

func evalStringOp(op string, l, r any, fn func(string, string) bool) (any, error) {
	if l == nil || r == nil {
		return nil, nil
	}
	ls, ok1 := l.(string)
	rs, ok2 := r.(string)
	if !ok1 || !ok2 {
		return nil, fqerr.ErrTypeMismatch.New(op + " requires string operands")
	}
	res := fn(ls, rs)
	if strings.HasPrefix(op, "NOT ") {
		res = !res
	}
	return res, nil
}

func evalIn(op string, l, r any) (any, error) {
	if l == nil || r == nil {
		return nil, nil
	}
	list, ok := r.([]any)
	if !ok {
		return nil, fqerr.ErrTypeMismatch.New("IN requires a list on the right-hand side")
	}
	found := false
	for _, item := range list {
		if value.Equal(l, item) {
			found = true
			break
		}
	}
	if op == "NOT IN" {
		return !found, nil
	}
	return found, nil
}

// evalAnd implements Cypher-style three-valued logic: a false operand
// forces false even if the other is null; otherwise a null operand makes
// the result null.
func evalAnd(l, r any) any {
	lb, lIsBool := l.(bool)
	rb, rIsBool := r.(bool)
	if lIsBool && !lb {
		return false
	}
	if rIsBool && !rb {
		return false
	}
	if l == nil || r == nil {
		return nil
	}
	return value.Truthy(l) && value.Truthy(r)
}

func evalOr(l, r any) any {
	lb, lIsBool := l.(bool)
	rb, rIsBool := r.(bool)
	if lIsBool && lb {
		return true
	}
	if rIsBool && rb {
		return true
	}
	if l == nil || r == nil {
		return nil
	}
	return value.Truthy(l) || value.Truthy(r)
}

func evalXor(l, r any) any {
	if l == nil || r == nil {
		return nil
	}
	return value.Truthy(l) != value.Truthy(r)
}
