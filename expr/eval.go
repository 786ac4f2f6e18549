package expr

import (
	"fmt"
	"strings"

	"github.com/flowquery-dev/flowquery/ast"
	"github.com/flowquery-dev/flowquery/fqerr"
	"github.com/flowquery-dev/flowquery/function"
	"github.com/flowquery-dev/flowquery/scope"
	"github.com/flowquery-dev/flowquery/value"
)

// Env carries everything Eval needs beyond the row scope: the function
// registry and the callback into the pattern matcher for pattern
// expressions used as WHERE predicates (spec.md §4.H). Keeping these
// behind an interface/func field, rather than importing package
// function/pattern's consumers directly, is what lets package pattern and
// package function avoid importing expr back (design note §9's dynamic
// dispatch + explicit scope passing, applied to break the cycle).
type Env struct {
	Functions *function.Registry
	// MatchPattern reports whether at least one traversal of pat succeeds
	// from sc's already-bound endpoints.
	MatchPattern func(pat *ast.Pattern, sc *scope.Scope) (bool, error)
	// AggregateResults holds the Finalize()d value of each aggregate
	// FuncCall already folded by the current WITH/RETURN group, keyed by
	// AST node identity; Eval never invokes an AggregateFunc itself.
	AggregateResults map[*ast.FuncCall]any
}

// Eval is the central evaluator: a single type switch over ast's node
// variants, per design note §9, used uniformly by exec, pattern, and the
// function package's predicate instances (via the function.Evaluator it
// is wrapped as).
func Eval(e ast.Expr, sc *scope.Scope, env *Env) (any, error) {
	switch n := e.(type) {
	case *ast.Literal:
		return n.Value, nil

	case *ast.ListLiteral:
		out := make([]any, len(n.Items))
		for i, it := range n.Items {
			v, err := Eval(it, sc, env)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case *ast.MapLiteral:
		out := make(map[string]any, len(n.Keys))
		for i, k := range n.Keys {
			v, err := Eval(n.Values[i], sc, env)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil

	case *ast.FString:
		var b strings.Builder
		b.WriteString(n.Segments[0])
		for i, ex := range n.Exprs {
			v, err := Eval(ex, sc, env)
			if err != nil {
				return nil, err
			}
			fmt.Fprintf(&b, "%v", v)
			b.WriteString(n.Segments[i+1])
		}
		return b.String(), nil

	case *ast.Ident:
		v, ok := sc.Get(n.Name)
		if !ok {
			return nil, fqerr.ErrSemantic.New("unbound variable " + n.Name)
		}
		return v, nil

	case *ast.Property:
		base, err := Eval(n.Base, sc, env)
		if err != nil {
			return nil, err
		}
		return propertyAccess(base, n.Field)

	case *ast.Index:
		base, err := Eval(n.Base, sc, env)
		if err != nil {
			return nil, err
		}
		idx, err := Eval(n.Index, sc, env)
		if err != nil {
			return nil, err
		}
		return indexAccess(base, idx)

	case *ast.Unary:
		v, err := Eval(n.X, sc, env)
		if err != nil {
			return nil, err
		}
		return evalUnary(n.Op, v)

	case *ast.Postfix:
		return evalPostfix(n, sc, env)

	case *ast.CaseExpr:
		return evalCase(n, sc, env)

	case *ast.FuncCall:
		return evalFuncCall(n, sc, env)

	case *ast.PatternExpr:
		ok, err := env.MatchPattern(n.Pattern, sc)
		if err != nil {
			return nil, err
		}
		return ok, nil

	default:
		return nil, fqerr.ErrSemantic.New(fmt.Sprintf("cannot evaluate AST node %T", e))
	}
}

func propertyAccess(base any, field string) (any, error) {
	switch b := base.(type) {
	case nil:
		return nil, nil
	case *value.Node:
		return b.Get(field), nil
	case *value.Rel:
		return b.Get(field), nil
	case map[string]any:
		return b[field], nil
	default:
		return nil, fqerr.ErrTypeMismatch.New(fmt.Sprintf("cannot access property %q on %T", field, base))
	}
}

func indexAccess(base, idx any) (any, error) {
	if base == nil || idx == nil {
		return nil, nil
	}
	switch b := base.(type) {
	case []any:
		i, err := toInt(idx)
		if err != nil {
			return nil, err
		}
		if i < 0 {
			i += len(b)
		}
		if i < 0 || i >= len(b) {
			return nil, nil
		}
		return b[i], nil
	case map[string]any:
		k, ok := idx.(string)
		if !ok {
			return nil, fqerr.ErrTypeMismatch.New("map index must be a string")
		}
		return b[k], nil
	default:
		return nil, fqerr.ErrTypeMismatch.New(fmt.Sprintf("cannot index into %T", base))
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case int:
		return n, nil
	case float64:
		return int(n), nil
	default:
		return 0, fqerr.ErrTypeMismatch.New(fmt.Sprintf("expected a numeric index, got %T", v))
	}
}

func evalUnary(op string, v any) (any, error) {
	switch op {
	case "-":
		if v == nil {
			return nil, nil
		}
		switch n := v.(type) {
		case int64:
			return -n, nil
		case float64:
			return -n, nil
		default:
			return nil, fqerr.ErrTypeMismatch.New("unary - requires a number")
		}
	case "NOT":
		if v == nil {
			return nil, nil
		}
		return !value.Truthy(v), nil
	default:
		return nil, fqerr.ErrSyntax.New("unknown unary operator " + op)
	}
}

func evalCase(n *ast.CaseExpr, sc *scope.Scope, env *Env) (any, error) {
	var testVal any
	hasTest := n.Test != nil
	if hasTest {
		v, err := Eval(n.Test, sc, env)
		if err != nil {
			return nil, err
		}
		testVal = v
	}
	for i, when := range n.Whens {
		if hasTest {
			wv, err := Eval(when, sc, env)
			if err != nil {
				return nil, err
			}
			if value.Equal(testVal, wv) {
				return Eval(n.Thens[i], sc, env)
			}
		} else {
			wv, err := Eval(when, sc, env)
			if err != nil {
				return nil, err
			}
			if value.Truthy(wv) {
				return Eval(n.Thens[i], sc, env)
			}
		}
	}
	if n.Else != nil {
		return Eval(n.Else, sc, env)
	}
	return nil, nil
}

func evalFuncCall(fc *ast.FuncCall, sc *scope.Scope, env *Env) (any, error) {
	d, err := env.Functions.Lookup(fc.Name)
	if err != nil {
		return nil, err
	}

	switch d.Category {
	case function.Aggregate:
		if v, ok := env.AggregateResults[fc]; ok {
			return v, nil
		}
		return nil, fqerr.ErrSemantic.New("aggregate " + fc.Name + " evaluated outside a grouping context")

	case function.Predicate:
		listV, err := Eval(fc.LoopList, sc, env)
		if err != nil {
			return nil, err
		}
		list, ok := listV.([]any)
		if !ok {
			if listV == nil {
				list = nil
			} else {
				return nil, fqerr.ErrShape.New(fmt.Sprintf("%s requires an iterable, got %T", fc.Name, listV))
			}
		}
		inst := d.New().(function.PredicateFunc)
		evalFn := func(e ast.Expr, s *scope.Scope) (any, error) { return Eval(e, s, env) }
		return inst.Eval(list, fc.LoopVar, fc.Filter, fc.Body, sc, evalFn)

	case function.Async:
		return nil, fqerr.ErrSemantic.New(fc.Name + " is an async provider and may only appear in CALL")

	default: // Scalar
		args := make([]any, len(fc.Args))
		anyNull := false
		for i, a := range fc.Args {
			v, err := Eval(a, sc, env)
			if err != nil {
				return nil, err
			}
			args[i] = v
			if v == nil {
				anyNull = true
			}
		}
		if anyNull && d.NullPropagating {
			return nil, nil
		}
		inst := d.New().(function.ScalarFunc)
		return inst.Call(args)
	}
}
