package builtin

import (
	"github.com/flowquery-dev/flowquery/ast"
	"github.com/flowquery-dev/flowquery/function"
	"github.com/flowquery-dev/flowquery/scope"
	"github.com/flowquery-dev/flowquery/value"
)

func init() {
	registerPredicateFuncs()
}

// boolPredicate implements all/any/none/single: iterate list, rebind
// loopVar, test filter, fold by the named combinator.
type boolPredicate struct {
	kind string // "all", "any", "none", "single"
}

func (p *boolPredicate) Eval(list []any, loopVar string, filter, body ast.Expr, sc *scope.Scope, eval function.Evaluator) (any, error) {
	matches := 0
	for _, item := range list {
		child := sc.Child()
		child.Set(loopVar, item)
		ok := true
		if filter != nil {
			v, err := eval(filter, child)
			if err != nil {
				return nil, err
			}
			ok = value.Truthy(v)
		}
		if ok {
			matches++
		}
		switch p.kind {
		case "all":
			if !ok {
				return false, nil
			}
		case "any":
			if ok {
				return true, nil
			}
		case "none":
			if ok {
				return false, nil
			}
		}
	}
	switch p.kind {
	case "all":
		return true, nil
	case "any":
		return false, nil
	case "none":
		return true, nil
	case "single":
		return matches == 1, nil
	default:
		return nil, nil
	}
}

// filterPredicate implements filter(x IN list WHERE pred): the filtered
// sublist, in order.
type filterPredicate struct{}

func (filterPredicate) Eval(list []any, loopVar string, filter, body ast.Expr, sc *scope.Scope, eval function.Evaluator) (any, error) {
	out := []any{}
	for _, item := range list {
		child := sc.Child()
		child.Set(loopVar, item)
		v, err := eval(filter, child)
		if err != nil {
			return nil, err
		}
		if value.Truthy(v) {
			out = append(out, item)
		}
	}
	return out, nil
}

// extractPredicate implements extract(x IN list | expr): map each element
// through body, in order.
type extractPredicate struct{}

func (extractPredicate) Eval(list []any, loopVar string, filter, body ast.Expr, sc *scope.Scope, eval function.Evaluator) (any, error) {
	out := make([]any, 0, len(list))
	for _, item := range list {
		child := sc.Child()
		child.Set(loopVar, item)
		v, err := eval(body, child)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func registerPredicateFuncs() {
	reg := func(name string, inst function.Instance) {
		function.Default.Register(function.Descriptor{
			Name:     name,
			Category: function.Predicate,
			Arity:    exact(1),
			Output:   "any",
			New:      func() function.Instance { return inst },
		})
	}
	reg("all", &boolPredicate{kind: "all"})
	reg("any", &boolPredicate{kind: "any"})
	reg("none", &boolPredicate{kind: "none"})
	reg("single", &boolPredicate{kind: "single"})
	reg("filter", filterPredicate{})
	reg("extract", extractPredicate{})
}
