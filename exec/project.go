package exec

import (
	"fmt"

	"github.com/mitchellh/hashstructure"
	"github.com/opentracing/opentracing-go"

	"github.com/flowquery-dev/flowquery/ast"
	"github.com/flowquery-dev/flowquery/expr"
	"github.com/flowquery-dev/flowquery/fqerr"
	"github.com/flowquery-dev/flowquery/function"
	"github.com/flowquery-dev/flowquery/scope"
	"github.com/flowquery-dev/flowquery/value"
)

// Op is one stage of the pipeline, per spec.md §4.I: it runs once per row
// produced by the stage before it, and is notified once the upstream
// source is exhausted so aggregating stages can flush their groups.
type Op interface {
	setNext(Op)
	Run(sc *scope.Scope) error
	Finish() error
}

// baseOp is embedded by every Op for the Next-link plumbing.
type baseOp struct{ next Op }

func (b *baseOp) setNext(o Op) { b.next = o }

func (b *baseOp) forward(sc *scope.Scope) error {
	if b.next == nil {
		return nil
	}
	return b.next.Run(sc)
}

func (b *baseOp) finishNext() error {
	if b.next == nil {
		return nil
	}
	return b.next.Finish()
}

// tracingOp wraps another Op with an opentracing span per Run call,
// child-parented under the Executor's current query span, per SPEC_FULL.md
// §4's "optional span per operation run(), parented under the query span".
type tracingOp struct {
	inner  Op
	name   string
	tracer opentracing.Tracer
	parent opentracing.Span
}

// setNext wires inner's next to o itself (not o's inner), so every
// downstream Run — including ones reached via an upstream op's internal
// forward() loop, not just the pipeline's initial kickoff call — passes
// back through a tracingOp and gets its own span.
func (t *tracingOp) setNext(o Op) {
	t.inner.setNext(o)
}

func (t *tracingOp) Run(sc *scope.Scope) error {
	span := t.tracer.StartSpan(t.name, opentracing.ChildOf(t.parent.Context()))
	defer span.Finish()
	return t.inner.Run(sc)
}

func (t *tracingOp) Finish() error { return t.inner.Finish() }

// findAggregates collects every aggregate FuncCall reachable from e's
// subtree, stopping at the first aggregate on each branch: invariant 4
// (spec.md §8) guarantees aggregates never nest inside aggregates, so an
// aggregate FuncCall's own Args never need to be searched further.
func findAggregates(e ast.Expr, out *[]*ast.FuncCall) {
	switch n := e.(type) {
	case nil:
	case *ast.ListLiteral:
		for _, it := range n.Items {
			findAggregates(it, out)
		}
	case *ast.MapLiteral:
		for _, v := range n.Values {
			findAggregates(v, out)
		}
	case *ast.FString:
		for _, x := range n.Exprs {
			findAggregates(x, out)
		}
	case *ast.Property:
		findAggregates(n.Base, out)
	case *ast.Index:
		findAggregates(n.Base, out)
		findAggregates(n.Index, out)
	case *ast.Infix:
		for _, it := range n.Items {
			findAggregates(it.Expr, out)
		}
	case *ast.Postfix:
		for _, it := range n.Items {
			findAggregates(it.Operand, out)
		}
	case *ast.Unary:
		findAggregates(n.X, out)
	case *ast.CaseExpr:
		findAggregates(n.Test, out)
		for _, w := range n.Whens {
			findAggregates(w, out)
		}
		for _, t := range n.Thens {
			findAggregates(t, out)
		}
		findAggregates(n.Else, out)
	case *ast.FuncCall:
		if n.IsAggregate {
			*out = append(*out, n)
			return
		}
		for _, a := range n.Args {
			findAggregates(a, out)
		}
		findAggregates(n.LoopList, out)
		findAggregates(n.Filter, out)
		findAggregates(n.Body, out)
	}
}

func containsAggregate(e ast.Expr) bool {
	var found []*ast.FuncCall
	findAggregates(e, &found)
	return len(found) > 0
}

// aliasFor names a ProjectItem's output column: its explicit alias, the
// bare identifier it projects, "base.field" for a direct property access,
// or a positional fallback.
func aliasFor(it ast.ProjectItem, idx int) string {
	if it.Alias != "" {
		return it.Alias
	}
	if id, ok := it.Expr.(*ast.Ident); ok {
		return id.Name
	}
	if p, ok := it.Expr.(*ast.Property); ok {
		if base, ok := p.Base.(*ast.Ident); ok {
			return base.Name + "." + p.Field
		}
	}
	return fmt.Sprintf("col%d", idx+1)
}

func evalProjectItems(items []ast.ProjectItem, sc *scope.Scope, env *expr.Env) (map[string]any, error) {
	out := make(map[string]any, len(items))
	for i, it := range items {
		v, err := expr.Eval(it.Expr, sc, env)
		if err != nil {
			return nil, err
		}
		out[aliasFor(it, i)] = v
	}
	return out, nil
}

func valuesInOrder(items []ast.ProjectItem, row map[string]any) []any {
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = row[aliasFor(it, i)]
	}
	return out
}

func equalVals(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !value.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// distinctFilter folds out rows whose ordered value tuple has already been
// seen, used by WITH DISTINCT and RETURN DISTINCT.
type distinctFilter struct {
	bucket map[uint64][][]any
}

func newDistinctFilter() *distinctFilter {
	return &distinctFilter{bucket: map[uint64][][]any{}}
}

func (d *distinctFilter) seenBefore(vals []any) bool {
	h, _ := hashstructure.Hash(vals, nil)
	for _, v := range d.bucket[h] {
		if equalVals(v, vals) {
			return true
		}
	}
	d.bucket[h] = append(d.bucket[h], vals)
	return false
}

// group is one WITH/RETURN aggregation bucket: the key values that
// identify it, a sample scope (the first row's bindings, reused at
// finalize time so mixed key/aggregate expressions and ORDER BY/WHERE
// clauses referencing pre-aggregation variables still resolve), and the
// per-aggregate-call reducer state.
type group struct {
	keyVals     []any
	sampleScope *scope.Scope
	reducers    map[*ast.FuncCall]function.Reducer
}

// groupedProjector implements spec.md §4.I's WITH/RETURN aggregation rule:
// "non-aggregate expressions become group keys; aggregates fold into
// per-group reducers". trackedExprs extends aggregate-node discovery to
// WHERE/ORDER BY expressions that reference an aggregate not otherwise
// present in the projection items.
type groupedProjector struct {
	items    []ast.ProjectItem
	aggNodes []*ast.FuncCall
	isAgg    bool
	env      *expr.Env

	groups []*group
	bucket map[uint64][]int
}

func newGroupedProjector(items []ast.ProjectItem, trackedExprs []ast.Expr, env *expr.Env) *groupedProjector {
	var nodes []*ast.FuncCall
	for _, it := range items {
		findAggregates(it.Expr, &nodes)
	}
	for _, e := range trackedExprs {
		findAggregates(e, &nodes)
	}
	return &groupedProjector{items: items, aggNodes: nodes, isAgg: len(nodes) > 0, env: env, bucket: map[uint64][]int{}}
}

func (p *groupedProjector) keyValues(sc *scope.Scope) ([]any, error) {
	var out []any
	for _, it := range p.items {
		if containsAggregate(it.Expr) {
			continue
		}
		v, err := expr.Eval(it.Expr, sc, p.env)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (p *groupedProjector) findGroup(keyVals []any) *group {
	h, _ := hashstructure.Hash(keyVals, nil)
	for _, gi := range p.bucket[h] {
		if equalVals(p.groups[gi].keyVals, keyVals) {
			return p.groups[gi]
		}
	}
	g := &group{keyVals: keyVals, reducers: map[*ast.FuncCall]function.Reducer{}}
	p.groups = append(p.groups, g)
	p.bucket[h] = append(p.bucket[h], len(p.groups)-1)
	return g
}

// ingest folds sc's row into its group's reducers, per aggregate call.
func (p *groupedProjector) ingest(sc *scope.Scope) error {
	keyVals, err := p.keyValues(sc)
	if err != nil {
		return err
	}
	g := p.findGroup(keyVals)
	if g.sampleScope == nil {
		g.sampleScope = sc
	}
	for _, node := range p.aggNodes {
		args := make([]any, len(node.Args))
		for i, a := range node.Args {
			v, err := expr.Eval(a, sc, p.env)
			if err != nil {
				return err
			}
			args[i] = v
		}
		d, err := p.env.Functions.Lookup(node.Name)
		if err != nil {
			return err
		}
		inst, ok := d.New().(function.AggregateFunc)
		if !ok {
			return fqerr.ErrSemantic.New(node.Name + " is not an aggregate function")
		}
		r, ok := g.reducers[node]
		if !ok {
			r = inst.NewReducer()
		}
		g.reducers[node] = inst.Reduce(r, args)
	}
	return nil
}

// forEachFinal finalizes every group's reducers into env.AggregateResults,
// evaluates the projection items against that group's sample scope, and
// invokes fn with the resulting row and the scope fn's caller should use to
// resolve WHERE/ORDER BY (the same sample scope, so non-key upstream
// variables remain visible). An aggregating projector that received zero
// upstream rows still emits one row, per spec.md §7's empty-collection
// aggregate rules (sum/count -> 0, avg/min/max -> null, collect -> []).
func (p *groupedProjector) forEachFinal(fn func(row map[string]any, sc *scope.Scope) error) error {
	if len(p.groups) == 0 {
		p.groups = append(p.groups, &group{sampleScope: scope.New(), reducers: map[*ast.FuncCall]function.Reducer{}})
	}
	for _, g := range p.groups {
		prev := p.env.AggregateResults
		p.env.AggregateResults = map[*ast.FuncCall]any{}
		for _, node := range p.aggNodes {
			d, err := p.env.Functions.Lookup(node.Name)
			if err != nil {
				p.env.AggregateResults = prev
				return err
			}
			inst := d.New().(function.AggregateFunc)
			r, ok := g.reducers[node]
			if !ok {
				r = inst.NewReducer()
			}
			p.env.AggregateResults[node] = inst.Finalize(r)
		}
		row, err := evalProjectItems(p.items, g.sampleScope, p.env)
		if err != nil {
			p.env.AggregateResults = prev
			return err
		}
		err = fn(row, g.sampleScope)
		p.env.AggregateResults = prev
		if err != nil {
			return err
		}
	}
	return nil
}

// cloneRow deep-clones every value so downstream mutation of a bound
// map/list/node can never alias a pushed RETURN row, per spec.md §4.I(i).
func cloneRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = cloneValue(vv)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = cloneValue(vv)
		}
		return s
	case value.Path:
		s := make(value.Path, len(t))
		for i, vv := range t {
			s[i] = cloneValue(vv)
		}
		return s
	case *value.Node:
		if t == nil {
			return t
		}
		props, _ := cloneValue(t.Props).(map[string]any)
		return &value.Node{Label: t.Label, Props: props}
	case *value.Rel:
		if t == nil {
			return t
		}
		props, _ := cloneValue(t.Props).(map[string]any)
		return &value.Rel{Type: t.Type, StartNode: t.StartNode, EndNode: t.EndNode, LeftID: t.LeftID, RightID: t.RightID, Props: props}
	default:
		return v
	}
}

func computeOrderKey(orderBy []ast.OrderItem, sc *scope.Scope, env *expr.Env) (value.OrderKey, error) {
	var ok value.OrderKey
	for _, o := range orderBy {
		v, err := expr.Eval(o.Expr, sc, env)
		if err != nil {
			return ok, err
		}
		ok.Keys = append(ok.Keys, value.NewSortKey(v))
		ok.Desc = append(ok.Desc, o.Desc)
	}
	return ok, nil
}

func toIntValue(v any) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case int:
		return n, nil
	case float64:
		return int(n), nil
	default:
		return 0, fqerr.ErrTypeMismatch.New("LIMIT/SKIP must be numeric")
	}
}
