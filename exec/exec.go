// Package exec implements the pipeline executor spec'd in spec.md §4.I:
// operations form a singly linked chain; each non-terminal operation
// performs its own work and invokes next.Run() per produced row, and the
// terminal operation (RETURN, or a terminal CALL without YIELD) accumulates
// the result sequence.
//
// Executor closes the dependency-inversion wiring set up by package catalog
// (the Runner func field) and package expr (the Env.MatchPattern func
// field): Executor.Run is handed to catalog.Catalog.SetRunner, and the
// pattern.Matcher it constructs is handed to expr.Env.MatchPattern. Neither
// of those lower packages imports exec; exec imports them, closing the
// dependency graph at the top instead of letting it cycle.
package exec

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/mitchellh/hashstructure"
	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"

	"github.com/flowquery-dev/flowquery/ast"
	"github.com/flowquery-dev/flowquery/catalog"
	"github.com/flowquery-dev/flowquery/expr"
	"github.com/flowquery-dev/flowquery/fqerr"
	"github.com/flowquery-dev/flowquery/function"
	"github.com/flowquery-dev/flowquery/pattern"
	"github.com/flowquery-dev/flowquery/scope"
	"github.com/flowquery-dev/flowquery/value"
)

// Executor drives a parsed ast.Chain to completion against a Catalog and a
// function Registry.
type Executor struct {
	Catalog   *catalog.Catalog
	Functions *function.Registry
	Matcher   *pattern.Matcher
	Env       *expr.Env
	Logger     logrus.FieldLogger
	Tracer     opentracing.Tracer
	HTTPClient *http.Client

	span opentracing.Span
}

// New wires a fresh Executor: it builds the expr.Env and pattern.Matcher,
// cross-wires their func-type callbacks, and registers itself as cat's
// Runner so virtual stores can materialize via sub-queries.
func New(cat *catalog.Catalog, reg *function.Registry, logger logrus.FieldLogger) *Executor {
	if logger == nil {
		logger = logrus.New()
	}
	env := &expr.Env{Functions: reg}
	m := pattern.New(cat, env)
	env.MatchPattern = m.MatchExpr
	ex := &Executor{Catalog: cat, Functions: reg, Matcher: m, Env: env, Logger: logger, Tracer: opentracing.GlobalTracer(), HTTPClient: http.DefaultClient}
	cat.SetRunner(ex.Run)
	return ex
}

// Run executes stmt and returns its result rows. It implements
// catalog.Runner. Each call opens a "flowquery.query" span (parented under
// whatever span, if any, a caller already started via opentracing context
// propagation outside this package), closed once the statement finishes;
// buildOp wraps every operation it constructs in a child span under it.
func (ex *Executor) Run(stmt *ast.Chain) ([]map[string]any, error) {
	span := ex.Tracer.StartSpan("flowquery.query")
	prevSpan := ex.span
	ex.span = span
	defer func() {
		ex.span = prevSpan
		span.Finish()
	}()

	if len(stmt.Branches) > 0 {
		return ex.runUnion(stmt)
	}
	return ex.runPipeline(stmt.Ops)
}

// runUnion runs each UNION branch independently and combines their rows,
// per spec.md §4.I: branches must share column names; UNION deduplicates by
// structural equality, UNION ALL concatenates.
func (ex *Executor) runUnion(stmt *ast.Chain) ([]map[string]any, error) {
	var branches [][]map[string]any
	var firstCols []string
	for _, br := range stmt.Branches {
		rows, err := ex.runPipeline(br.Ops)
		if err != nil {
			return nil, err
		}
		cols := columnsOf(rows)
		if firstCols == nil {
			firstCols = cols
		} else if !sameColumns(firstCols, cols) {
			return nil, fqerr.ErrUnionShape.New(firstCols, cols)
		}
		branches = append(branches, rows)
	}
	var all []map[string]any
	for _, b := range branches {
		all = append(all, b...)
	}
	if stmt.UnionAll {
		return all, nil
	}
	return dedupeRows(all), nil
}

// runPipeline builds an Op chain from ops, seeds it with a single empty-row
// kickoff, drains it to completion, and returns whatever its terminal
// operation accumulated.
func (ex *Executor) runPipeline(ops []ast.Operation) ([]map[string]any, error) {
	if len(ops) == 0 {
		return nil, nil
	}
	built := make([]Op, len(ops))
	for i, o := range ops {
		op, err := ex.buildOp(o)
		if err != nil {
			return nil, err
		}
		built[i] = op
	}
	for i := 0; i < len(built)-1; i++ {
		built[i].setNext(built[i+1])
	}

	if err := built[0].Run(scope.New()); err != nil {
		return nil, err
	}
	if err := built[0].Finish(); err != nil {
		return nil, err
	}

	last := built[len(built)-1]
	if t, ok := last.(*tracingOp); ok {
		last = t.inner
	}
	switch last := last.(type) {
	case *returnOp:
		return last.rows, nil
	case *callOp:
		rows := make([]map[string]any, len(last.raw))
		for i, v := range last.raw {
			if m, ok := v.(map[string]any); ok {
				rows[i] = m
			} else {
				rows[i] = map[string]any{"value": v}
			}
		}
		return rows, nil
	default:
		return nil, nil
	}
}

// buildOp lowers one ast.Operation into its exec.Op counterpart, wrapped in
// a tracing span child to the query's span.
func (ex *Executor) buildOp(o ast.Operation) (Op, error) {
	op, err := ex.buildUntracedOp(o)
	if err != nil {
		return nil, err
	}
	return &tracingOp{inner: op, name: fmt.Sprintf("flowquery.op.%T", o), tracer: ex.Tracer, parent: ex.span}, nil
}

func (ex *Executor) buildUntracedOp(o ast.Operation) (Op, error) {
	switch n := o.(type) {
	case *ast.With:
		gp := newGroupedProjector(n.Items, []ast.Expr{n.Where}, ex.Env)
		return &withOp{items: n.Items, distinct: n.Distinct, where: n.Where, env: ex.Env, gp: gp, distFilter: newDistinctFilter()}, nil
	case *ast.Unwind:
		return &unwindOp{expr: n.Expr, as: n.As, env: ex.Env}, nil
	case *ast.Load:
		return &loadOp{urlExpr: n.URL, postExpr: n.Post, headersExpr: n.Headers, as: n.As, env: ex.Env, client: ex.HTTPClient}, nil
	case *ast.Match:
		return &matchOp{patterns: n.Patterns, optional: n.Optional, where: n.Where, matcher: ex.Matcher, env: ex.Env}, nil
	case *ast.Where:
		return &whereOp{pred: n.Pred, env: ex.Env}, nil
	case *ast.Call:
		return &callOp{fc: n.Func, yield: n.Yield, env: ex.Env}, nil
	case *ast.CreateVirtualNode:
		return &createVirtualNodeOp{label: n.Label, stmt: n.Statement, cat: ex.Catalog}, nil
	case *ast.CreateVirtualRel:
		return &createVirtualRelOp{typ: n.Type, sourceLabel: n.SourceLabel, targetLabel: n.TargetLabel, stmt: n.Statement, cat: ex.Catalog}, nil
	case *ast.DeleteVirtualNode:
		return &deleteVirtualNodeOp{label: n.Label, cat: ex.Catalog}, nil
	case *ast.DeleteVirtualRel:
		return &deleteVirtualRelOp{typ: n.Type, cat: ex.Catalog}, nil
	case *ast.Return:
		extra := append([]ast.Expr{n.Where}, orderExprs(n.OrderBy)...)
		gp := newGroupedProjector(n.Items, extra, ex.Env)
		return &returnOp{items: n.Items, distinct: n.Distinct, orderBy: n.OrderBy, limit: n.Limit, skip: n.Skip, where: n.Where, env: ex.Env, gp: gp}, nil
	default:
		return nil, fqerr.ErrSemantic.New("unsupported operation in pipeline")
	}
}

func orderExprs(items []ast.OrderItem) []ast.Expr {
	out := make([]ast.Expr, len(items))
	for i, it := range items {
		out[i] = it.Expr
	}
	return out
}

func columnsOf(rows []map[string]any) []string {
	if len(rows) == 0 {
		return nil
	}
	cols := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// sameColumns treats an empty-result branch as imposing no shape
// constraint, since it carries no columns to compare.
func sameColumns(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func dedupeRows(rows []map[string]any) []map[string]any {
	buckets := map[uint64][]map[string]any{}
	var out []map[string]any
	for _, r := range rows {
		h, _ := hashstructure.Hash(r, nil)
		dup := false
		for _, b := range buckets[h] {
			if rowsEqual(r, b) {
				dup = true
				break
			}
		}
		if !dup {
			buckets[h] = append(buckets[h], r)
			out = append(out, r)
		}
	}
	return out
}

func rowsEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		bv, ok := b[k]
		if !ok || !value.Equal(v, bv) {
			return false
		}
	}
	return true
}
