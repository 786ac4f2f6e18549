package exec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/flowquery-dev/flowquery/ast"
	"github.com/flowquery-dev/flowquery/catalog"
	"github.com/flowquery-dev/flowquery/expr"
	"github.com/flowquery-dev/flowquery/fqerr"
	"github.com/flowquery-dev/flowquery/function"
	"github.com/flowquery-dev/flowquery/pattern"
	"github.com/flowquery-dev/flowquery/scope"
	"github.com/flowquery-dev/flowquery/value"
)

// withOp is `WITH [DISTINCT] expr [AS alias], ... [WHERE pred]`, per
// spec.md §4.I.
type withOp struct {
	baseOp
	items      []ast.ProjectItem
	distinct   bool
	where      ast.Expr
	env        *expr.Env
	gp         *groupedProjector
	distFilter *distinctFilter
}

func (o *withOp) Run(sc *scope.Scope) error {
	if o.gp.isAgg {
		return o.gp.ingest(sc)
	}
	return o.emit(sc)
}

func (o *withOp) emit(sc *scope.Scope) error {
	row, err := evalProjectItems(o.items, sc, o.env)
	if err != nil {
		return err
	}
	newSc := scope.FromSnapshot(row)
	if o.where != nil {
		v, err := expr.Eval(o.where, newSc, o.env)
		if err != nil {
			return err
		}
		if !value.Truthy(v) {
			return nil
		}
	}
	if o.distinct && o.distFilter.seenBefore(valuesInOrder(o.items, row)) {
		return nil
	}
	return o.forward(newSc)
}

func (o *withOp) Finish() error {
	if o.gp.isAgg {
		if err := o.gp.forEachFinal(func(row map[string]any, sc *scope.Scope) error {
			newSc := scope.FromSnapshot(row)
			if o.where != nil {
				v, err := expr.Eval(o.where, newSc, o.env)
				if err != nil {
					return err
				}
				if !value.Truthy(v) {
					return nil
				}
			}
			if o.distinct && o.distFilter.seenBefore(valuesInOrder(o.items, row)) {
				return nil
			}
			return o.forward(newSc)
		}); err != nil {
			return err
		}
	}
	return o.finishNext()
}

// unwindOp is `UNWIND expr AS v`, per spec.md §4.I.
type unwindOp struct {
	baseOp
	expr ast.Expr
	as   string
	env  *expr.Env
}

func (o *unwindOp) Run(sc *scope.Scope) error {
	v, err := expr.Eval(o.expr, sc, o.env)
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		return fqerr.ErrShape.New("UNWIND requires a list-valued expression")
	}
	for _, item := range list {
		child := sc.Child()
		child.Set(o.as, item)
		if err := o.forward(child); err != nil {
			return err
		}
	}
	return nil
}

func (o *unwindOp) Finish() error { return o.finishNext() }

// loadOp is `LOAD JSON FROM url [POST body] [HEADERS h] AS alias`, per
// spec.md §6. No example repo in the pack carries an HTTP client
// dependency for this kind of one-shot fetch, so this uses net/http and
// encoding/json directly rather than an ungrounded third-party pick.
type loadOp struct {
	baseOp
	urlExpr, postExpr, headersExpr ast.Expr
	as                             string
	env                            *expr.Env
	client                         *http.Client
}

func (o *loadOp) Run(sc *scope.Scope) error {
	urlV, err := expr.Eval(o.urlExpr, sc, o.env)
	if err != nil {
		return err
	}
	url, ok := urlV.(string)
	if !ok {
		return fqerr.ErrTypeMismatch.New("LOAD JSON FROM requires a string URL")
	}

	method := http.MethodGet
	var body io.Reader
	if o.postExpr != nil {
		method = http.MethodPost
		postV, err := expr.Eval(o.postExpr, sc, o.env)
		if err != nil {
			return err
		}
		b, err := json.Marshal(postV)
		if err != nil {
			return fqerr.ErrProviderIO.Wrap(err, url, err.Error())
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return fqerr.ErrProviderIO.Wrap(err, url, err.Error())
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if o.headersExpr != nil {
		hv, err := expr.Eval(o.headersExpr, sc, o.env)
		if err != nil {
			return err
		}
		if hm, ok := hv.(map[string]any); ok {
			for k, v := range hm {
				req.Header.Set(k, fmt.Sprintf("%v", v))
			}
		}
	}
	client := o.client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fqerr.ErrProviderIO.Wrap(err, url, err.Error())
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fqerr.ErrProviderIO.Wrap(err, url, err.Error())
	}
	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fqerr.ErrProviderIO.Wrap(err, url, err.Error())
	}
	if list, ok := parsed.([]any); ok {
		for _, item := range list {
			child := sc.Child()
			child.Set(o.as, item)
			if err := o.forward(child); err != nil {
				return err
			}
		}
		return nil
	}
	child := sc.Child()
	child.Set(o.as, parsed)
	return o.forward(child)
}

func (o *loadOp) Finish() error { return o.finishNext() }

// matchOp is `[OPTIONAL] MATCH pattern(, pattern...) [WHERE pred]`. Multiple
// patterns cross-join by nesting each subsequent pattern's traversal inside
// the previous pattern's callback, per spec.md §4.H.
type matchOp struct {
	baseOp
	patterns []*ast.Pattern
	optional bool
	where    ast.Expr
	matcher  *pattern.Matcher
	env      *expr.Env
}

func (o *matchOp) Run(sc *scope.Scope) error {
	return o.runFrom(0, sc)
}

func (o *matchOp) runFrom(idx int, sc *scope.Scope) error {
	if idx == len(o.patterns) {
		if o.where != nil {
			v, err := expr.Eval(o.where, sc, o.env)
			if err != nil {
				return err
			}
			if !value.Truthy(v) {
				return nil
			}
		}
		return o.forward(sc)
	}
	pat := o.patterns[idx]
	return o.matcher.MatchPattern(pat, sc, o.optional, func(s *scope.Scope) error {
		return o.runFrom(idx+1, s)
	})
}

func (o *matchOp) Finish() error { return o.finishNext() }

// whereOp is a standalone `WHERE pred` pipeline stage.
type whereOp struct {
	baseOp
	pred ast.Expr
	env  *expr.Env
}

func (o *whereOp) Run(sc *scope.Scope) error {
	v, err := expr.Eval(o.pred, sc, o.env)
	if err != nil {
		return err
	}
	if !value.Truthy(v) {
		return nil
	}
	return o.forward(sc)
}

func (o *whereOp) Finish() error { return o.finishNext() }

// callOp is `CALL name(args) [YIELD cols]`, per spec.md §4.I. When yield is
// nil, the raw yielded values accumulate in raw instead of forwarding to
// next — legal only when Call is the pipeline's terminal operation.
type callOp struct {
	baseOp
	fc    *ast.FuncCall
	yield []string
	env   *expr.Env

	raw []any
}

func (o *callOp) Run(sc *scope.Scope) error {
	d, err := o.env.Functions.Lookup(o.fc.Name)
	if err != nil {
		return err
	}
	if d.Category != function.Async {
		return fqerr.ErrSemantic.New(o.fc.Name + " is not an async provider")
	}
	args := make([]any, len(o.fc.Args))
	for i, a := range o.fc.Args {
		v, err := expr.Eval(a, sc, o.env)
		if err != nil {
			return err
		}
		args[i] = v
	}
	inst, ok := d.New().(function.AsyncProvider)
	if !ok {
		return fqerr.ErrSemantic.New(o.fc.Name + " does not implement AsyncProvider")
	}
	iter, err := inst.Call(args)
	if err != nil {
		return err
	}
	defer iter.Close()
	for {
		row, ok, err := iter.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if o.yield != nil {
			if !row.IsMap {
				return fqerr.ErrShape.New("CALL ... YIELD requires a map-yielding provider")
			}
			child := sc.Child()
			for _, name := range o.yield {
				child.Set(name, row.Map[name])
			}
			if err := o.forward(child); err != nil {
				return err
			}
			continue
		}
		if row.IsMap {
			o.raw = append(o.raw, row.Map)
		} else {
			o.raw = append(o.raw, row.Value)
		}
	}
}

func (o *callOp) Finish() error { return o.finishNext() }

// createVirtualNodeOp is `CREATE VIRTUAL NODE :Label AS stmt`.
type createVirtualNodeOp struct {
	baseOp
	label string
	stmt  *ast.Chain
	cat   *catalog.Catalog
}

func (o *createVirtualNodeOp) Run(sc *scope.Scope) error {
	return o.cat.RegisterNode(o.label, o.stmt)
}
func (o *createVirtualNodeOp) Finish() error { return o.finishNext() }

// createVirtualRelOp is `CREATE VIRTUAL RELATIONSHIP :Type FROM :L1 TO :L2 AS stmt`.
type createVirtualRelOp struct {
	baseOp
	typ, sourceLabel, targetLabel string
	stmt                          *ast.Chain
	cat                           *catalog.Catalog
}

func (o *createVirtualRelOp) Run(sc *scope.Scope) error {
	return o.cat.RegisterRel(o.typ, o.sourceLabel, o.targetLabel, o.stmt)
}
func (o *createVirtualRelOp) Finish() error { return o.finishNext() }

// deleteVirtualNodeOp is `DELETE VIRTUAL NODE :Label`.
type deleteVirtualNodeOp struct {
	baseOp
	label string
	cat   *catalog.Catalog
}

func (o *deleteVirtualNodeOp) Run(sc *scope.Scope) error { return o.cat.DeleteNode(o.label) }
func (o *deleteVirtualNodeOp) Finish() error             { return o.finishNext() }

// deleteVirtualRelOp is `DELETE VIRTUAL RELATIONSHIP :Type`.
type deleteVirtualRelOp struct {
	baseOp
	typ string
	cat *catalog.Catalog
}

func (o *deleteVirtualRelOp) Run(sc *scope.Scope) error { return o.cat.DeleteRel(o.typ) }
func (o *deleteVirtualRelOp) Finish() error             { return o.finishNext() }

// returnOp is the terminal `RETURN [DISTINCT] ... [ORDER BY ...] [LIMIT n]
// [SKIP n] [WHERE pred]`, per spec.md §4.I.
type returnOp struct {
	baseOp
	items    []ast.ProjectItem
	distinct bool
	orderBy  []ast.OrderItem
	limit    ast.Expr
	skip     ast.Expr
	where    ast.Expr
	env      *expr.Env
	gp       *groupedProjector

	rows []map[string]any
	keys []value.OrderKey
}

func (o *returnOp) Run(sc *scope.Scope) error {
	if o.gp.isAgg {
		return o.gp.ingest(sc)
	}
	return o.emit(sc, sc)
}

// emit applies post-projection WHERE/ORDER BY, keyed against evalSc (the
// row's bindings with projected aliases also visible), and pushes row.
func (o *returnOp) emit(sc, evalScBase *scope.Scope) error {
	row, err := evalProjectItems(o.items, sc, o.env)
	if err != nil {
		return err
	}
	evalSc := evalScBase.Child()
	for k, v := range row {
		evalSc.Set(k, v)
	}
	if o.where != nil {
		v, err := expr.Eval(o.where, evalSc, o.env)
		if err != nil {
			return err
		}
		if !value.Truthy(v) {
			return nil
		}
	}
	key, err := computeOrderKey(o.orderBy, evalSc, o.env)
	if err != nil {
		return err
	}
	o.rows = append(o.rows, cloneRow(row))
	o.keys = append(o.keys, key)
	return nil
}

func (o *returnOp) Finish() error {
	if o.gp.isAgg {
		if err := o.gp.forEachFinal(func(row map[string]any, sc *scope.Scope) error {
			evalSc := sc.Child()
			for k, v := range row {
				evalSc.Set(k, v)
			}
			if o.where != nil {
				v, err := expr.Eval(o.where, evalSc, o.env)
				if err != nil {
					return err
				}
				if !value.Truthy(v) {
					return nil
				}
			}
			key, err := computeOrderKey(o.orderBy, evalSc, o.env)
			if err != nil {
				return err
			}
			o.rows = append(o.rows, cloneRow(row))
			o.keys = append(o.keys, key)
			return nil
		}); err != nil {
			return err
		}
	}

	if len(o.orderBy) > 0 {
		idx := value.StableSortIndices(len(o.rows), func(i, j int) bool { return o.keys[i].Less(o.keys[j]) })
		sorted := make([]map[string]any, len(idx))
		for i, p := range idx {
			sorted[i] = o.rows[p]
		}
		o.rows = sorted
	}

	start := 0
	if o.skip != nil {
		v, err := expr.Eval(o.skip, scope.New(), o.env)
		if err != nil {
			return err
		}
		n, err := toIntValue(v)
		if err != nil {
			return err
		}
		if n > 0 {
			start = n
		}
	}
	if start > len(o.rows) {
		start = len(o.rows)
	}
	o.rows = o.rows[start:]

	if o.limit != nil {
		v, err := expr.Eval(o.limit, scope.New(), o.env)
		if err != nil {
			return err
		}
		n, err := toIntValue(v)
		if err != nil {
			return err
		}
		if n >= 0 && n < len(o.rows) {
			o.rows = o.rows[:n]
		}
	}

	if o.distinct {
		df := newDistinctFilter()
		kept := o.rows[:0:0]
		for _, r := range o.rows {
			if !df.seenBefore(valuesInOrder(o.items, r)) {
				kept = append(kept, r)
			}
		}
		o.rows = kept
	}

	return o.finishNext()
}
