package parse

import (
	"github.com/flowquery-dev/flowquery/ast"
	"github.com/flowquery-dev/flowquery/fqerr"
)

// parseTopLevel splits the statement at top-level UNION / UNION ALL
// boundaries (spec.md §4.I) and parses each segment as an independent
// operation chain.
func (p *parser) parseTopLevel() (*ast.Chain, error) {
	first, err := p.parseOperations()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("UNION") {
		return first, nil
	}

	branches := []*ast.Chain{first}
	unionAll := false
	hasUnionAll := false
	hasPlainUnion := false
	for p.acceptKeyword("UNION") {
		all := p.acceptKeyword("ALL")
		if all {
			hasUnionAll = true
		} else {
			hasPlainUnion = true
		}
		if hasUnionAll && hasPlainUnion {
			return nil, p.errorf("UNION and UNION ALL may not be mixed in the same statement")
		}
		unionAll = all
		br, err := p.parseOperations()
		if err != nil {
			return nil, err
		}
		branches = append(branches, br)
	}
	return &ast.Chain{Branches: branches, UnionAll: unionAll}, nil
}

// parseOperations parses one UNION-branch's operation sequence and validates
// its shape: at most one RETURN, and (when present) a legal terminal
// operation.
func (p *parser) parseOperations() (*ast.Chain, error) {
	var ops []ast.Operation
	sawReturn := false
	for !p.atEOF() && !p.isKeyword("UNION") {
		op, err := p.parseOneOperation()
		if err != nil {
			return nil, err
		}
		if _, ok := op.(*ast.Return); ok {
			if sawReturn {
				return nil, p.errorf("a statement may contain at most one RETURN")
			}
			sawReturn = true
		}
		ops = append(ops, op)
	}
	if len(ops) == 0 {
		return nil, p.errorf("empty statement")
	}
	if err := checkTerminal(ops); err != nil {
		return nil, err
	}
	linkChain(ops)
	return &ast.Chain{Ops: ops}, nil
}

// checkTerminal enforces spec.md §4.I/§7: the last operation must be
// RETURN, CALL, CREATE VIRTUAL, or DELETE VIRTUAL, and a non-terminal CALL
// must carry YIELD.
func checkTerminal(ops []ast.Operation) error {
	for i, op := range ops {
		if c, ok := op.(*ast.Call); ok && len(c.Yield) == 0 && i != len(ops)-1 {
			return fqerr.ErrCallWithoutYield.New()
		}
	}
	switch ops[len(ops)-1].(type) {
	case *ast.Return, *ast.Call, *ast.CreateVirtualNode, *ast.CreateVirtualRel,
		*ast.DeleteVirtualNode, *ast.DeleteVirtualRel:
		return nil
	default:
		return fqerr.ErrShape.New("statement must end with RETURN, CALL, CREATE VIRTUAL, or DELETE VIRTUAL")
	}
}

// linkable is satisfied by opBase's promoted SetPrev/SetNext, letting
// linkChain wire the doubly linked pipeline (spec.md §3) without a type
// switch over every concrete Operation.
type linkable interface {
	SetPrev(ast.Operation)
	SetNext(ast.Operation)
}

func linkChain(ops []ast.Operation) {
	for i, op := range ops {
		l, ok := op.(linkable)
		if !ok {
			continue
		}
		if i > 0 {
			l.SetPrev(ops[i-1])
		}
		if i < len(ops)-1 {
			l.SetNext(ops[i+1])
		}
	}
}

func (p *parser) parseOneOperation() (ast.Operation, error) {
	switch {
	case p.isKeyword("WITH"):
		return p.parseWith()
	case p.isKeyword("UNWIND"):
		return p.parseUnwind()
	case p.isKeyword("LOAD"):
		return p.parseLoad()
	case p.isKeyword("OPTIONAL"):
		return p.parseMatch(true)
	case p.isKeyword("MATCH"):
		return p.parseMatch(false)
	case p.isKeyword("WHERE"):
		return p.parseWhereOp()
	case p.isKeyword("CALL"):
		return p.parseCall()
	case p.isKeyword("CREATE"):
		return p.parseCreateVirtual()
	case p.isKeyword("DELETE"):
		return p.parseDeleteVirtual()
	case p.isKeyword("RETURN"):
		return p.parseReturn()
	default:
		t := p.cur()
		return nil, p.errorf("unexpected %s %q, expected an operation keyword", t.Kind, t.Text)
	}
}

func (p *parser) parseProjectItems() ([]ast.ProjectItem, error) {
	var items []ast.ProjectItem
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		alias := ""
		if p.acceptKeyword("AS") {
			a, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			alias = a
		}
		items = append(items, ast.ProjectItem{Expr: e, Alias: alias})
		if !p.acceptSymbol(",") {
			break
		}
	}
	return items, nil
}

func (p *parser) parseWith() (ast.Operation, error) {
	pos := p.cur().Pos
	p.advance() // WITH
	distinct := p.acceptKeyword("DISTINCT")
	items, err := p.parseProjectItems()
	if err != nil {
		return nil, err
	}
	var where ast.Expr
	if p.acceptKeyword("WHERE") {
		where, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	w := &ast.With{Items: items, Distinct: distinct, Where: where}
	w.P = pos
	return w, nil
}

func (p *parser) parseUnwind() (ast.Operation, error) {
	pos := p.cur().Pos
	p.advance() // UNWIND
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("AS"); err != nil {
		return nil, err
	}
	as, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	u := &ast.Unwind{Expr: e, As: as}
	u.P = pos
	return u, nil
}

func (p *parser) parseLoad() (ast.Operation, error) {
	pos := p.cur().Pos
	p.advance() // LOAD
	if err := p.expectKeyword("JSON"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	url, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	l := &ast.Load{URL: url}
	l.P = pos
	if p.acceptKeyword("POST") {
		body, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		l.Post = body
	}
	if p.acceptKeyword("HEADERS") {
		h, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		l.Headers = h
	}
	if err := p.expectKeyword("AS"); err != nil {
		return nil, err
	}
	as, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	l.As = as
	return l, nil
}

func (p *parser) parseMatch(optional bool) (ast.Operation, error) {
	pos := p.cur().Pos
	if optional {
		p.advance() // OPTIONAL
	}
	if err := p.expectKeyword("MATCH"); err != nil {
		return nil, err
	}
	pats, err := p.parsePatternList()
	if err != nil {
		return nil, err
	}
	var where ast.Expr
	if p.acceptKeyword("WHERE") {
		where, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	m := &ast.Match{Patterns: pats, Optional: optional, Where: where}
	m.P = pos
	return m, nil
}

func (p *parser) parseWhereOp() (ast.Operation, error) {
	pos := p.cur().Pos
	p.advance() // WHERE
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	w := &ast.Where{Pred: e}
	w.P = pos
	return w, nil
}

func (p *parser) parseCall() (ast.Operation, error) {
	pos := p.cur().Pos
	p.advance() // CALL
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if !p.isSymbol("(") {
		return nil, p.errorf("expected \"(\" after CALL target %q", name)
	}
	fcExpr, err := p.parseFuncCall(name, pos)
	if err != nil {
		return nil, err
	}
	fc, ok := fcExpr.(*ast.FuncCall)
	if !ok {
		return nil, p.errorf("CALL target %q is not a callable function", name)
	}
	var yield []string
	if p.acceptKeyword("YIELD") {
		for {
			col, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			yield = append(yield, col)
			if !p.acceptSymbol(",") {
				break
			}
		}
	}
	c := &ast.Call{Func: fc, Yield: yield}
	c.P = pos
	return c, nil
}

func (p *parser) parseCreateVirtual() (ast.Operation, error) {
	pos := p.cur().Pos
	p.advance() // CREATE
	if err := p.expectKeyword("VIRTUAL"); err != nil {
		return nil, err
	}
	switch {
	case p.acceptKeyword("NODE"):
		if err := p.expectSymbol(":"); err != nil {
			return nil, err
		}
		label, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("AS"); err != nil {
			return nil, err
		}
		stmt, err := p.parseSubquery()
		if err != nil {
			return nil, err
		}
		n := &ast.CreateVirtualNode{Label: label, Statement: stmt}
		n.P = pos
		return n, nil
	case p.acceptKeyword("RELATIONSHIP"):
		if err := p.expectSymbol(":"); err != nil {
			return nil, err
		}
		typ, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("FROM"); err != nil {
			return nil, err
		}
		if err := p.expectSymbol(":"); err != nil {
			return nil, err
		}
		src, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectWord("TO"); err != nil {
			return nil, err
		}
		if err := p.expectSymbol(":"); err != nil {
			return nil, err
		}
		dst, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("AS"); err != nil {
			return nil, err
		}
		stmt, err := p.parseSubquery()
		if err != nil {
			return nil, err
		}
		r := &ast.CreateVirtualRel{Type: typ, SourceLabel: src, TargetLabel: dst, Statement: stmt}
		r.P = pos
		return r, nil
	default:
		return nil, p.errorf("expected NODE or RELATIONSHIP after CREATE VIRTUAL")
	}
}

func (p *parser) parseDeleteVirtual() (ast.Operation, error) {
	pos := p.cur().Pos
	p.advance() // DELETE
	if err := p.expectKeyword("VIRTUAL"); err != nil {
		return nil, err
	}
	switch {
	case p.acceptKeyword("NODE"):
		if err := p.expectSymbol(":"); err != nil {
			return nil, err
		}
		label, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		n := &ast.DeleteVirtualNode{Label: label}
		n.P = pos
		return n, nil
	case p.acceptKeyword("RELATIONSHIP"):
		if err := p.expectSymbol(":"); err != nil {
			return nil, err
		}
		typ, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		r := &ast.DeleteVirtualRel{Type: typ}
		r.P = pos
		return r, nil
	default:
		return nil, p.errorf("expected NODE or RELATIONSHIP after DELETE VIRTUAL")
	}
}

// parseSubquery parses the nested statement following CREATE VIRTUAL's AS,
// reusing the enclosing registry but starting with fresh node-reference
// tracking, since the sub-query's MATCH segments are independent of the
// outer statement's bound variables.
func (p *parser) parseSubquery() (*ast.Chain, error) {
	inner := &parser{toks: p.toks, pos: p.pos, reg: p.reg, boundByType: map[string]bool{}}
	chain, err := inner.parseTopLevel()
	if err != nil {
		return nil, err
	}
	p.pos = inner.pos
	return chain, nil
}

func (p *parser) parseReturn() (ast.Operation, error) {
	pos := p.cur().Pos
	p.advance() // RETURN
	distinct := p.acceptKeyword("DISTINCT")
	items, err := p.parseProjectItems()
	if err != nil {
		return nil, err
	}
	r := &ast.Return{Items: items, Distinct: distinct}
	r.P = pos

	if p.acceptKeyword("ORDER") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			desc := false
			if p.acceptKeyword("DESC") {
				desc = true
			} else {
				p.acceptKeyword("ASC")
			}
			r.OrderBy = append(r.OrderBy, ast.OrderItem{Expr: e, Desc: desc})
			if !p.acceptSymbol(",") {
				break
			}
		}
	}
	if p.acceptKeyword("LIMIT") {
		limit, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		r.Limit = limit
	}
	if p.acceptKeyword("SKIP") {
		skip, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		r.Skip = skip
	}
	if p.acceptKeyword("WHERE") {
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		r.Where = where
	}
	return r, nil
}
