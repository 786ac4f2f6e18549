package parse

import (
	"strconv"
	"strings"

	"github.com/flowquery-dev/flowquery/ast"
	"github.com/flowquery-dev/flowquery/expr"
	"github.com/flowquery-dev/flowquery/fqerr"
	"github.com/flowquery-dev/flowquery/function"
	"github.com/flowquery-dev/flowquery/token"
)

// parseExpr parses one expression by recursive descent into a raw Infix
// sequence, then hands it to expr.Linearize for shunting-yard postfix
// linearization, per spec.md §4.C/§4.D. A single-operand sequence is
// returned unwrapped, since a one-item Postfix is pure overhead.
func (p *parser) parseExpr() (ast.Expr, error) {
	infix, err := p.parseInfix()
	if err != nil {
		return nil, err
	}
	if len(infix.Items) == 1 && infix.Items[0].Op == "" {
		return infix.Items[0].Expr, nil
	}
	return expr.Linearize(infix)
}

func (p *parser) parseInfix() (*ast.Infix, error) {
	start := p.cur().Pos
	var items []ast.InfixItem
	for {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		items = append(items, ast.InfixItem{Expr: operand})

		op, ok := p.tryConsumeBinaryOp()
		if !ok {
			break
		}
		items = append(items, ast.InfixItem{Op: op})
	}
	return &ast.Infix{Items: items, P: start}, nil
}

// tryConsumeBinaryOp maps a leading keyword to the operator spellings it can
// start, each tried longest-first so "NOT CONTAINS"/"NOT IN" etc. are
// recognized before falling back to a bare "NOT" unary prefix (handled by
// parseUnary, not here).
func (p *parser) tryConsumeBinaryOp() (string, bool) {
	t := p.cur()
	switch t.Kind {
	case token.Operator:
		switch t.Text {
		case "=", "<>", "<", "<=", ">", ">=", "+", "-", "*", "/", "%", "^":
			p.advance()
			return t.Text, true
		}
		return "", false
	case token.Keyword:
		switch strings.ToUpper(t.Text) {
		case "AND":
			p.advance()
			return "AND", true
		case "OR":
			p.advance()
			return "OR", true
		case "XOR":
			p.advance()
			return "XOR", true
		case "IN":
			p.advance()
			return "IN", true
		case "IS":
			p.advance()
			if p.acceptKeyword("NOT") {
				return "IS NOT", true
			}
			return "IS", true
		case "CONTAINS":
			p.advance()
			return "CONTAINS", true
		case "STARTS":
			p.advance()
			if err := p.expectKeyword("WITH"); err != nil {
				return "", false
			}
			return "STARTS WITH", true
		case "ENDS":
			p.advance()
			if err := p.expectKeyword("WITH"); err != nil {
				return "", false
			}
			return "ENDS WITH", true
		case "NOT":
			// Lookahead only: NOT IN / NOT CONTAINS / NOT STARTS WITH / NOT
			// ENDS WITH are binary; a bare NOT is a unary prefix and must not
			// be consumed here (parseUnary owns that case).
			save := p.pos
			p.advance()
			switch {
			case p.acceptKeyword("IN"):
				return "NOT IN", true
			case p.acceptKeyword("CONTAINS"):
				return "NOT CONTAINS", true
			case p.acceptKeyword("STARTS"):
				if err := p.expectKeyword("WITH"); err == nil {
					return "NOT STARTS WITH", true
				}
			case p.acceptKeyword("ENDS"):
				if err := p.expectKeyword("WITH"); err == nil {
					return "NOT ENDS WITH", true
				}
			}
			p.pos = save
			return "", false
		}
	}
	return "", false
}

func (p *parser) parseUnary() (ast.Expr, error) {
	pos := p.cur().Pos
	if p.isOperator("-") {
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: "-", X: x, P: pos}, nil
	}
	if p.isKeyword("NOT") {
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: "NOT", X: x, P: pos}, nil
	}
	return p.parsePostfixChain()
}

func (p *parser) parsePostfixChain() (ast.Expr, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isSymbol("."):
			pos := p.cur().Pos
			p.advance()
			field, err := p.expectFieldName()
			if err != nil {
				return nil, err
			}
			base = &ast.Property{Base: base, Field: field, P: pos}
		case p.isSymbol("["):
			pos := p.cur().Pos
			p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectSymbol("]"); err != nil {
				return nil, err
			}
			base = &ast.Index{Base: base, Index: idx, P: pos}
		default:
			return base, nil
		}
	}
}

// expectFieldName allows any identifier or reserved keyword as a property
// name, per spec.md §4.A ("Reserved words may appear as field names").
func (p *parser) expectFieldName() (string, error) {
	t := p.cur()
	if t.Kind == token.Ident || t.Kind == token.Keyword {
		p.advance()
		return t.Text, nil
	}
	return "", p.errorf("expected a field name, got %s %q", t.Kind, t.Text)
}

func (p *parser) parsePrimary() (ast.Expr, error) {
	t := p.cur()
	pos := t.Pos
	switch t.Kind {
	case token.Int:
		p.advance()
		n, err := strconv.ParseInt(t.Text, 10, 64)
		if err != nil {
			return nil, p.errorf("invalid integer literal %q", t.Text)
		}
		return &ast.Literal{Value: n, P: pos}, nil
	case token.Float:
		p.advance()
		f, err := strconv.ParseFloat(t.Text, 64)
		if err != nil {
			return nil, p.errorf("invalid float literal %q", t.Text)
		}
		return &ast.Literal{Value: f, P: pos}, nil
	case token.String:
		p.advance()
		return &ast.Literal{Value: t.Text, P: pos}, nil
	case token.FStringLiteral:
		return p.parseFString()
	case token.Ident:
		p.advance()
		if p.isSymbol("(") {
			return p.parseFuncCall(t.Text, pos)
		}
		return &ast.Ident{Name: t.Text, P: pos}, nil
	case token.Keyword:
		switch strings.ToUpper(t.Text) {
		case "NULL":
			p.advance()
			return &ast.Literal{Value: nil, P: pos}, nil
		case "TRUE":
			p.advance()
			return &ast.Literal{Value: true, P: pos}, nil
		case "FALSE":
			p.advance()
			return &ast.Literal{Value: false, P: pos}, nil
		case "CASE":
			return p.parseCaseExpr()
		case "ALL":
			// ALL is reserved for UNION ALL; followed by '(' it is the all()
			// predicate function.
			if next := p.toks[p.pos+1]; next.Kind == token.Symbol && next.Text == "(" {
				p.advance()
				return p.parseFuncCall(t.Text, pos)
			}
		}
		return nil, p.errorf("unexpected keyword %q in expression", t.Text)
	case token.Symbol:
		switch t.Text {
		case "[":
			return p.parseListLiteral()
		case "{":
			return p.parseMapLiteral()
		case "(":
			return p.parseParenOrPattern()
		}
	}
	return nil, p.errorf("unexpected token %s %q in expression", t.Kind, t.Text)
}

func (p *parser) parseFString() (ast.Expr, error) {
	pos := p.cur().Pos
	var segments []string
	var exprs []ast.Expr
	for {
		t := p.cur()
		if t.Kind != token.FStringLiteral {
			return nil, p.errorf("malformed f-string")
		}
		p.advance()
		segments = append(segments, t.Text)
		if t.Final {
			break
		}
		if err := p.expectKind(token.FStringExprStart); err != nil {
			return nil, err
		}
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
		if err := p.expectKind(token.FStringExprEnd); err != nil {
			return nil, err
		}
		p.advance()
	}
	return &ast.FString{Segments: segments, Exprs: exprs, P: pos}, nil
}

func (p *parser) parseListLiteral() (ast.Expr, error) {
	pos := p.cur().Pos
	p.advance() // '['
	var items []ast.Expr
	if !p.isSymbol("]") {
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			items = append(items, e)
			if !p.acceptSymbol(",") {
				break
			}
		}
	}
	if err := p.expectSymbol("]"); err != nil {
		return nil, err
	}
	return &ast.ListLiteral{Items: items, P: pos}, nil
}

func (p *parser) parseMapLiteral() (ast.Expr, error) {
	pos := p.cur().Pos
	p.advance() // '{'
	var keys []string
	var values []ast.Expr
	if !p.isSymbol("}") {
		for {
			key, err := p.expectFieldName()
			if err != nil {
				return nil, err
			}
			if err := p.expectSymbol(":"); err != nil {
				return nil, err
			}
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			keys = append(keys, key)
			values = append(values, v)
			if !p.acceptSymbol(",") {
				break
			}
		}
	}
	if err := p.expectSymbol("}"); err != nil {
		return nil, err
	}
	return &ast.MapLiteral{Keys: keys, Values: values, P: pos}, nil
}

// parseParenOrPattern disambiguates a grouped sub-expression "(expr)" from a
// graph pattern used as a WHERE predicate, "(a)-[:T]->(b)" (spec.md §4.H):
// it speculatively parses a pattern and keeps that result if the pattern
// grammar matches; any failure rewinds and falls back to a grouped
// expression, since the two forms share the same opening token.
func (p *parser) parseParenOrPattern() (ast.Expr, error) {
	save := p.pos
	if pat, err := p.tryParsePatternBody(); err == nil {
		return &ast.PatternExpr{Pattern: pat, P: pat.P}, nil
	}
	p.pos = save

	p.advance() // '('
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return e, nil
}

// tryParsePatternBody attempts the pattern grammar starting at the current
// '(' and returns an error (without a usable partial result) on any
// mismatch, so the caller can cleanly fall back to expression parsing.
func (p *parser) tryParsePatternBody() (pat *ast.Pattern, err error) {
	defer func() {
		if r := recover(); r != nil {
			pat, err = nil, fqerr.ErrSyntax.New("not a pattern")
		}
	}()
	return p.parsePatternChain()
}

func (p *parser) parseCaseExpr() (ast.Expr, error) {
	pos := p.cur().Pos
	p.advance() // CASE
	var test ast.Expr
	if !p.isKeyword("WHEN") {
		t, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		test = t
	}
	var whens, thens []ast.Expr
	for p.acceptKeyword("WHEN") {
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("THEN"); err != nil {
			return nil, err
		}
		th, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		whens = append(whens, w)
		thens = append(thens, th)
	}
	var elseExpr ast.Expr
	if p.acceptKeyword("ELSE") {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elseExpr = e
	}
	if err := p.expectKeyword("END"); err != nil {
		return nil, err
	}
	return &ast.CaseExpr{Test: test, Whens: whens, Thens: thens, Else: elseExpr, P: pos}, nil
}

// parseFuncCall parses name(...) after name has already been consumed and
// cur() is the opening '('. It resolves name's category against the
// registry, dispatches to the predicate-shaped grammar for
// all/any/none/single/filter/extract, checks declared arity for the
// remaining categories, and rejects an aggregate nested inside another
// aggregate per spec.md §4.C / invariant 4.
func (p *parser) parseFuncCall(name string, pos token.Position) (ast.Expr, error) {
	d, err := p.reg.Lookup(name)
	if err != nil {
		return nil, err
	}
	p.advance() // '('

	if d.Category == function.Predicate {
		return p.parsePredicateCall(name, pos)
	}

	if d.Category == function.Aggregate {
		if p.aggDepth > 0 {
			return nil, fqerr.ErrAggregateNesting.New(name, p.aggName)
		}
		p.aggDepth++
		prevAggName := p.aggName
		p.aggName = name
		defer func() { p.aggDepth--; p.aggName = prevAggName }()
	}

	var args []ast.Expr
	if name == "count" && p.isOperator("*") {
		p.advance()
	} else if !p.isSymbol(")") {
		for {
			a, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if !p.acceptSymbol(",") {
				break
			}
		}
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	if err := p.reg.CheckArity(name, len(args)); err != nil {
		return nil, err
	}
	return &ast.FuncCall{Name: name, Args: args, IsAggregate: d.Category == function.Aggregate, P: pos}, nil
}

// parsePredicateCall parses `loopVar IN list [WHERE filter | '|' body]`, the
// shared grammar of all/any/none/single/filter/extract (spec.md §4.C).
func (p *parser) parsePredicateCall(name string, pos token.Position) (ast.Expr, error) {
	loopVar, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("IN"); err != nil {
		return nil, err
	}
	list, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	var filter, body ast.Expr
	if p.acceptKeyword("WHERE") {
		filter, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	} else if p.acceptSymbol("|") {
		body, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return &ast.FuncCall{Name: name, LoopVar: loopVar, LoopList: list, Filter: filter, Body: body, P: pos}, nil
}
