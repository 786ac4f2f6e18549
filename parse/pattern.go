package parse

import (
	"strconv"

	"github.com/flowquery-dev/flowquery/ast"
	"github.com/flowquery-dev/flowquery/token"
)

// parsePatternChain parses spec.md §4.C's pattern grammar:
//
//	pattern    := (ident '=')? node (relArrow node)*
//	node       := '(' ident? (':' ident)? ('{' props '}')? ')'
//	relArrow   := '-' '[' relBody ']' ('->' | '-')   |   '<-' '[' relBody ']' '-'
//	relBody    := ident? (':' ident ('|' ident)*)? hops? ('{' props '}')?
//	hops       := '*' int? ('..' int?)?
//
// A leading `ident '='` binds the pattern to a named path (spec.md §9, named
// paths); it is tried speculatively and backed out if no '=' follows, since a
// bare pattern node may itself start with an identifier the parser must not
// confuse for a path-variable assignment.
func (p *parser) parsePatternChain() (*ast.Pattern, error) {
	start := p.cur().Pos
	var pathVar string
	if p.cur().Kind == token.Ident {
		save := p.pos
		name := p.advance().Text
		if p.isOperator("=") {
			p.advance()
			pathVar = name
		} else {
			p.pos = save
		}
	}

	first, err := p.parseNodeElem()
	if err != nil {
		return nil, err
	}
	pat := &ast.Pattern{Nodes: []*ast.NodePatternElem{first}, PathVar: pathVar, P: start}

	for p.isSymbol("<-") || p.isOperator("-") {
		rel, err := p.parseRelElem()
		if err != nil {
			return nil, err
		}
		node, err := p.parseNodeElem()
		if err != nil {
			return nil, err
		}
		pat.Rels = append(pat.Rels, rel)
		pat.Nodes = append(pat.Nodes, node)
	}
	if err := p.markNodeReferences(pat); err != nil {
		return nil, err
	}
	return pat, nil
}

func (p *parser) parseNodeElem() (*ast.NodePatternElem, error) {
	pos := p.cur().Pos
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	n := &ast.NodePatternElem{P: pos}
	if p.cur().Kind == token.Ident {
		n.Var = p.advance().Text
	}
	if p.acceptSymbol(":") {
		label, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		n.Label = label
	}
	if p.isSymbol("{") {
		m, err := p.parseMapLiteral()
		if err != nil {
			return nil, err
		}
		n.Props = m.(*ast.MapLiteral)
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return n, nil
}

// parseRelElem consumes one of the three arrow shapes and the bracketed
// relationship body between them.
func (p *parser) parseRelElem() (*ast.RelPatternElem, error) {
	pos := p.cur().Pos
	var dir ast.Direction
	switch {
	case p.acceptSymbol("<-"):
		dir = ast.Leftward
	case p.isOperator("-"):
		p.advance()
		dir = ast.Undirected // provisionally; revisited once the trailing arrow is seen
	default:
		return nil, p.errorf("expected a relationship arrow, got %s %q", p.cur().Kind, p.cur().Text)
	}

	if err := p.expectSymbol("["); err != nil {
		return nil, err
	}
	rel := &ast.RelPatternElem{Direction: dir, P: pos}
	if p.cur().Kind == token.Ident {
		rel.Var = p.advance().Text
	}
	if p.acceptSymbol(":") {
		typ, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		rel.Types = append(rel.Types, typ)
		for p.acceptSymbol("|") {
			typ, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			rel.Types = append(rel.Types, typ)
		}
	}
	if p.isOperator("*") {
		hops, err := p.parseHops()
		if err != nil {
			return nil, err
		}
		rel.Hops = hops
		rel.HasHops = true
	}
	if p.isSymbol("{") {
		m, err := p.parseMapLiteral()
		if err != nil {
			return nil, err
		}
		rel.Props = m.(*ast.MapLiteral)
	}
	if err := p.expectSymbol("]"); err != nil {
		return nil, err
	}

	if dir == ast.Leftward {
		if err := p.expectOperator("-"); err != nil {
			return nil, err
		}
		return rel, nil
	}
	switch {
	case p.acceptSymbol("->"):
		rel.Direction = ast.Rightward
	default:
		if err := p.expectOperator("-"); err != nil {
			return nil, err
		}
		rel.Direction = ast.Undirected
	}
	return rel, nil
}

func (p *parser) expectOperator(op string) error {
	if p.isOperator(op) {
		p.advance()
		return nil
	}
	return p.errorf("expected %q, got %s %q", op, p.cur().Kind, p.cur().Text)
}

// parseHops parses `*`, `*n..`, `*n..m`, `*..m` starting at the `*` token.
// An omitted lower bound defaults to 1 (spec.md §4.H zero-hop is an explicit
// `*0..` or `*0..m`); an omitted upper bound is unbounded.
func (p *parser) parseHops() (ast.Hops, error) {
	p.advance() // '*'
	h := ast.Hops{Min: 1}
	if p.cur().Kind == token.Int {
		n, err := strconv.Atoi(p.advance().Text)
		if err != nil {
			return h, p.errorf("invalid hop count")
		}
		h.Min = n
		h.Max = n
		h.HasMax = true
	}
	if p.acceptSymbol("..") {
		h.HasMax = false
		if p.cur().Kind == token.Int {
			n, err := strconv.Atoi(p.advance().Text)
			if err != nil {
				return h, p.errorf("invalid hop count")
			}
			h.Max = n
			h.HasMax = true
		}
	}
	return h, nil
}

// markNodeReferences flags nodes whose identifier was bound by an earlier
// MATCH segment as references rather than fresh store iterations (spec.md
// §4.C "Node reuse"), and records every node var introduced here as bound
// for subsequent segments.
func (p *parser) markNodeReferences(pat *ast.Pattern) error {
	for _, n := range pat.Nodes {
		if n.Var != "" && p.boundByType[n.Var] {
			n.IsReference = true
		}
	}
	for _, n := range pat.Nodes {
		if n.Var != "" {
			p.boundByType[n.Var] = true
		}
	}
	return nil
}

// parsePatternList parses the comma-separated pattern list following MATCH
// or OPTIONAL MATCH (spec.md §4.H "Multi-pattern MATCH").
func (p *parser) parsePatternList() ([]*ast.Pattern, error) {
	var pats []*ast.Pattern
	for {
		pat, err := p.parsePatternChain()
		if err != nil {
			return nil, err
		}
		pats = append(pats, pat)
		if !p.acceptSymbol(",") {
			break
		}
	}
	return pats, nil
}
