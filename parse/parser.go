// Package parse implements the recursive-descent parser spec'd in spec.md
// §4.C: it consumes package token's Token stream and produces an ast.Chain
// — an operation pipeline, or a set of UNION-separated branches — enforcing
// the well-formedness, aggregate-nesting, and arity rules at construction
// time per spec.md §7 ("Lex/parse errors... raised during construction;
// fatal").
package parse

import (
	"fmt"
	"strings"

	"github.com/flowquery-dev/flowquery/ast"
	"github.com/flowquery-dev/flowquery/fqerr"
	"github.com/flowquery-dev/flowquery/function"
	"github.com/flowquery-dev/flowquery/token"
)

// Parse parses src against the default function registry.
func Parse(src string) (*ast.Chain, error) {
	return ParseWithRegistry(src, function.Default)
}

// ParseWithRegistry parses src, resolving function names and checking
// arity/category against reg instead of the package-wide default — used by
// callers that register query-local functions before parsing.
func ParseWithRegistry(src string, reg *function.Registry) (*ast.Chain, error) {
	p, err := newParser(src, reg)
	if err != nil {
		return nil, err
	}
	chain, err := p.parseTopLevel()
	if err != nil {
		return nil, err
	}
	if err := p.expectKind(token.EOF); err != nil {
		return nil, err
	}
	return chain, nil
}

// parser holds the fully pre-lexed token stream (simplifying arbitrary
// lookahead, at the cost of buffering the whole query — acceptable for
// FlowQuery's statement-sized inputs) plus the aggregate-nesting depth
// counter and the set of variables bound by MATCH segments parsed so far,
// consulted by pattern parsing for node-reference detection (spec.md §4.C
// "Node reuse").
type parser struct {
	toks []token.Token
	pos  int
	reg  *function.Registry

	aggDepth    int
	aggName     string
	boundByType map[string]bool
}

func newParser(src string, reg *function.Registry) (*parser, error) {
	lex := token.New(src)
	var toks []token.Token
	for {
		t, err := lex.Next()
		if err != nil {
			return nil, fqerr.ErrSyntax.Wrap(err, err.Error())
		}
		toks = append(toks, t)
		if t.Kind == token.EOF {
			break
		}
	}
	return &parser{toks: toks, reg: reg, boundByType: map[string]bool{}}, nil
}

func (p *parser) cur() token.Token { return p.toks[p.pos] }

func (p *parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) atEOF() bool { return p.cur().Kind == token.EOF }

func (p *parser) isKeyword(kw string) bool {
	t := p.cur()
	return t.Kind == token.Keyword && strings.EqualFold(t.Text, kw)
}

func (p *parser) isSymbol(sym string) bool {
	t := p.cur()
	return t.Kind == token.Symbol && t.Text == sym
}

func (p *parser) isOperator(op string) bool {
	t := p.cur()
	return t.Kind == token.Operator && t.Text == op
}

func (p *parser) acceptKeyword(kw string) bool {
	if p.isKeyword(kw) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) acceptSymbol(sym string) bool {
	if p.isSymbol(sym) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expectKeyword(kw string) error {
	if !p.acceptKeyword(kw) {
		return p.errorf("expected %q, got %s %q", kw, p.cur().Kind, p.cur().Text)
	}
	return nil
}

func (p *parser) expectSymbol(sym string) error {
	if !p.acceptSymbol(sym) {
		return p.errorf("expected %q, got %s %q", sym, p.cur().Kind, p.cur().Text)
	}
	return nil
}

func (p *parser) expectKind(k token.Kind) error {
	if p.cur().Kind != k {
		return p.errorf("expected %s, got %s %q", k, p.cur().Kind, p.cur().Text)
	}
	return nil
}

// expectWord accepts an identifier-lexed contextual keyword (case-
// insensitive), for words like "TO" that token.Keywords does not reserve.
func (p *parser) expectWord(word string) error {
	t := p.cur()
	if t.Kind == token.Ident && strings.EqualFold(t.Text, word) {
		p.advance()
		return nil
	}
	return p.errorf("expected %q, got %s %q", word, t.Kind, t.Text)
}

func (p *parser) expectIdent() (string, error) {
	if p.cur().Kind != token.Ident {
		return "", p.errorf("expected an identifier, got %s %q", p.cur().Kind, p.cur().Text)
	}
	return p.advance().Text, nil
}

func (p *parser) errorf(format string, args ...any) error {
	t := p.cur()
	msg := fmt.Sprintf(format, args...)
	return fqerr.ErrSyntax.New(msg + " at " + t.Pos.String())
}
