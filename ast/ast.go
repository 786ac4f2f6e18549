// Package ast defines the FlowQuery abstract syntax tree: the uniform node
// tree spec'd in spec.md §4.B (component "AST model"). Nodes are plain data
// — tagged sums with no attached evaluator method, per design note §9 ("model
// each AST node variant as a tagged sum with an evaluator method; operators
// dispatch on the variant tag rather than on virtual tables"). The evaluator
// itself lives in package expr, which type-switches over these variants; this
// keeps ast free of an import-cycle back to expr/function/pattern.
package ast

import "github.com/flowquery-dev/flowquery/token"

// Expr is any expression-tree node: operands, operators (pre-linearization),
// and the postfix Expression produced by shunting-yard.
type Expr interface {
	exprNode()
	Pos() token.Position
}

// Operation is one stage of the pipeline: WITH, UNWIND, LOAD, MATCH,
// OPTIONAL MATCH, WHERE, CALL, CREATE VIRTUAL, DELETE VIRTUAL, RETURN.
// Operations are chained via Prev/Next into the doubly linked pipeline
// spec'd in spec.md §3.
type Operation interface {
	exprNode() // operations are not expressions, but embedding the same
	// unexported marker keeps both sums closed to this package; Operation
	// additionally satisfies opNode below.
	opNode()
	Pos() token.Position
}

// Chain is a fully parsed query: a linear operation pipeline, or (when the
// source text contained top-level UNION/UNION ALL) a set of Branches.
type Chain struct {
	Ops []Operation
	// Branches holds one Chain per UNION arm when len(Branches) > 1; Ops is
	// empty in that case. UnionAll is true iff every separator was
	// "UNION ALL" rather than "UNION".
	Branches []*Chain
	UnionAll bool
}

// ---- literal & reference expressions ----

type Literal struct {
	Value any
	P     token.Position
}

func (*Literal) exprNode()          {}
func (l *Literal) Pos() token.Position { return l.P }

// ListLiteral is `[e1, e2, ...]`.
type ListLiteral struct {
	Items []Expr
	P     token.Position
}

func (*ListLiteral) exprNode()          {}
func (l *ListLiteral) Pos() token.Position { return l.P }

// MapLiteral is `{k1: e1, k2: e2, ...}`; reserved words are permitted as
// keys per spec.md §4.A.
type MapLiteral struct {
	Keys   []string
	Values []Expr
	P      token.Position
}

func (*MapLiteral) exprNode()          {}
func (m *MapLiteral) Pos() token.Position { return m.P }

// FString is an f-string literal: alternating literal Segments and embedded
// Exprs, always len(Segments) == len(Exprs)+1.
type FString struct {
	Segments []string
	Exprs    []Expr
	P        token.Position
}

func (*FString) exprNode()          {}
func (f *FString) Pos() token.Position { return f.P }

// Ident references a bound variable in the current row scope.
type Ident struct {
	Name string
	P    token.Position
}

func (*Ident) exprNode()          {}
func (i *Ident) Pos() token.Position { return i.P }

// Property is `<base>.<field>`, or `<base>.<a>.<b>` nested via chaining
// (Base is itself a Property for the outer access).
type Property struct {
	Base  Expr
	Field string
	P     token.Position
}

func (*Property) exprNode()          {}
func (p *Property) Pos() token.Position { return p.P }

// Index is `<base>[<index>]`, used for list/map subscripting.
type Index struct {
	Base  Expr
	Index Expr
	P     token.Position
}

func (*Index) exprNode()          {}
func (ix *Index) Pos() token.Position { return ix.P }

// Infix is an unevaluated operand/operator sequence consumed during
// shunting-yard linearization: it holds the raw parse-order sequence
// before it is rewritten into postfix.
type Infix struct {
	Items []InfixItem
	P     token.Position
}

func (*Infix) exprNode()          {}
func (n *Infix) Pos() token.Position { return n.P }

// InfixItem is one element of an unlinearized expression: either an operand
// (Expr set, Op empty) or an operator/keyword-operator (Op set, Expr nil).
type InfixItem struct {
	Expr Expr
	Op   string // "", or one of the operator/keyword-operator spellings
}

// Postfix is the linearized, shunting-yard output of an Infix: operands and
// operators in postfix (RPN) order. expr.Eval evaluates it with a value
// stack, per spec.md §4.D.
type Postfix struct {
	Items []PostfixItem
	P     token.Position
}

func (*Postfix) exprNode()          {}
func (n *Postfix) Pos() token.Position { return n.P }

// PostfixItem is one slot of a Postfix sequence.
type PostfixItem struct {
	Operand Expr   // set iff Op == ""
	Op      string // set iff Operand == nil
}

// FuncCall is `name(arg1, arg2, ...)`, including aggregate, predicate, and
// async-provider invocations; IsAggregate is set by the parser once the
// name is resolved against the registry, so AggregateNestingError can be
// checked without a second registry lookup.
type FuncCall struct {
	Name        string
	Args        []Expr
	IsAggregate bool
	// Predicate-function extras: `all(x IN list WHERE pred)` binds LoopVar
	// over LoopList and tests Filter; `extract(x IN list | expr)` binds
	// LoopVar over LoopList and maps through Body.
	LoopVar  string
	LoopList Expr
	Filter   Expr
	Body     Expr
	P        token.Position
}

func (*FuncCall) exprNode()          {}
func (f *FuncCall) Pos() token.Position { return f.P }

// CaseExpr is `CASE [test] WHEN w1 THEN t1 ... [ELSE e] END`.
type CaseExpr struct {
	Test    Expr // nil for the searched form
	Whens   []Expr
	Thens   []Expr
	Else    Expr
	P       token.Position
}

func (*CaseExpr) exprNode()          {}
func (c *CaseExpr) Pos() token.Position { return c.P }

// Unary is a prefix operator applied to a single operand: `-x`, `NOT x`.
type Unary struct {
	Op string
	X  Expr
	P  token.Position
}

func (*Unary) exprNode()          {}
func (u *Unary) Pos() token.Position { return u.P }

// PatternExpr wraps a Pattern used as a boolean predicate inside WHERE
// (spec.md §4.H, "graph pattern in WHERE"): true iff at least one traversal
// succeeds from the already-bound endpoints.
type PatternExpr struct {
	Pattern *Pattern
	P       token.Position
}

func (*PatternExpr) exprNode()          {}
func (p *PatternExpr) Pos() token.Position { return p.P }
