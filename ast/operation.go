package ast

import "github.com/flowquery-dev/flowquery/token"

// opBase is embedded by every Operation to provide the chain links and the
// exprNode/opNode/Pos methods uniformly (spec.md §3: "operation subtypes
// carry previous/next siblings forming a doubly linked pipeline").
type opBase struct {
	Prev, Next Operation
	P          token.Position
}

func (*opBase) exprNode() {}
func (*opBase) opNode()   {}
func (b *opBase) Pos() token.Position { return b.P }

func (b *opBase) SetPrev(o Operation) { b.Prev = o }
func (b *opBase) SetNext(o Operation) { b.Next = o }

// ProjectItem is one `expr [AS alias]` slot of WITH/RETURN.
type ProjectItem struct {
	Expr  Expr
	Alias string
}

// With is `WITH [DISTINCT] expr [AS alias], ... [WHERE pred]`.
type With struct {
	opBase
	Items    []ProjectItem
	Distinct bool
	// Where is the optional inline WHERE clause attached to this WITH.
	Where Expr
}

// Unwind is `UNWIND expr AS v`.
type Unwind struct {
	opBase
	Expr Expr
	As   string
}

// Load is `LOAD JSON FROM url [POST body] [HEADERS h] AS alias`.
type Load struct {
	opBase
	URL     Expr
	Post    Expr // nil for GET
	Headers Expr // nil if absent
	As      string
}

// Match is `[OPTIONAL] MATCH pattern(, pattern...) [WHERE pred]`.
type Match struct {
	opBase
	Patterns []*Pattern
	Optional bool
	Where    Expr
}

// Where is a standalone `WHERE pred` operation between pipeline stages.
type Where struct {
	opBase
	Pred Expr
}

// Call is `CALL name(args) [YIELD col1, col2, ...]`.
type Call struct {
	opBase
	Func  *FuncCall
	Yield []string // nil if YIELD omitted (only legal when Call is terminal)
}

// CreateVirtualNode is `CREATE VIRTUAL NODE :Label AS stmt`.
type CreateVirtualNode struct {
	opBase
	Label     string
	Statement *Chain
}

// CreateVirtualRel is `CREATE VIRTUAL RELATIONSHIP :Type FROM :L1 TO :L2 AS stmt`.
type CreateVirtualRel struct {
	opBase
	Type        string
	SourceLabel string
	TargetLabel string
	Statement   *Chain
}

// DeleteVirtualNode is `DELETE VIRTUAL NODE :Label`.
type DeleteVirtualNode struct {
	opBase
	Label string
}

// DeleteVirtualRel is `DELETE VIRTUAL RELATIONSHIP :Type`.
type DeleteVirtualRel struct {
	opBase
	Type string
}

// OrderItem is one `expr [ASC|DESC]` slot of ORDER BY.
type OrderItem struct {
	Expr Expr
	Desc bool
}

// Return is the terminal projection: `RETURN [DISTINCT] expr [AS alias], ...
// [ORDER BY ...] [LIMIT n] [SKIP n]`, plus a post-aggregation WHERE per
// spec.md §4.I(iv).
type Return struct {
	opBase
	Items    []ProjectItem
	Distinct bool
	OrderBy  []OrderItem
	Limit    Expr // nil if absent
	Skip     Expr // nil if absent
	Where    Expr // post-aggregation filter, nil if absent
}
