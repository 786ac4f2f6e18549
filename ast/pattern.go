package ast

import "github.com/flowquery-dev/flowquery/token"

// Hops is a relationship's variable-length bound, `*`, `*n..`, `*n..m`,
// `*..m`, or the implicit `*1..1` for a plain `[:T]` with no star.
type Hops struct {
	Min, Max int
	// HasMax is false for unbounded "*" / "*n..".
	HasMax bool
}

// Direction is the arrow direction surrounding a relationship pattern.
type Direction int

const (
	// Undirected is `-[...]-`. Per spec.md §4.H / §9, undirected traversal
	// uses only the LeftID index — a documented asymmetry, replicated as-is.
	Undirected Direction = iota
	Rightward            // -[...]->
	Leftward              // <-[...]-
)

// NodePatternElem is one node slot of a Pattern.
type NodePatternElem struct {
	Var   string // "" if anonymous
	Label string // "" if unlabeled
	Props *MapLiteral
	// IsReference is set by the parser when Var names a node bound by an
	// earlier MATCH segment (spec.md §4.C "Node reuse" / §4.H "Node
	// references"): the matcher binds to that node's current value instead
	// of iterating the label's store.
	IsReference bool
	P           token.Position
}

// RelPatternElem is one relationship slot of a Pattern.
type RelPatternElem struct {
	Var       string
	Types     []string // one or more, joined with "type-OR" semantics
	Hops      Hops
	HasHops   bool
	Props     *MapLiteral
	Direction Direction
	P         token.Position
}

// Pattern is an alternating chain of nodes and relationships, always odd
// length, starting and ending with a NodePatternElem: Nodes[0], Rels[0],
// Nodes[1], Rels[1], ..., Nodes[len(Rels)].
type Pattern struct {
	Nodes []*NodePatternElem
	Rels  []*RelPatternElem
	// PathVar is the bound name of a named path, `p = (a)-[r]->(b)`, or ""
	// if the pattern is not bound to a path variable.
	PathVar string
	P       token.Position
}

func (p *Pattern) Pos() token.Position { return p.P }

// MultiPattern is the comma-separated pattern list of `MATCH (a), (b)`;
// spec.md §4.H specifies these are cross-joined, later patterns nested
// inside earlier ones' traversal callbacks.
type MultiPattern struct {
	Patterns []*Pattern
	P        token.Position
}

func (m *MultiPattern) Pos() token.Position { return m.P }
