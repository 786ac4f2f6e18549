// Package value defines the runtime value model shared by the expression
// engine, the pattern matcher, and the pipeline executor: scalars, lists,
// maps, nodes, relationships, and paths, plus the structural equality and
// truthiness rules spec'd for FlowQuery.
//
// Values are represented as plain Go `any` so that scope.Scope, ast.Expr,
// and function.Descriptor can all pass them around without an import
// cycle back into this package for the common cases (nil, bool, int64,
// float64, string, []any, map[string]any). The richer shapes (Node, Rel,
// Path, Duration) are concrete structs defined here.
package value

import (
	"sort"

	"github.com/google/go-cmp/cmp"
)

// Node is the scope-visible representation of a matched graph node: a
// materialized record from a virtual node store, tagged with the label it
// was matched under.
type Node struct {
	Label string
	Props map[string]any
}

// ID returns the node's reserved identity field.
func (n *Node) ID() any {
	if n == nil || n.Props == nil {
		return nil
	}
	return n.Props["id"]
}

// Get implements property access, including the reserved "id" field.
func (n *Node) Get(field string) any {
	if n == nil {
		return nil
	}
	return n.Props[field]
}

// Rel is the scope-visible representation of a matched relationship: the
// "relationship match record" of spec.md §3, `{type, startNode, endNode,
// properties, ...properties}` with direct top-level property access.
type Rel struct {
	Type      string
	StartNode *Node
	EndNode   *Node
	LeftID    any
	RightID   any
	Props     map[string]any
}

// Get resolves a field against the relationship, trying the reserved
// fields first, then top-level property passthrough.
func (r *Rel) Get(field string) any {
	if r == nil {
		return nil
	}
	switch field {
	case "type":
		return r.Type
	case "startNode":
		return r.StartNode
	case "endNode":
		return r.EndNode
	case "properties":
		return r.Props
	default:
		if r.Props == nil {
			return nil
		}
		return r.Props[field]
	}
}

// Path is the materialized sequence of a matched pattern: odd length,
// alternating *Node at even positions and *Rel at odd positions. A
// zero-hop path is a single *Node.
type Path []any

// Duration is the component form of an ISO-8601 duration, produced by
// duration().
type Duration struct {
	Years, Months, Weeks, Days          int
	Hours, Minutes, Seconds, Nanos      int
}

// Equal reports structural deep-equality over primitives, lists, maps,
// nodes, relationships, and paths, per spec.md §3/§4.D. Numeric values of
// differing Go representation (int64 vs float64) compare equal when they
// denote the same number, matching FlowQuery's single numeric domain.
func Equal(a, b any) bool {
	an, aIsNum := asFloat(a)
	bn, bIsNum := asFloat(b)
	if aIsNum && bIsNum {
		return an == bn
	}
	return cmp.Equal(a, b, cmp.Comparer(func(x, y *Node) bool {
		if x == nil || y == nil {
			return x == y
		}
		return x.Label == y.Label && cmp.Equal(x.Props, y.Props, cmp.Comparer(Equal))
	}), cmp.Comparer(func(x, y *Rel) bool {
		if x == nil || y == nil {
			return x == y
		}
		return x.Type == y.Type && Equal(x.LeftID, y.LeftID) && Equal(x.RightID, y.RightID) &&
			cmp.Equal(x.Props, y.Props, cmp.Comparer(Equal))
	}))
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// Truthy implements FlowQuery's "1/0" truthiness contract: booleans pass
// through, numbers are truthy iff non-zero, and every other non-nil value
// (string, list, map, node, relationship, path) is truthy by presence.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case int64:
		return t != 0
	case int:
		return t != 0
	case float64:
		return t != 0
	default:
		return true
	}
}

// IsNull reports whether v is FlowQuery's null, i.e. untyped nil.
func IsNull(v any) bool {
	return v == nil
}

// SortKey is a comparable projection of a value used by ORDER BY, by
// min()/max(), and by the ordering comparison operators; it keeps the
// relative order rule "null sorts last" used by exec's RETURN.
type SortKey struct {
	Null bool
	Num  float64
	IsN  bool
	Str  string
}

// NewSortKey builds the ORDER BY comparison key for v.
func NewSortKey(v any) SortKey {
	if v == nil {
		return SortKey{Null: true}
	}
	if n, ok := asFloat(v); ok {
		return SortKey{Num: n, IsN: true}
	}
	if s, ok := v.(string); ok {
		return SortKey{Str: s}
	}
	if b, ok := v.(bool); ok {
		if b {
			return SortKey{Str: "1"}
		}
		return SortKey{Str: "0"}
	}
	return SortKey{Str: ""}
}

// Less orders two keys ascending, nulls last.
func (k SortKey) Less(o SortKey) bool {
	if k.Null != o.Null {
		return !k.Null
	}
	if k.Null {
		return false
	}
	if k.IsN && o.IsN {
		return k.Num < o.Num
	}
	return k.Str < o.Str
}

// OrderKey is one row's ORDER BY key: a SortKey per ORDER BY expression,
// each with its own ascending/descending flag, following spec.md §4.I's
// RETURN ORDER BY semantics.
type OrderKey struct {
	Keys []SortKey
	Desc []bool
}

// Less compares two OrderKeys lexicographically across their component
// expressions, honoring each component's direction.
func (k OrderKey) Less(o OrderKey) bool {
	for i := range k.Keys {
		if i >= len(o.Keys) {
			break
		}
		a, b := k.Keys[i], o.Keys[i]
		if a == b {
			continue
		}
		if k.Desc[i] {
			return o.Keys[i].Less(a)
		}
		return a.Less(b)
	}
	return false
}

// StableSortIndices returns a permutation of [0,n) sorted by less, stable.
func StableSortIndices(n int, less func(i, j int) bool) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return less(idx[i], idx[j]) })
	return idx
}
