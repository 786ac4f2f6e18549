// Package pattern implements the graph pattern matcher spec'd in spec.md
// §4.H: a cursor walk over an alternating node/relationship chain, driven
// against the virtual catalog.
//
// Matcher depends on package catalog and package expr directly — neither of
// those import pattern back, so there is no cycle here. The cycle this
// design actually avoids is the other direction: package expr evaluates a
// PatternExpr by calling a Env.MatchPattern func field rather than importing
// pattern, because pattern's own traversal already needs expr.Eval for
// inline property constraints, and a circular import would result if expr
// imported pattern too.
package pattern

import (
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/flowquery-dev/flowquery/ast"
	"github.com/flowquery-dev/flowquery/catalog"
	"github.com/flowquery-dev/flowquery/expr"
	"github.com/flowquery-dev/flowquery/fqerr"
	"github.com/flowquery-dev/flowquery/scope"
	"github.com/flowquery-dev/flowquery/value"
)

// RowFunc is called once per matched row, sc carrying every pattern
// variable bound along the traversal (and the path variable, if any).
type RowFunc func(sc *scope.Scope) error

// Matcher drives pattern traversal against a Catalog, delegating inline
// property-constraint evaluation and scalar comparisons to expr.Eval.
type Matcher struct {
	Catalog *catalog.Catalog
	Env     *expr.Env
}

// New builds a Matcher; env.MatchPattern is typically set to m.MatchExpr
// after construction so expr.Eval can dispatch PatternExpr predicates back
// into this matcher.
func New(cat *catalog.Catalog, env *expr.Env) *Matcher {
	return &Matcher{Catalog: cat, Env: env}
}

// MatchExpr implements expr.Env.MatchPattern: true iff pat matches at
// least once from sc's already-bound endpoints (spec.md §4.H "graph
// pattern in WHERE").
func (m *Matcher) MatchExpr(pat *ast.Pattern, sc *scope.Scope) (bool, error) {
	found := false
	err := m.MatchPattern(pat, sc, false, func(*scope.Scope) error {
		found = true
		return nil
	})
	return found, err
}

// MatchPattern drives a single pattern's traversal starting from sc,
// calling emit once per produced row. When optional is true and no row was
// produced, a single row is emitted with every new pattern variable bound
// to null (OPTIONAL MATCH, spec.md §4.H).
func (m *Matcher) MatchPattern(pat *ast.Pattern, sc *scope.Scope, optional bool, emit RowFunc) error {
	if len(pat.Nodes) == 0 {
		return fqerr.ErrShape.New("pattern has no nodes")
	}
	produced := false
	wrapped := func(s *scope.Scope, path value.Path) error {
		produced = true
		if pat.PathVar != "" {
			s.Set(pat.PathVar, path)
		}
		return emit(s)
	}
	if err := m.matchNodeAt(pat, 0, sc, nil, wrapped); err != nil {
		if !(optional && isUnknownLabelOrType(err)) {
			return err
		}
	}
	if !produced && optional {
		os := sc.Child()
		bindNullVars(pat, os)
		return emit(os)
	}
	return nil
}

// isUnknownLabelOrType reports whether err is fqerr.ErrUnknownLabel or
// fqerr.ErrUnknownRelType. An OPTIONAL MATCH recovers from either by
// treating the referenced label/type as an empty source rather than
// failing the query (spec.md §7), per catalog.Catalog.NodeStoreFor/
// RelStoreFor's documented contract.
func isUnknownLabelOrType(err error) bool {
	return errors.Is(err, fqerr.ErrUnknownLabel) || errors.Is(err, fqerr.ErrUnknownRelType)
}

// bindNullVars binds every variable introduced by pat (that is not already
// bound as a node reference) to nil, for an OPTIONAL MATCH that produced no
// rows.
func bindNullVars(pat *ast.Pattern, sc *scope.Scope) {
	for _, n := range pat.Nodes {
		if n.Var != "" {
			if _, ok := sc.Get(n.Var); !ok {
				sc.Set(n.Var, nil)
			}
		}
	}
	for _, r := range pat.Rels {
		if r.Var != "" {
			sc.Set(r.Var, nil)
		}
	}
}

// pathSoFar is threaded through recursive traversal calls to build the
// named-path value when the pattern is bound to a path variable; it holds
// the chain matched so far starting from pat.Nodes[0].
type pathSoFar []any

// emitFunc receives the final scope of a completed traversal plus the
// fully built path snapshot.
type emitFunc func(sc *scope.Scope, path value.Path) error

// matchNodeAt matches pat.Nodes[idx] and, if idx is not the last node,
// continues into the relationship at pat.Rels[idx]. prior is the path
// accumulated through pat.Nodes[0..idx).
func (m *Matcher) matchNodeAt(pat *ast.Pattern, idx int, sc *scope.Scope, prior pathSoFar, emit emitFunc) error {
	elem := pat.Nodes[idx]

	tryCandidate := func(node *value.Node) error {
		if !propsMatch(m.Env, sc, elem.Props, node.Props) {
			return nil
		}
		child := sc.Child()
		if elem.Var != "" {
			child.Set(elem.Var, node)
		}
		path := append(append(pathSoFar{}, prior...), node)
		if idx == len(pat.Nodes)-1 {
			return emit(child, value.Path(path))
		}
		return m.matchRelAt(pat, idx, node, child, path, emit)
	}

	if elem.IsReference {
		v, ok := sc.Get(elem.Var)
		if !ok {
			return fqerr.ErrSemantic.New("node reference " + elem.Var + " is not bound by an earlier pattern")
		}
		node, ok := v.(*value.Node)
		if !ok || node == nil {
			return nil
		}
		return tryCandidate(node)
	}

	if elem.Label == "" {
		return fqerr.ErrShape.New("node pattern requires a label")
	}
	store, err := m.Catalog.NodeStoreFor(elem.Label)
	if err != nil {
		return err
	}
	rows, err := store.Data(m.Catalog)
	if err != nil {
		return err
	}
	for _, row := range rows {
		node := &value.Node{Label: elem.Label, Props: row}
		if err := tryCandidate(node); err != nil {
			return err
		}
	}
	return nil
}

// matchRelAt matches the relationship slot pat.Rels[idx] connecting
// pat.Nodes[idx] (already matched as cur) to pat.Nodes[idx+1], handling
// fixed-length and variable-length (*min..max) hops per spec.md §4.H.
func (m *Matcher) matchRelAt(pat *ast.Pattern, idx int, cur *value.Node, sc *scope.Scope, path pathSoFar, emit emitFunc) error {
	rel := pat.Rels[idx]
	min, max, hasMax := 1, 1, true
	if rel.HasHops {
		min, max, hasMax = rel.Hops.Min, rel.Hops.Max, rel.Hops.HasMax
	}

	if min == 0 {
		// Zero-hop: the target node is the current node itself, relationship
		// bound to null (spec.md §4.H "Zero-hop").
		if err := m.tryZeroHop(pat, idx, cur, sc, path, rel, emit); err != nil {
			return err
		}
	}

	curID := normalizeID(cur.ID())
	visited := map[any]bool{curID: true}
	return m.extendHops(pat, idx, cur, curID, sc, path, rel, 1, min, max, hasMax, visited, emit)
}

func (m *Matcher) tryZeroHop(pat *ast.Pattern, idx int, cur *value.Node, sc *scope.Scope, path pathSoFar, rel *ast.RelPatternElem, emit emitFunc) error {
	child := sc.Child()
	if rel.Var != "" {
		child.Set(rel.Var, (*value.Rel)(nil))
	}
	// path already ends with cur; matchTargetNode appends it again.
	zeroPath := append(pathSoFar{}, path[:len(path)-1]...)
	return m.matchTargetNode(pat, idx+1, cur, child, zeroPath, emit)
}

// extendHops walks one additional hop from (curNode, curID), for each
// matching edge: if depth is within [min,max], attempts to terminate the
// relationship slot at the reached node (matchTargetNode); if depth+1 is
// still within range, recurses further, refusing to revisit an id already
// on the active path (acyclic multi-hop, spec.md §4.H / invariant 9).
func (m *Matcher) extendHops(pat *ast.Pattern, idx int, curNode *value.Node, curID any, sc *scope.Scope, path pathSoFar, rel *ast.RelPatternElem, depth, min, max int, hasMax bool, visited map[any]bool, emit emitFunc) error {
	for _, typ := range rel.Types {
		store, err := m.Catalog.RelStoreFor(typ)
		if err != nil {
			return err
		}
		edges, err := m.edgesFrom(store, curID, rel.Direction)
		if err != nil {
			return err
		}
		for _, edge := range edges {
			relVal := relValueFromRecord(typ, curNode, edge, rel.Direction)
			if !propsMatch(m.Env, sc, rel.Props, edge) {
				continue
			}
			nextID := normalizeID(otherEndID(edge, rel.Direction))
			if depth >= min {
				child := sc.Child()
				if rel.Var != "" {
					child.Set(rel.Var, relVal)
				}
				hopPath := append(append(pathSoFar{}, path...), relVal)
				if err := m.matchTargetNodeByID(pat, idx+1, nextID, relVal, child, hopPath, emit); err != nil {
					return err
				}
			}
			if (!hasMax || depth+1 <= max) && !visited[nextID] {
				nextNode, ok, err := m.loadNodeByID(pat.Nodes[idx+1], nextID)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				visited[nextID] = true
				hopPath := append(append(pathSoFar{}, path...), relVal, nextNode)
				if err := m.extendHops(pat, idx, nextNode, nextID, sc, hopPath, rel, depth+1, min, max, hasMax, visited, emit); err != nil {
					delete(visited, nextID)
					return err
				}
				delete(visited, nextID)
			}
		}
	}
	return nil
}

// matchTargetNode checks pat.Nodes[idx] against a node already in hand
// (the zero-hop case, where the target IS the current node).
func (m *Matcher) matchTargetNode(pat *ast.Pattern, idx int, node *value.Node, sc *scope.Scope, path pathSoFar, emit emitFunc) error {
	elem := pat.Nodes[idx]
	if elem.Label != "" && elem.Label != node.Label {
		return nil
	}
	if !propsMatch(m.Env, sc, elem.Props, node.Props) {
		return nil
	}
	child := sc.Child()
	if elem.Var != "" {
		child.Set(elem.Var, node)
	}
	full := append(append(pathSoFar{}, path...), node)
	if idx == len(pat.Nodes)-1 {
		return emit(child, value.Path(full))
	}
	return m.matchRelAt(pat, idx, node, child, full, emit)
}

// matchTargetNodeByID loads the target store's record for id and, if it
// satisfies pat.Nodes[idx]'s label/props/var, continues the chain.
// relVal is the relationship record already bound for this hop (possibly
// nil if the pattern's relationship slot has no variable); its far
// endpoint couldn't be known until the target node is resolved here, so
// it's backfilled onto relVal before the chain continues.
func (m *Matcher) matchTargetNodeByID(pat *ast.Pattern, idx int, id any, relVal *value.Rel, sc *scope.Scope, path pathSoFar, emit emitFunc) error {
	node, ok, err := m.loadNodeByID(pat.Nodes[idx], id)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	backfillRelEndpoint(relVal, node)
	return m.matchTargetNode(pat, idx, node, sc, path, emit)
}

// backfillRelEndpoint sets relVal's still-nil endpoint to node.
// relValueFromRecord can only populate the endpoint on the traversal's
// starting side up front; the far endpoint is unresolved until the target
// node is actually loaded.
func backfillRelEndpoint(relVal *value.Rel, node *value.Node) {
	if relVal.StartNode == nil {
		relVal.StartNode = node
	} else {
		relVal.EndNode = node
	}
}

// loadNodeByID resolves id against pat.Nodes[idx]'s label store via its id
// index.
func (m *Matcher) loadNodeByID(elem *ast.NodePatternElem, id any) (*value.Node, bool, error) {
	if elem.Label == "" {
		return nil, false, fqerr.ErrShape.New("node pattern requires a label")
	}
	store, err := m.Catalog.NodeStoreFor(elem.Label)
	if err != nil {
		return nil, false, err
	}
	positions, err := store.ByID(m.Catalog, id)
	if err != nil {
		return nil, false, err
	}
	if len(positions) == 0 {
		return nil, false, nil
	}
	rows, err := store.Data(m.Catalog)
	if err != nil {
		return nil, false, err
	}
	return &value.Node{Label: elem.Label, Props: rows[positions[0]]}, true, nil
}

// edgesFrom returns the relationship records reachable from id in the
// pattern's specified direction. Undirected patterns use only the
// left_id index, a documented asymmetry per spec.md §9.
func (m *Matcher) edgesFrom(store *catalog.RelationshipStore, id any, dir ast.Direction) ([]map[string]any, error) {
	var positions []int
	var err error
	switch dir {
	case ast.Rightward, ast.Undirected:
		positions, err = store.ByLeftID(m.Catalog, id)
	case ast.Leftward:
		positions, err = store.ByRightID(m.Catalog, id)
	}
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, nil
	}
	rows, err := store.Data(m.Catalog)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(positions))
	for i, p := range positions {
		out[i] = rows[p]
	}
	return out, nil
}

// normalizeID collapses int/int64/float64 to a single numeric representation
// so an id surfaces the same map key regardless of which side (node store
// vs. relationship store) produced it, matching value.Equal's
// cross-representation numeric equality.
func normalizeID(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		return v
	}
}

func otherEndID(edge map[string]any, dir ast.Direction) any {
	if dir == ast.Leftward {
		return edge["left_id"]
	}
	return edge["right_id"]
}

// relValueFromRecord builds the scope-visible *value.Rel for a matched
// edge record; StartNode/EndNode follow the traversal direction actually
// taken, not necessarily left/right storage order.
func relValueFromRecord(typ string, from *value.Node, edge map[string]any, dir ast.Direction) *value.Rel {
	props := make(map[string]any, len(edge))
	for k, v := range edge {
		if k != "left_id" && k != "right_id" && k != "_type" {
			props[k] = v
		}
	}
	r := &value.Rel{
		Type:   typ,
		LeftID: edge["left_id"],
		RightID: edge["right_id"],
		Props:  props,
	}
	if dir == ast.Leftward {
		r.StartNode = nil
		r.EndNode = from
	} else {
		r.StartNode = from
		r.EndNode = nil
	}
	return r
}

// propsMatch evaluates an inline `{k: expr, ...}` pattern constraint (nil
// means "no constraint") against a candidate record's properties.
func propsMatch(env *expr.Env, sc *scope.Scope, constraint *ast.MapLiteral, props map[string]any) bool {
	if constraint == nil {
		return true
	}
	for i, k := range constraint.Keys {
		want, err := expr.Eval(constraint.Values[i], sc, env)
		if err != nil {
			return false
		}
		if !value.Equal(props[k], want) {
			return false
		}
	}
	return true
}
