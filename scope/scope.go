// Package scope implements the row scope spec'd in spec.md §4.F and design
// note §9: a stack of frames keyed by identifier, holding the bindings
// visible to the operation currently evaluating a row. Scope is passed
// explicitly to every evaluator rather than kept in a global, per design
// note §9 ("avoid global singletons for scope state; pass it explicitly to
// value()").
package scope

// Scope is one row's worth of named bindings. A MATCH segment pushes its
// pattern's new identifiers with Child; WITH replaces the frame entirely
// with its projection via New; RETURN reads from whatever frame is current.
type Scope struct {
	parent *Scope
	vars   map[string]any
}

// New creates a root scope with no bindings.
func New() *Scope {
	return &Scope{vars: make(map[string]any)}
}

// Child creates a scope that inherits parent's bindings but can shadow or
// add its own without mutating parent — used when a MATCH segment
// introduces pattern variables on top of the incoming row.
func (s *Scope) Child() *Scope {
	return &Scope{parent: s, vars: make(map[string]any)}
}

// Get resolves name, walking up through parent frames. ok is false if name
// is unbound anywhere in the chain (distinct from being bound to nil).
func (s *Scope) Get(name string) (any, bool) {
	for f := s; f != nil; f = f.parent {
		if v, ok := f.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Set binds name in the current (innermost) frame.
func (s *Scope) Set(name string, v any) {
	s.vars[name] = v
}

// Snapshot captures the set of bindings visible right now as a flat map,
// walking from the root down so closer frames shadow farther ones. Used to
// build a node-record RETURN row and to capture "the node value as it
// stood when RETURN began evaluating" for the alias-shadowing rule in
// design note §9.
func (s *Scope) Snapshot() map[string]any {
	var chain []*Scope
	for f := s; f != nil; f = f.parent {
		chain = append(chain, f)
	}
	out := make(map[string]any)
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].vars {
			out[k] = v
		}
	}
	return out
}

// FromSnapshot builds a fresh root scope from a flat binding map, used when
// WITH rewrites the pipeline's visible variables to its projection, or when
// a RETURN row's accumulated bindings are replayed for ORDER BY key
// recomputation.
func FromSnapshot(vars map[string]any) *Scope {
	s := New()
	for k, v := range vars {
		s.vars[k] = v
	}
	return s
}

// Names returns the identifiers directly bound in this frame (not parents).
func (s *Scope) Names() []string {
	names := make([]string, 0, len(s.vars))
	for k := range s.vars {
		names = append(names, k)
	}
	return names
}
