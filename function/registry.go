// Package function implements the function registry spec'd in spec.md
// §4.E: a process-wide, case-folded mapping from function name to a
// metadata-tagged factory. Registration happens at package init through
// Register, mirroring the "static registration call at module load" shape
// design note §9 prescribes in place of the source's class-decorator
// pattern — each builtin factory in function/builtin registers itself by
// name, category, and arity, carrying its parameter/output schema as data.
package function

import (
	"fmt"
	"strings"
	"sync"

	"github.com/flowquery-dev/flowquery/ast"
	"github.com/flowquery-dev/flowquery/fqerr"
	"github.com/flowquery-dev/flowquery/scope"
)

// Category classifies a function's evaluation contract, per spec.md §4.E.
type Category int

const (
	Scalar Category = iota
	Aggregate
	Predicate
	Async
)

func (c Category) String() string {
	switch c {
	case Scalar:
		return "scalar"
	case Aggregate:
		return "aggregate"
	case Predicate:
		return "predicate"
	case Async:
		return "async"
	default:
		return "unknown"
	}
}

// Arity is a function's declared argument count: either an exact integer
// or variadic (any count, optionally with a minimum).
type Arity struct {
	Exact    int
	Variadic bool
	Min      int // used only when Variadic
}

// String renders the arity for ArityError messages.
func (a Arity) String() string {
	if a.Variadic {
		if a.Min > 0 {
			return fmt.Sprintf("at least %d argument(s)", a.Min)
		}
		return "any number of arguments"
	}
	return fmt.Sprintf("%d argument(s)", a.Exact)
}

// Accepts reports whether n arguments satisfy this arity.
func (a Arity) Accepts(n int) bool {
	if a.Variadic {
		return n >= a.Min
	}
	return n == a.Exact
}

// ParamSchema documents one declared parameter, for introspection via
// Registry.Schema.
type ParamSchema struct {
	Name string
	Type string
	Doc  string
}

// Descriptor is a function's registered metadata plus its instance factory.
type Descriptor struct {
	Name            string
	Category        Category
	Arity           Arity
	Params          []ParamSchema
	Output          string
	Examples        []string
	NullPropagating bool
	New             func() Instance
}

// Instance is the common supertype of ScalarFunc, AggregateFunc,
// PredicateFunc, and AsyncProvider; callers type-assert to the interface
// matching Descriptor.Category.
type Instance interface{}

// Evaluator evaluates an already-parsed expression subtree against a row
// scope; it is how PredicateFunc instances invoke the loop body/filter
// expressions of `all(x IN list WHERE pred | expr)` without this package
// importing package expr (which would cycle back through the registry).
type Evaluator func(e ast.Expr, sc *scope.Scope) (any, error)

// ScalarFunc computes a pure value from already-evaluated argument values.
type ScalarFunc interface {
	Call(args []any) (any, error)
}

// Reducer is the per-group accumulator an AggregateFunc folds rows into.
type Reducer any

// AggregateFunc maintains a per-group Reducer across the rows of a group,
// per spec.md §4.E.
type AggregateFunc interface {
	NewReducer() Reducer
	Reduce(r Reducer, args []any) Reducer
	Finalize(r Reducer) any
}

// PredicateFunc iterates a bound collection, rebinding a loop variable and
// optionally testing a WHERE expression, folding a per-iteration expression
// into a single scalar (spec.md §4.E "Predicate functions").
type PredicateFunc interface {
	Eval(list []any, loopVar string, filter, body ast.Expr, sc *scope.Scope, eval Evaluator) (any, error)
}

// AsyncRow is one row yielded by an AsyncProvider: either a map (becomes a
// projected row when YIELDed) or a bare scalar (legal only when CALL is
// terminal, per spec.md §6).
type AsyncRow struct {
	Map   map[string]any
	Value any
	IsMap bool
}

// AsyncProvider exposes an asynchronous iterator of rows, drained by CALL
// (spec.md §4.E, §6). LOAD JSON does not go through a provider.
type AsyncProvider interface {
	Call(args []any) (AsyncIter, error)
}

// AsyncIter is a cooperative row stream: Next blocks until a row is ready,
// an error occurs, or the stream is exhausted (ok == false, err == nil).
type AsyncIter interface {
	Next() (row AsyncRow, ok bool, err error)
	Close() error
}

// Default is the process-wide function registry. Built-in scalar,
// aggregate, predicate, and async-provider packages register themselves
// here from an init() func, per design note §9's "static registration
// call at module load" in place of the source's class-decorator pattern.
var Default = NewRegistry()

// Registry is the process-wide function catalog.
type Registry struct {
	mu   sync.RWMutex
	fns  map[string]Descriptor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{fns: make(map[string]Descriptor)}
}

// Register adds d to the registry, case-folding its name. Re-registering
// an existing name overwrites it, matching how builtin packages register
// at init and callers may shadow a builtin with a custom implementation.
func (r *Registry) Register(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d.Name = strings.ToLower(d.Name)
	r.fns[d.Name] = d
}

// Lookup returns the Descriptor for name (case-insensitive), or
// ErrUnknownFunction.
func (r *Registry) Lookup(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.fns[strings.ToLower(name)]
	if !ok {
		return Descriptor{}, fqerr.ErrUnknownFunction.New(name)
	}
	return d, nil
}

// CheckArity validates argc against name's declared arity, raising
// ErrArity on mismatch; used by the parser at parse time.
func (r *Registry) CheckArity(name string, argc int) error {
	d, err := r.Lookup(name)
	if err != nil {
		return err
	}
	if !d.Arity.Accepts(argc) {
		return fqerr.ErrArity.New(d.Name, d.Arity.String(), argc)
	}
	return nil
}

// Functions returns every registered Descriptor, for introspection.
func (r *Registry) Functions() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.fns))
	for _, d := range r.fns {
		out = append(out, d)
	}
	return out
}

// Schema returns the Descriptor for name, for introspection.
func (r *Registry) Schema(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.fns[strings.ToLower(name)]
	return d, ok
}
