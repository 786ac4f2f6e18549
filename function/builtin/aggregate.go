package builtin

import (
	"github.com/flowquery-dev/flowquery/function"
	"github.com/flowquery-dev/flowquery/value"
)

func init() {
	registerAggregateFuncs()
}

type sumAgg struct{}

type sumState struct {
	total   float64
	allInts bool
	seen    bool
}

func (sumAgg) NewReducer() function.Reducer { return &sumState{allInts: true} }
func (sumAgg) Reduce(r function.Reducer, args []any) function.Reducer {
	s := r.(*sumState)
	if args[0] == nil {
		return s
	}
	s.seen = true
	switch n := args[0].(type) {
	case int64:
		s.total += float64(n)
	case int:
		s.total += float64(n)
	case float64:
		s.total += n
		s.allInts = false
	}
	return s
}
func (sumAgg) Finalize(r function.Reducer) any {
	s := r.(*sumState)
	if !s.seen {
		return int64(0)
	}
	if s.allInts {
		return int64(s.total)
	}
	return s.total
}

type avgState struct {
	total float64
	count int
}

type avgAgg struct{}

func (avgAgg) NewReducer() function.Reducer { return &avgState{} }
func (avgAgg) Reduce(r function.Reducer, args []any) function.Reducer {
	s := r.(*avgState)
	if args[0] == nil {
		return s
	}
	switch n := args[0].(type) {
	case int64:
		s.total += float64(n)
	case int:
		s.total += float64(n)
	case float64:
		s.total += n
	}
	s.count++
	return s
}
func (avgAgg) Finalize(r function.Reducer) any {
	s := r.(*avgState)
	if s.count == 0 {
		return nil
	}
	return s.total / float64(s.count)
}

type minMaxState struct {
	val any
	has bool
}

type minAgg struct{}

func (minAgg) NewReducer() function.Reducer { return &minMaxState{} }
func (minAgg) Reduce(r function.Reducer, args []any) function.Reducer {
	s := r.(*minMaxState)
	if args[0] == nil {
		return s
	}
	if !s.has || less(args[0], s.val) {
		s.val = args[0]
		s.has = true
	}
	return s
}
func (minAgg) Finalize(r function.Reducer) any {
	s := r.(*minMaxState)
	if !s.has {
		return nil
	}
	return s.val
}

type maxAgg struct{}

func (maxAgg) NewReducer() function.Reducer { return &minMaxState{} }
func (maxAgg) Reduce(r function.Reducer, args []any) function.Reducer {
	s := r.(*minMaxState)
	if args[0] == nil {
		return s
	}
	if !s.has || less(s.val, args[0]) {
		s.val = args[0]
		s.has = true
	}
	return s
}
func (maxAgg) Finalize(r function.Reducer) any {
	s := r.(*minMaxState)
	if !s.has {
		return nil
	}
	return s.val
}

func less(a, b any) bool {
	ak := value.NewSortKey(a)
	bk := value.NewSortKey(b)
	return ak.Less(bk)
}

type countState struct{ n int64 }

type countAgg struct{}

func (countAgg) NewReducer() function.Reducer { return &countState{} }
func (countAgg) Reduce(r function.Reducer, args []any) function.Reducer {
	s := r.(*countState)
	if len(args) == 0 || args[0] != nil {
		s.n++
	}
	return s
}
func (countAgg) Finalize(r function.Reducer) any { return r.(*countState).n }

type collectState struct{ items []any }

type collectAgg struct{}

func (collectAgg) NewReducer() function.Reducer { return &collectState{items: []any{}} }
func (collectAgg) Reduce(r function.Reducer, args []any) function.Reducer {
	s := r.(*collectState)
	if args[0] != nil {
		s.items = append(s.items, args[0])
	}
	return s
}
func (collectAgg) Finalize(r function.Reducer) any { return r.(*collectState).items }

func registerAggregateFuncs() {
	register := func(name string, arity function.Arity, inst function.Instance) {
		function.Default.Register(function.Descriptor{
			Name:     name,
			Category: function.Aggregate,
			Arity:    arity,
			Output:   "any",
			New:      func() function.Instance { return inst },
		})
	}
	register("sum", exact(1), sumAgg{})
	register("avg", exact(1), avgAgg{})
	register("min", exact(1), minAgg{})
	register("max", exact(1), maxAgg{})
	register("count", variadic(0), countAgg{})
	register("collect", exact(1), collectAgg{})
}
