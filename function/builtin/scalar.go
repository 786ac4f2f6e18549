// Package builtin registers FlowQuery's built-in scalar, aggregate, and
// predicate functions into function.Default at package init, grounded on
// the teacher's sql/expression/function layout (one file per function
// family) and on the coercion/inflection libraries wired in SPEC_FULL.md §4.
package builtin

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jinzhu/inflection"
	"github.com/spf13/cast"

	"github.com/flowquery-dev/flowquery/fqerr"
	"github.com/flowquery-dev/flowquery/function"
	"github.com/flowquery-dev/flowquery/value"
)

func init() {
	registerStringFuncs()
	registerCollectionFuncs()
	registerCoercionFuncs()
}

type simpleScalar struct {
	fn func(args []any) (any, error)
}

func (s *simpleScalar) Call(args []any) (any, error) { return s.fn(args) }

func scalar(name string, arity function.Arity, nullProp bool, output string, fn func(args []any) (any, error), params ...function.ParamSchema) {
	function.Default.Register(function.Descriptor{
		Name:            name,
		Category:        function.Scalar,
		Arity:           arity,
		Params:          params,
		Output:          output,
		NullPropagating: nullProp,
		New:             func() function.Instance { return &simpleScalar{fn: fn} },
	})
}

func exact(n int) function.Arity           { return function.Arity{Exact: n} }
func variadic(min int) function.Arity      { return function.Arity{Variadic: true, Min: min} }

func registerStringFuncs() {
	scalar("toUpper", exact(1), true, "string", func(a []any) (any, error) {
		s, err := cast.ToStringE(a[0])
		if err != nil {
			return nil, err
		}
		return strings.ToUpper(s), nil
	})
	scalar("toLower", exact(1), true, "string", func(a []any) (any, error) {
		s, err := cast.ToStringE(a[0])
		if err != nil {
			return nil, err
		}
		return strings.ToLower(s), nil
	})
	scalar("trim", exact(1), true, "string", func(a []any) (any, error) {
		s, err := cast.ToStringE(a[0])
		if err != nil {
			return nil, err
		}
		return strings.TrimSpace(s), nil
	})
	scalar("replace", exact(3), true, "string", func(a []any) (any, error) {
		s, _ := cast.ToStringE(a[0])
		old, _ := cast.ToStringE(a[1])
		neu, _ := cast.ToStringE(a[2])
		return strings.ReplaceAll(s, old, neu), nil
	})
	scalar("split", exact(2), true, "list", func(a []any) (any, error) {
		s, _ := cast.ToStringE(a[0])
		sep, _ := cast.ToStringE(a[1])
		parts := strings.Split(s, sep)
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out, nil
	})
	scalar("substring", variadic(2), true, "string", func(a []any) (any, error) {
		s, _ := cast.ToStringE(a[0])
		start, _ := cast.ToIntE(a[1])
		if start < 0 {
			start = 0
		}
		if start > len(s) {
			start = len(s)
		}
		if len(a) == 2 {
			return s[start:], nil
		}
		length, _ := cast.ToIntE(a[2])
		end := start + length
		if end > len(s) {
			end = len(s)
		}
		if end < start {
			end = start
		}
		return s[start:end], nil
	})
	scalar("left", exact(2), true, "string", func(a []any) (any, error) {
		s, _ := cast.ToStringE(a[0])
		n, _ := cast.ToIntE(a[1])
		if n > len(s) {
			n = len(s)
		}
		if n < 0 {
			n = 0
		}
		return s[:n], nil
	})
	scalar("right", exact(2), true, "string", func(a []any) (any, error) {
		s, _ := cast.ToStringE(a[0])
		n, _ := cast.ToIntE(a[1])
		if n > len(s) {
			n = len(s)
		}
		if n < 0 {
			n = 0
		}
		return s[len(s)-n:], nil
	})
	scalar("join", exact(2), true, "string", func(a []any) (any, error) {
		list, err := asList(a[0])
		if err != nil {
			return nil, err
		}
		sep, _ := cast.ToStringE(a[1])
		parts := make([]string, len(list))
		for i, v := range list {
			s, err := cast.ToStringE(v)
			if err != nil {
				return nil, err
			}
			parts[i] = s
		}
		return strings.Join(parts, sep), nil
	})
	scalar("pluralize", exact(1), true, "string", func(a []any) (any, error) {
		s, err := cast.ToStringE(a[0])
		if err != nil {
			return nil, err
		}
		return inflection.Plural(s), nil
	})
	scalar("singularize", exact(1), true, "string", func(a []any) (any, error) {
		s, err := cast.ToStringE(a[0])
		if err != nil {
			return nil, err
		}
		return inflection.Singular(s), nil
	})
}

func registerCollectionFuncs() {
	scalar("size", exact(1), true, "integer", func(a []any) (any, error) {
		switch v := a[0].(type) {
		case string:
			return int64(len(v)), nil
		case []any:
			return int64(len(v)), nil
		case map[string]any:
			return int64(len(v)), nil
		default:
			return nil, fqerr.ErrTypeMismatch.New(fmt.Sprintf("size: unsupported type %T", v))
		}
	})
	scalar("keys", exact(1), true, "list", func(a []any) (any, error) {
		m, err := asMap(a[0])
		if err != nil {
			return nil, err
		}
		ks := make([]string, 0, len(m))
		for k := range m {
			if k == "id" || k == "left_id" || k == "right_id" || k == "_type" {
				continue
			}
			ks = append(ks, k)
		}
		sort.Strings(ks)
		out := make([]any, len(ks))
		for i, k := range ks {
			out[i] = k
		}
		return out, nil
	})
	scalar("properties", exact(1), true, "map", func(a []any) (any, error) {
		switch v := a[0].(type) {
		case *value.Node:
			return v.Props, nil
		case *value.Rel:
			return v.Props, nil
		case map[string]any:
			return v, nil
		default:
			return nil, fqerr.ErrTypeMismatch.New(fmt.Sprintf("properties: unsupported type %T", v))
		}
	})
	scalar("id", exact(1), true, "any", func(a []any) (any, error) {
		switch v := a[0].(type) {
		case *value.Node:
			return v.ID(), nil
		default:
			return nil, fqerr.ErrTypeMismatch.New(fmt.Sprintf("id: unsupported type %T", v))
		}
	})
	scalar("elementId", exact(1), true, "string", func(a []any) (any, error) {
		switch v := a[0].(type) {
		case *value.Node:
			return fmt.Sprintf("%s:%v", v.Label, v.ID()), nil
		case *value.Rel:
			return fmt.Sprintf("%s:%v-%v", v.Type, v.LeftID, v.RightID), nil
		default:
			return nil, fqerr.ErrTypeMismatch.New(fmt.Sprintf("elementId: unsupported type %T", v))
		}
	})
	scalar("head", exact(1), true, "any", func(a []any) (any, error) {
		list, err := asList(a[0])
		if err != nil || len(list) == 0 {
			return nil, err
		}
		return list[0], nil
	})
	scalar("last", exact(1), true, "any", func(a []any) (any, error) {
		list, err := asList(a[0])
		if err != nil || len(list) == 0 {
			return nil, err
		}
		return list[len(list)-1], nil
	})
	scalar("tail", exact(1), true, "list", func(a []any) (any, error) {
		list, err := asList(a[0])
		if err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return []any{}, nil
		}
		return append([]any{}, list[1:]...), nil
	})
	scalar("range", variadic(2), false, "list", func(a []any) (any, error) {
		start, err := cast.ToInt64E(a[0])
		if err != nil {
			return nil, err
		}
		end, err := cast.ToInt64E(a[1])
		if err != nil {
			return nil, err
		}
		step := int64(1)
		if len(a) == 3 {
			step, err = cast.ToInt64E(a[2])
			if err != nil {
				return nil, err
			}
		}
		if step == 0 {
			return nil, fqerr.ErrShape.New("range: step must not be zero")
		}
		var out []any
		if step > 0 {
			for i := start; i <= end; i += step {
				out = append(out, i)
			}
		} else {
			for i := start; i >= end; i += step {
				out = append(out, i)
			}
		}
		if out == nil {
			out = []any{}
		}
		return out, nil
	})
}

func registerCoercionFuncs() {
	scalar("toInteger", exact(1), true, "integer", func(a []any) (any, error) {
		v, err := cast.ToInt64E(a[0])
		if err != nil {
			return nil, nil
		}
		return v, nil
	})
	scalar("toFloat", exact(1), true, "float", func(a []any) (any, error) {
		v, err := cast.ToFloat64E(a[0])
		if err != nil {
			return nil, nil
		}
		return v, nil
	})
	scalar("toString", exact(1), true, "string", func(a []any) (any, error) {
		v, err := cast.ToStringE(a[0])
		if err != nil {
			return nil, nil
		}
		return v, nil
	})
	scalar("round", exact(1), true, "float", func(a []any) (any, error) {
		f, err := cast.ToFloat64E(a[0])
		if err != nil {
			return nil, err
		}
		if f >= 0 {
			return float64(int64(f + 0.5)), nil
		}
		return float64(int64(f - 0.5)), nil
	})
	scalar("stringify", exact(1), true, "string", func(a []any) (any, error) {
		return fmt.Sprintf("%v", a[0]), nil
	})
	scalar("tojson", exact(1), true, "string", func(a []any) (any, error) {
		b, err := json.Marshal(a[0])
		if err != nil {
			return nil, err
		}
		return string(b), nil
	})
}

func asList(v any) ([]any, error) {
	l, ok := v.([]any)
	if !ok {
		return nil, fqerr.ErrTypeMismatch.New(fmt.Sprintf("expected a list, got %T", v))
	}
	return l, nil
}

func asMap(v any) (map[string]any, error) {
	switch m := v.(type) {
	case map[string]any:
		return m, nil
	case *value.Node:
		return m.Props, nil
	case *value.Rel:
		props := make(map[string]any, len(m.Props)+3)
		for k, vv := range m.Props {
			props[k] = vv
		}
		return props, nil
	default:
		return nil, fqerr.ErrTypeMismatch.New(fmt.Sprintf("expected a map, got %T", v))
	}
}
