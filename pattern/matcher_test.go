package pattern

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowquery-dev/flowquery/ast"
	"github.com/flowquery-dev/flowquery/catalog"
	"github.com/flowquery-dev/flowquery/expr"
	"github.com/flowquery-dev/flowquery/function"
	"github.com/flowquery-dev/flowquery/scope"
	"github.com/flowquery-dev/flowquery/value"

	_ "github.com/flowquery-dev/flowquery/function/builtin"
)

// testGraph builds a Catalog with a Person label (3 rows) and a KNOWS
// relationship type: 1->2, 2->3.
func testGraph(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat := catalog.New(nil)
	personStmt := &ast.Chain{}
	knowsStmt := &ast.Chain{}
	cat.SetRunner(func(stmt *ast.Chain) ([]map[string]any, error) {
		if stmt == personStmt {
			return []map[string]any{
				{"id": int64(1), "name": "Alice"},
				{"id": int64(2), "name": "Bob"},
				{"id": int64(3), "name": "Carol"},
			}, nil
		}
		return []map[string]any{
			{"left_id": int64(1), "right_id": int64(2)},
			{"left_id": int64(2), "right_id": int64(3)},
		}, nil
	})
	require.NoError(t, cat.RegisterNode("Person", personStmt))
	require.NoError(t, cat.RegisterRel("KNOWS", "Person", "Person", knowsStmt))
	return cat
}

func testMatcher(cat *catalog.Catalog) *Matcher {
	e := &expr.Env{Functions: function.Default}
	m := New(cat, e)
	e.MatchPattern = m.MatchExpr
	return m
}

func namesOf(rows []*scope.Scope, varName string) []string {
	var out []string
	for _, sc := range rows {
		v, _ := sc.Get(varName)
		n, ok := v.(*value.Node)
		if !ok || n == nil {
			out = append(out, "")
			continue
		}
		out = append(out, n.Get("name").(string))
	}
	return out
}

func TestMatchSingleNodeAllRows(t *testing.T) {
	m := testMatcher(testGraph(t))
	pat := &ast.Pattern{Nodes: []*ast.NodePatternElem{{Var: "p", Label: "Person"}}}

	var rows []*scope.Scope
	err := m.MatchPattern(pat, scope.New(), false, func(sc *scope.Scope) error {
		rows = append(rows, sc)
		return nil
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"Alice", "Bob", "Carol"}, namesOf(rows, "p"))
}

func TestMatchNodeWithPropsConstraint(t *testing.T) {
	m := testMatcher(testGraph(t))
	pat := &ast.Pattern{Nodes: []*ast.NodePatternElem{{
		Var: "p", Label: "Person",
		Props: &ast.MapLiteral{Keys: []string{"name"}, Values: []ast.Expr{&ast.Literal{Value: "Bob"}}},
	}}}

	var rows []*scope.Scope
	err := m.MatchPattern(pat, scope.New(), false, func(sc *scope.Scope) error {
		rows = append(rows, sc)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Bob"}, namesOf(rows, "p"))
}

func TestMatchOneHopRelationship(t *testing.T) {
	m := testMatcher(testGraph(t))
	pat := &ast.Pattern{
		Nodes: []*ast.NodePatternElem{{Var: "a", Label: "Person"}, {Var: "b", Label: "Person"}},
		Rels:  []*ast.RelPatternElem{{Types: []string{"KNOWS"}, Direction: ast.Rightward}},
	}

	var pairs [][2]string
	err := m.MatchPattern(pat, scope.New(), false, func(sc *scope.Scope) error {
		av, _ := sc.Get("a")
		bv, _ := sc.Get("b")
		pairs = append(pairs, [2]string{av.(*value.Node).Get("name").(string), bv.(*value.Node).Get("name").(string)})
		return nil
	})
	require.NoError(t, err)
	require.ElementsMatch(t, [][2]string{{"Alice", "Bob"}, {"Bob", "Carol"}}, pairs)
}

func TestMatchVariableLengthHops(t *testing.T) {
	m := testMatcher(testGraph(t))
	pat := &ast.Pattern{
		Nodes: []*ast.NodePatternElem{
			{Var: "a", Label: "Person", Props: &ast.MapLiteral{Keys: []string{"name"}, Values: []ast.Expr{&ast.Literal{Value: "Alice"}}}},
			{Var: "b", Label: "Person"},
		},
		Rels: []*ast.RelPatternElem{{
			Types: []string{"KNOWS"}, Direction: ast.Rightward,
			HasHops: true, Hops: ast.Hops{Min: 1, Max: 2, HasMax: true},
		}},
	}

	var reached []string
	err := m.MatchPattern(pat, scope.New(), false, func(sc *scope.Scope) error {
		bv, _ := sc.Get("b")
		reached = append(reached, bv.(*value.Node).Get("name").(string))
		return nil
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"Bob", "Carol"}, reached)
}

func TestMatchNodeReferenceReusesEarlierBinding(t *testing.T) {
	m := testMatcher(testGraph(t))
	sc := scope.New()
	alice := &value.Node{Label: "Person", Props: map[string]any{"id": int64(1), "name": "Alice"}}
	sc.Set("a", alice)

	pat := &ast.Pattern{
		Nodes: []*ast.NodePatternElem{{Var: "a", IsReference: true}, {Var: "b", Label: "Person"}},
		Rels:  []*ast.RelPatternElem{{Types: []string{"KNOWS"}, Direction: ast.Rightward}},
	}

	var reached []string
	err := m.MatchPattern(pat, sc, false, func(s *scope.Scope) error {
		bv, _ := s.Get("b")
		reached = append(reached, bv.(*value.Node).Get("name").(string))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Bob"}, reached)
}

func TestOptionalMatchBindsNullOnNoMatch(t *testing.T) {
	m := testMatcher(testGraph(t))
	pat := &ast.Pattern{Nodes: []*ast.NodePatternElem{{
		Var: "p", Label: "Person",
		Props: &ast.MapLiteral{Keys: []string{"name"}, Values: []ast.Expr{&ast.Literal{Value: "Nobody"}}},
	}}}

	var calls int
	err := m.MatchPattern(pat, scope.New(), true, func(sc *scope.Scope) error {
		calls++
		v, ok := sc.Get("p")
		require.True(t, ok)
		require.Nil(t, v)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestMatchExprTrueWhenPatternMatches(t *testing.T) {
	m := testMatcher(testGraph(t))
	sc := scope.New()
	alice := &value.Node{Label: "Person", Props: map[string]any{"id": int64(1), "name": "Alice"}}
	sc.Set("a", alice)

	pat := &ast.Pattern{
		Nodes: []*ast.NodePatternElem{{Var: "a", IsReference: true}, {Var: "b", Label: "Person"}},
		Rels:  []*ast.RelPatternElem{{Types: []string{"KNOWS"}, Direction: ast.Rightward}},
	}
	ok, err := m.MatchExpr(pat, sc)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestUnknownLabelErrors(t *testing.T) {
	m := testMatcher(testGraph(t))
	pat := &ast.Pattern{Nodes: []*ast.NodePatternElem{{Var: "p", Label: "Ghost"}}}
	err := m.MatchPattern(pat, scope.New(), false, func(*scope.Scope) error { return nil })
	require.Error(t, err)
}

func TestOptionalMatchOnUnknownLabelYieldsNullRow(t *testing.T) {
	m := testMatcher(testGraph(t))
	pat := &ast.Pattern{Nodes: []*ast.NodePatternElem{{Var: "x", Label: "Ghost"}}}

	var calls int
	err := m.MatchPattern(pat, scope.New(), true, func(sc *scope.Scope) error {
		calls++
		v, ok := sc.Get("x")
		require.True(t, ok)
		require.Nil(t, v)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestOptionalMatchOnUnknownRelTypeYieldsNullRow(t *testing.T) {
	m := testMatcher(testGraph(t))
	pat := &ast.Pattern{
		Nodes: []*ast.NodePatternElem{{Var: "a", Label: "Person"}, {Var: "b", Label: "Person"}},
		Rels:  []*ast.RelPatternElem{{Types: []string{"GHOST_TYPE"}, Direction: ast.Rightward}},
	}

	var calls int
	err := m.MatchPattern(pat, scope.New(), true, func(sc *scope.Scope) error {
		calls++
		v, ok := sc.Get("b")
		require.True(t, ok)
		require.Nil(t, v)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestMatchRelationshipBindsBothEndpoints(t *testing.T) {
	m := testMatcher(testGraph(t))
	pat := &ast.Pattern{
		Nodes: []*ast.NodePatternElem{{Var: "a", Label: "Person"}, {Var: "b", Label: "Person"}},
		Rels:  []*ast.RelPatternElem{{Var: "r", Types: []string{"KNOWS"}, Direction: ast.Rightward}},
	}

	var seen []*value.Rel
	err := m.MatchPattern(pat, scope.New(), false, func(sc *scope.Scope) error {
		rv, _ := sc.Get("r")
		seen = append(seen, rv.(*value.Rel))
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 2)
	for _, r := range seen {
		require.NotNil(t, r.StartNode)
		require.NotNil(t, r.EndNode)
		require.Equal(t, r.StartNode.Get("id"), r.LeftID)
		require.Equal(t, r.EndNode.Get("id"), r.RightID)
	}
}

func TestMatchLeftwardRelationshipBindsBothEndpoints(t *testing.T) {
	m := testMatcher(testGraph(t))
	pat := &ast.Pattern{
		Nodes: []*ast.NodePatternElem{
			{Var: "b", Label: "Person", Props: &ast.MapLiteral{Keys: []string{"name"}, Values: []ast.Expr{&ast.Literal{Value: "Bob"}}}},
			{Var: "a", Label: "Person"},
		},
		Rels: []*ast.RelPatternElem{{Var: "r", Types: []string{"KNOWS"}, Direction: ast.Leftward}},
	}

	var seen *value.Rel
	err := m.MatchPattern(pat, scope.New(), false, func(sc *scope.Scope) error {
		rv, _ := sc.Get("r")
		seen = rv.(*value.Rel)
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, seen)
	require.NotNil(t, seen.StartNode)
	require.NotNil(t, seen.EndNode)
	require.Equal(t, "Alice", seen.StartNode.Get("name"))
	require.Equal(t, "Bob", seen.EndNode.Get("name"))
}
