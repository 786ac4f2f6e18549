package exec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowquery-dev/flowquery/catalog"
	"github.com/flowquery-dev/flowquery/function"
	"github.com/flowquery-dev/flowquery/parse"

	_ "github.com/flowquery-dev/flowquery/function/builtin"
)

// newTestExecutor wires a fresh Catalog/Executor pair and registers the
// Person label and KNOWS relationship used across these tests, both backed
// by UNWIND-over-literal virtual definitions rather than any real store.
func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	cat := catalog.New(nil)
	ex := New(cat, function.Default, nil)

	mustRun(t, ex, `CREATE VIRTUAL NODE :Person AS
		UNWIND [{id: 1, name: "Alice", age: 30}, {id: 2, name: "Bob", age: 25}, {id: 3, name: "Carol", age: 35}] AS p
		RETURN p.id AS id, p.name AS name, p.age AS age`)

	mustRun(t, ex, `CREATE VIRTUAL RELATIONSHIP :KNOWS FROM :Person TO :Person AS
		UNWIND [{left_id: 1, right_id: 2, since: 2020}, {left_id: 2, right_id: 3, since: 2021}] AS r
		RETURN r.left_id AS left_id, r.right_id AS right_id, r.since AS since`)

	return ex
}

func mustRun(t *testing.T, ex *Executor, query string) []map[string]any {
	t.Helper()
	chain, err := parse.Parse(query)
	require.NoError(t, err)
	rows, err := ex.Run(chain)
	require.NoError(t, err)
	return rows
}

func TestWithAndReturnLiteralProjection(t *testing.T) {
	ex := newTestExecutor(t)
	rows := mustRun(t, ex, `WITH 1 AS x, toUpper("a") AS y RETURN x, y`)
	require.Equal(t, []map[string]any{{"x": int64(1), "y": "A"}}, rows)
}

func TestUnwindFansOutOneRowPerItem(t *testing.T) {
	ex := newTestExecutor(t)
	rows := mustRun(t, ex, `UNWIND [1, 2, 3] AS n RETURN n`)
	require.Len(t, rows, 3)
	require.Equal(t, int64(1), rows[0]["n"])
	require.Equal(t, int64(2), rows[1]["n"])
	require.Equal(t, int64(3), rows[2]["n"])
}

func TestMatchReturnsAllVirtualNodes(t *testing.T) {
	ex := newTestExecutor(t)
	rows := mustRun(t, ex, `MATCH (p:Person) RETURN p.name AS name ORDER BY p.name`)
	require.Equal(t, []map[string]any{{"name": "Alice"}, {"name": "Bob"}, {"name": "Carol"}}, rows)
}

func TestMatchWithWhereFilters(t *testing.T) {
	ex := newTestExecutor(t)
	rows := mustRun(t, ex, `MATCH (p:Person) WHERE p.age > 28 RETURN p.name AS name ORDER BY p.name`)
	require.Equal(t, []map[string]any{{"name": "Alice"}, {"name": "Carol"}}, rows)
}

func TestMatchRelationshipTraversal(t *testing.T) {
	ex := newTestExecutor(t)
	rows := mustRun(t, ex, `MATCH (a:Person)-[:KNOWS]->(b:Person) RETURN a.name AS a, b.name AS b ORDER BY a.name`)
	require.Equal(t, []map[string]any{
		{"a": "Alice", "b": "Bob"},
		{"a": "Bob", "b": "Carol"},
	}, rows)
}

func TestOptionalMatchKeepsUnmatchedRows(t *testing.T) {
	ex := newTestExecutor(t)
	rows := mustRun(t, ex, `MATCH (p:Person) OPTIONAL MATCH (p)-[:KNOWS]->(friend:Person) RETURN p.name AS name, friend AS friend ORDER BY p.name`)
	require.Len(t, rows, 3)
	require.NotNil(t, rows[0]["friend"]) // Alice -> Bob
	require.NotNil(t, rows[1]["friend"]) // Bob -> Carol
	require.Nil(t, rows[2]["friend"])    // Carol has no outgoing KNOWS
}

func TestOrderByLimitSkip(t *testing.T) {
	ex := newTestExecutor(t)
	rows := mustRun(t, ex, `MATCH (p:Person) RETURN p.name AS name ORDER BY p.name DESC LIMIT 1 SKIP 1`)
	require.Equal(t, []map[string]any{{"name": "Bob"}}, rows)
}

func TestAggregateCount(t *testing.T) {
	ex := newTestExecutor(t)
	rows := mustRun(t, ex, `MATCH (p:Person) RETURN count(p) AS n`)
	require.Equal(t, []map[string]any{{"n": int64(3)}}, rows)
}

func TestDistinctDedupesRows(t *testing.T) {
	ex := newTestExecutor(t)
	rows := mustRun(t, ex, `UNWIND [1, 1, 2] AS n RETURN DISTINCT n ORDER BY n`)
	require.Equal(t, []map[string]any{{"n": int64(1)}, {"n": int64(2)}}, rows)
}

func TestUnionDeduplicatesAcrossBranches(t *testing.T) {
	ex := newTestExecutor(t)
	rows := mustRun(t, ex, `WITH 1 AS x RETURN x UNION WITH 1 AS x RETURN x UNION WITH 2 AS x RETURN x`)
	require.ElementsMatch(t, []map[string]any{{"x": int64(1)}, {"x": int64(2)}}, rows)
}

func TestUnionAllKeepsDuplicates(t *testing.T) {
	ex := newTestExecutor(t)
	rows := mustRun(t, ex, `WITH 1 AS x RETURN x UNION ALL WITH 1 AS x RETURN x`)
	require.Len(t, rows, 2)
}

func TestUnionMismatchedColumnsErrors(t *testing.T) {
	ex := newTestExecutor(t)
	chain, err := parse.Parse(`WITH 1 AS x RETURN x UNION WITH 1 AS y RETURN y`)
	require.NoError(t, err)
	_, err = ex.Run(chain)
	require.Error(t, err)
}

func TestCreateThenDeleteVirtualNode(t *testing.T) {
	ex := newTestExecutor(t)
	mustRun(t, ex, `CREATE VIRTUAL NODE :Empty AS UNWIND [] AS e RETURN e.id AS id`)

	rows := mustRun(t, ex, `MATCH (e:Empty) RETURN e`)
	require.Empty(t, rows)

	mustRun(t, ex, `DELETE VIRTUAL NODE :Empty`)
	chain, err := parse.Parse(`MATCH (e:Empty) RETURN e`)
	require.NoError(t, err)
	_, err = ex.Run(chain)
	require.Error(t, err)
}

func TestWithThenMatchChainsScopes(t *testing.T) {
	ex := newTestExecutor(t)
	rows := mustRun(t, ex, `WITH "Alice" AS target MATCH (p:Person) WHERE p.name = target RETURN p.name AS name`)
	require.Equal(t, []map[string]any{{"name": "Alice"}}, rows)
}
