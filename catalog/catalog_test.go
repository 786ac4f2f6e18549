package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowquery-dev/flowquery/ast"
)

func fixedRunner(rows []map[string]any, calls *int) Runner {
	return func(stmt *ast.Chain) ([]map[string]any, error) {
		if calls != nil {
			*calls++
		}
		return rows, nil
	}
}

func TestRegisterAndLookupNode(t *testing.T) {
	c := New(nil)
	stmt := &ast.Chain{}
	require.NoError(t, c.RegisterNode("Person", stmt))

	_, err := c.NodeStoreFor("Missing")
	require.Error(t, err)

	s, err := c.NodeStoreFor("Person")
	require.NoError(t, err)
	require.Equal(t, "Person", s.Label())
}

func TestRegisterNodeRejectsDuplicateLabel(t *testing.T) {
	c := New(nil)
	stmt := &ast.Chain{}
	require.NoError(t, c.RegisterNode("Person", stmt))
	err := c.RegisterNode("Person", stmt)
	require.Error(t, err)
}

func TestDeleteNodeRemovesDefinition(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.RegisterNode("Person", &ast.Chain{}))
	require.NoError(t, c.DeleteNode("Person"))
	_, err := c.NodeStoreFor("Person")
	require.Error(t, err)

	err = c.DeleteNode("Person")
	require.Error(t, err)
}

func TestRegisterAndDeleteRel(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.RegisterRel("KNOWS", "Person", "Person", &ast.Chain{}))
	s, err := c.RelStoreFor("KNOWS")
	require.NoError(t, err)
	require.Equal(t, "KNOWS", s.Type())
	require.Equal(t, "Person", s.SourceLabel())

	require.NoError(t, c.DeleteRel("KNOWS"))
	_, err = c.RelStoreFor("KNOWS")
	require.Error(t, err)
}

func TestNodeStoreDataCachesAfterFirstRun(t *testing.T) {
	c := New(nil)
	calls := 0
	c.SetRunner(fixedRunner([]map[string]any{{"id": int64(1), "name": "Alice"}}, &calls))
	require.NoError(t, c.RegisterNode("Person", &ast.Chain{}))
	s, _ := c.NodeStoreFor("Person")

	rows1, err := s.Data(c)
	require.NoError(t, err)
	rows2, err := s.Data(c)
	require.NoError(t, err)
	require.Equal(t, rows1, rows2)
	require.Equal(t, 1, calls)
}

func TestNodeStoreByIDBuildsIndexOnce(t *testing.T) {
	c := New(nil)
	c.SetRunner(fixedRunner([]map[string]any{
		{"id": int64(1), "name": "Alice"},
		{"id": int64(2), "name": "Bob"},
	}, nil))
	require.NoError(t, c.RegisterNode("Person", &ast.Chain{}))
	s, _ := c.NodeStoreFor("Person")

	positions, err := s.ByID(c, int64(2))
	require.NoError(t, err)
	require.Equal(t, []int{1}, positions)

	// an int64 and a float64 id denoting the same number must hit the same
	// index bucket.
	positions, err = s.ByID(c, float64(1))
	require.NoError(t, err)
	require.Equal(t, []int{0}, positions)

	positions, err = s.ByID(c, int64(99))
	require.NoError(t, err)
	require.Empty(t, positions)
}

func TestRelationshipStoreByLeftAndRightID(t *testing.T) {
	c := New(nil)
	c.SetRunner(fixedRunner([]map[string]any{
		{"left_id": int64(1), "right_id": int64(2), "since": int64(2020)},
		{"left_id": int64(1), "right_id": int64(3), "since": int64(2021)},
	}, nil))
	require.NoError(t, c.RegisterRel("KNOWS", "Person", "Person", &ast.Chain{}))
	s, _ := c.RelStoreFor("KNOWS")

	left, err := s.ByLeftID(c, int64(1))
	require.NoError(t, err)
	require.Equal(t, []int{0, 1}, left)

	right, err := s.ByRightID(c, int64(3))
	require.NoError(t, err)
	require.Equal(t, []int{1}, right)
}

func TestCatalogRunWithoutRunnerErrors(t *testing.T) {
	c := New(nil)
	_, err := c.Run(&ast.Chain{})
	require.Error(t, err)
}

func TestSchemaReportsLabelsAndTypes(t *testing.T) {
	c := New(nil)
	nodeStmt := &ast.Chain{}
	relStmt := &ast.Chain{}
	c.SetRunner(func(stmt *ast.Chain) ([]map[string]any, error) {
		if stmt == nodeStmt {
			return []map[string]any{{"id": int64(1), "name": "Alice"}}, nil
		}
		return []map[string]any{{"left_id": int64(1), "right_id": int64(2), "since": int64(2020)}}, nil
	})
	require.NoError(t, c.RegisterNode("Person", nodeStmt))
	require.NoError(t, c.RegisterRel("KNOWS", "Person", "Person", relStmt))

	report, err := c.Schema()
	require.NoError(t, err)
	require.Len(t, report.Nodes, 1)
	require.Equal(t, "Person", report.Nodes[0].Label)
	require.Equal(t, []string{"name"}, report.Nodes[0].Properties) // "id" is reserved, filtered out

	require.Len(t, report.Rels, 1)
	require.Equal(t, "KNOWS", report.Rels[0].Type)
	require.Equal(t, []string{"since"}, report.Rels[0].Properties) // left_id/right_id/_type filtered out
}
