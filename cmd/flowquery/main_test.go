package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func newTestRoot() *cobra.Command {
	root := &cobra.Command{Use: "flowquery"}
	root.AddCommand(newRunCmd(), newSchemaCmd(), newFunctionsCmd())
	return root
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	root := newTestRoot()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	require.NoError(t, root.Execute())
	return buf.String()
}

func TestRunCmdPrintsRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "q.fq")
	require.NoError(t, os.WriteFile(path, []byte(`WITH 1 AS x RETURN x`), 0o600))

	out := execute(t, "run", path)
	require.Contains(t, out, "x")
	require.Contains(t, out, "1 row(s)")
}

func TestRunCmdMissingFileErrors(t *testing.T) {
	root := newTestRoot()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"run", filepath.Join(t.TempDir(), "missing.fq")})
	require.Error(t, root.Execute())
}

func TestSchemaCmdPrintsEmptyCatalogHeaders(t *testing.T) {
	out := execute(t, "schema")
	require.Contains(t, out, "LABEL")
	require.Contains(t, out, "PROPERTIES")
	require.Contains(t, out, "TYPE")
}

func TestFunctionsCmdListsBuiltins(t *testing.T) {
	out := execute(t, "functions")
	require.Contains(t, out, "NAME")
	require.Contains(t, out, "CATEGORY")
}

func TestPrintRowsHandlesEmptyResult(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "q.fq")
	require.NoError(t, os.WriteFile(path, []byte(`UNWIND [] AS x RETURN x`), 0o600))

	out := execute(t, "run", path)
	require.Contains(t, out, "no rows")
}
