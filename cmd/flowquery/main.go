// Command flowquery is a thin CLI front end for the embeddable package
// flowquery: it loads a query from a file, runs it against a fresh Runner,
// and renders the result. It also exposes the engine's introspection
// surface (schema, registered functions) for ad-hoc exploration, mirroring
// the way the teacher's own example programs drive sqle.Engine directly
// from a small main package rather than through a generated client.
package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/flowquery-dev/flowquery"
)

var (
	bold = color.New(color.Bold).SprintFunc()
	dim  = color.New(color.Faint).SprintFunc()
	red  = color.New(color.FgRed).SprintFunc()
)

func main() {
	root := &cobra.Command{
		Use:   "flowquery",
		Short: "Run and inspect FlowQuery graph queries",
	}

	root.AddCommand(newRunCmd(), newSchemaCmd(), newFunctionsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red("error:"), err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var maxRows int
	var timeoutMS int

	cmd := &cobra.Command{
		Use:   "run <file.fq>",
		Short: "Execute a query file and print its result rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			r := flowquery.New(&flowquery.Config{
				MaxRows:     maxRows,
				HTTPTimeout: time.Duration(timeoutMS) * time.Millisecond,
			})

			rows, err := r.Run(string(src))
			if err != nil {
				return err
			}
			printRows(cmd, rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxRows, "max-rows", 0, "cap the number of rows printed (0 = unbounded)")
	cmd.Flags().IntVar(&timeoutMS, "http-timeout-ms", 0, "timeout in milliseconds for LOAD JSON requests (0 = no timeout)")
	return cmd
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the labels and relationship types known to a fresh catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			r := flowquery.New(nil)
			report, err := r.Schema()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, bold("LABEL")+"\t"+bold("PROPERTIES"))
			for _, n := range report.Nodes {
				fmt.Fprintf(w, "%s\t%v\n", n.Label, n.Properties)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, bold("TYPE")+"\t"+bold("FROM")+"\t"+bold("TO")+"\t"+bold("PROPERTIES"))
			for _, t := range report.Rels {
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", t.Type, t.SourceLabel, t.TargetLabel, t.Properties)
			}
			return w.Flush()
		},
	}
}

func newFunctionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "functions",
		Short: "List every registered function and its signature",
		RunE: func(cmd *cobra.Command, args []string) error {
			r := flowquery.New(nil)
			descs := r.ListFunctions()
			sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, bold("NAME")+"\t"+bold("CATEGORY")+"\t"+bold("ARITY")+"\t"+bold("RETURNS"))
			for _, d := range descs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Name, d.Category, d.Arity, dim(d.Output))
			}
			return w.Flush()
		},
	}
}

func printRows(cmd *cobra.Command, rows []map[string]any) {
	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, dim("(no rows)"))
		return
	}
	cols := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	w := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	header := ""
	for i, c := range cols {
		if i > 0 {
			header += "\t"
		}
		header += bold(c)
	}
	fmt.Fprintln(w, header)
	for _, row := range rows {
		for i, c := range cols {
			if i > 0 {
				fmt.Fprint(w, "\t")
			}
			fmt.Fprintf(w, "%v", row[c])
		}
		fmt.Fprintln(w)
	}
	w.Flush()
	fmt.Fprintf(out, dim("(%d row(s))\n"), len(rows))
}
