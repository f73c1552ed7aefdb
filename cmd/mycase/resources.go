package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/Sternrassler/mycase-client/pkg/mycase"
	"github.com/spf13/cobra"
)

func newResourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "List the known API resources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RESOURCE\tPATH\tOPERATIONS")
			for _, r := range mycase.Resources() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", r, r.Path(), operations(r))
			}
			return w.Flush()
		},
	}
}

func operations(r mycase.Resource) string {
	var ops []string
	if r.Listable() {
		ops = append(ops, "list")
	}
	if r.Gettable() {
		ops = append(ops, "get")
	}
	if r.Creatable() {
		ops = append(ops, "create")
	}
	if r.Updatable() {
		ops = append(ops, "update")
	}
	return strings.Join(ops, ",")
}
