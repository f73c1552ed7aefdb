package main

import (
	"strings"

	"github.com/Sternrassler/mycase-client/pkg/client"
	"github.com/spf13/cobra"
)

func newGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <path> [key=value...]",
		Short: "Perform a single GET request",
		Long: `Perform one GET request against the API and print the response body.
No pagination is applied.`,
		Example: `  mycase get /firm
  mycase get /cases status=open per_page=10`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, err := parseKeyValues(args[1:])
			if err != nil {
				return err
			}

			a, err := opts.load()
			if err != nil {
				return err
			}
			defer a.Close()

			path := args[0]
			if !strings.HasPrefix(path, "/") {
				path = "/" + path
			}

			resp, err := a.client.Get(cmd.Context(), path, client.NewParams(kv...))
			if err != nil {
				return err
			}
			return writeRaw(cmd.OutOrStdout(), resp.Body)
		},
	}
}
