package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/Sternrassler/mycase-client/pkg/mycase"
	"github.com/Sternrassler/mycase-client/pkg/pagination"
	"github.com/spf13/cobra"
)

type fetchOptions struct {
	id           int64
	status       string
	recordType   string
	archived     string
	updatedSince string
	startDate    string
	endDate      string
	caseID       int64
	contactID    int64
	invoiceID    int64
	assigneeID   int64
	userID       int64
	filters      map[string]string
	maxPages     int
	ndjson       bool
	output       string
}

func newFetchCmd(root *rootOptions) *cobra.Command {
	opts := &fetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch <resource>",
		Short: "Fetch every record of a resource",
		Long: `Fetch a resource, following pagination until the last page.
Use "mycase resources" to see the available resources.`,
		Example: `  mycase fetch cases --status open
  mycase fetch time-entries --updated-since 2024-01-01 --ndjson -o entries.ndjson
  mycase fetch contacts --id 42`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resource, err := mycase.ParseResource(args[0])
			if err != nil {
				return err
			}
			listOpts, err := opts.listOptions()
			if err != nil {
				return err
			}

			a, err := root.load()
			if err != nil {
				return err
			}
			defer a.Close()

			if opts.maxPages > 0 {
				cfg := a.pager.Config()
				cfg.MaxPages = opts.maxPages
				a.pager = pagination.NewDriver(a.client, cfg)
				a.service = mycase.NewService(a.client, a.pager)
			}

			out := cmd.OutOrStdout()
			if opts.output != "" {
				f, err := os.Create(opts.output)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer f.Close()
				out = f
			}

			ctx := cmd.Context()
			switch {
			case resource == mycase.Firm:
				firm, err := a.service.Firm(ctx)
				if err != nil {
					return err
				}
				return writeJSON(out, firm)
			case opts.id != 0:
				raw, err := a.service.Get(ctx, resource, opts.id)
				if err != nil {
					return err
				}
				return writeRaw(out, raw)
			}

			result, err := a.service.List(ctx, resource, listOpts)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Fetched %d %s in %d pages (%s)\n",
				len(result.Items), resource, result.Pages, result.Stop)

			if opts.ndjson {
				return writeNDJSON(out, result)
			}
			return writeJSON(out, result.Items)
		},
	}

	f := cmd.Flags()
	f.Int64Var(&opts.id, "id", 0, "fetch a single record by ID")
	f.StringVar(&opts.status, "status", "", "status filter")
	f.StringVar(&opts.recordType, "type", "", "type filter (e.g. client, lead)")
	f.StringVar(&opts.archived, "archived", "", "archived filter (true or false)")
	f.StringVar(&opts.updatedSince, "updated-since", "", "only records updated since this date")
	f.StringVar(&opts.startDate, "start-date", "", "start of the date range")
	f.StringVar(&opts.endDate, "end-date", "", "end of the date range")
	f.Int64Var(&opts.caseID, "case-id", 0, "case filter")
	f.Int64Var(&opts.contactID, "contact-id", 0, "contact filter")
	f.Int64Var(&opts.invoiceID, "invoice-id", 0, "invoice filter")
	f.Int64Var(&opts.assigneeID, "assignee-id", 0, "assignee filter")
	f.Int64Var(&opts.userID, "user-id", 0, "user filter")
	f.StringToStringVar(&opts.filters, "filter", nil, "additional filters (key=value)")
	f.IntVar(&opts.maxPages, "max-pages", 0, "page limit (default from config)")
	f.BoolVar(&opts.ndjson, "ndjson", false, "write one JSON record per line")
	f.StringVarP(&opts.output, "output", "o", "", "write to file instead of stdout")

	return cmd
}

func (o *fetchOptions) listOptions() (mycase.ListOptions, error) {
	opts := mycase.ListOptions{
		Status:     o.status,
		Type:       o.recordType,
		CaseID:     o.caseID,
		ContactID:  o.contactID,
		InvoiceID:  o.invoiceID,
		AssigneeID: o.assigneeID,
		UserID:     o.userID,
		Extra:      o.filters,
	}

	if o.archived != "" {
		archived, err := strconv.ParseBool(o.archived)
		if err != nil {
			return opts, fmt.Errorf("invalid --archived %q", o.archived)
		}
		opts.Archived = &archived
	}

	var err error
	if opts.UpdatedSince, err = parseDate(o.updatedSince); err != nil {
		return opts, err
	}
	if opts.StartDate, err = parseDate(o.startDate); err != nil {
		return opts, err
	}
	if opts.EndDate, err = parseDate(o.endDate); err != nil {
		return opts, err
	}
	return opts, nil
}

func writeNDJSON(w io.Writer, result *pagination.Result) error {
	bw := bufio.NewWriter(w)
	var line bytes.Buffer
	for i, item := range result.Items {
		line.Reset()
		if err := json.Compact(&line, item); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
		line.WriteByte('\n')
		if _, err := bw.Write(line.Bytes()); err != nil {
			return err
		}
	}
	return bw.Flush()
}
