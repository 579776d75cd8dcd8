package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/JonMunkholm/cpleditor/internal/core"
	"github.com/spf13/cobra"
)

type inspectOptions struct {
	filters  []string
	sorts    []string
	page     int
	pageSize int
	all      bool
	json     bool
}

func newInspectCommand(global *globalOptions) *cobra.Command {
	opts := &inspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show the players in a commentary list",
		Long: `Show the players in a commentary list, optionally filtered, sorted and paged.

Filters match a case-insensitive substring and are combined with AND:
  cplist inspect list.bin --filter playerName=silva --filter commentaryId=12

Sort keys apply in the order given:
  cplist inspect list.bin --sort playerName --sort commentaryId:desc`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, global, opts, args[0])
		},
	}

	cmd.Flags().StringArrayVarP(&opts.filters, "filter", "f", nil, "Filter as field=term (repeatable)")
	cmd.Flags().StringArrayVarP(&opts.sorts, "sort", "s", nil, "Sort key as field[:asc|desc] (repeatable)")
	cmd.Flags().IntVar(&opts.page, "page", 1, "Page number, starting at 1")
	cmd.Flags().IntVar(&opts.pageSize, "page-size", core.DefaultPageSize, "Rows per page")
	cmd.Flags().BoolVar(&opts.all, "all", false, "Print every matching row without paging")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the view as JSON")

	return cmd
}

func runInspect(cmd *cobra.Command, global *globalOptions, opts *inspectOptions, path string) error {
	sess, err := openSession(cmd.Context(), path, global.preset, nil)
	if err != nil {
		return err
	}

	var filters core.FilterSpec
	for _, raw := range opts.filters {
		field, term, err := parseFilter(raw)
		if err != nil {
			return err
		}
		filters = filters.With(field, term)
	}
	if err := sess.SetFilters(filters); err != nil {
		return err
	}

	var sorting core.SortSpec
	for _, raw := range opts.sorts {
		srt, err := parseSort(raw)
		if err != nil {
			return err
		}
		sorting = append(sorting, srt)
	}
	if err := sess.SetSorting(sorting); err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if opts.all {
		records := sess.Projection()
		if opts.json {
			return writeJSON(out, records)
		}
		fmt.Fprintln(out, recordTable(records, shouldColorize(out)))
		fmt.Fprintf(out, "%d of %d records\n", len(records), sess.State().Records)
		return nil
	}

	if err := sess.SetPagination(core.PaginationState{PageIndex: opts.page - 1, PageSize: opts.pageSize}); err != nil {
		return err
	}
	view := sess.View()
	if opts.json {
		return writeJSON(out, view)
	}

	fmt.Fprintln(out, recordTable(view.Page.Items, shouldColorize(out)))
	pageCount := max(view.Page.PageCount, 1)
	fmt.Fprintf(out, "Page %d of %d (%d matching, %d total)\n",
		view.Page.PageIndex+1, pageCount, view.Page.Total, view.State.Records)
	return nil
}

func recordTable(records []core.CommentaryRecord, colorize bool) string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{idCell(rec), rec.PlayerName, rec.CommentaryName})
	}
	return renderTable(
		[]string{"Commentary ID", "Player", "Commentary name"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft},
		colorize,
	)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
