package cmd

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/Iron-Ham/logscope/internal/export"
	"github.com/Iron-Ham/logscope/internal/logentry"
	"github.com/Iron-Ham/logscope/internal/viewer"
	"github.com/spf13/cobra"
)

// formatPretty renders one coloured line per entry.
const formatPretty = "pretty"

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Print stored entries matching filters",
	Long: `Print stored log entries (or HTTP exchanges with --network) that match
the given filters. Entries are printed oldest first; the newest --limit
entries are selected.

Examples:
  logscope query --min-level warning --since 1h
  logscope query --tag db --search timeout --format jsonl
  logscope query --network --failed --url /api/`,
	RunE: runQuery,
}

var (
	queryFilters     filterFlags
	queryLimit       int
	queryFormat      string
	queryNewestFirst bool
)

func init() {
	rootCmd.AddCommand(queryCmd)

	queryFilters.register(queryCmd)
	queryCmd.Flags().IntVar(&queryLimit, "limit", 100, "Maximum number of entries (0 = all)")
	queryCmd.Flags().StringVarP(&queryFormat, "format", "f", formatPretty, "Output format: pretty, json, jsonl, text, csv, yaml")
	queryCmd.Flags().BoolVar(&queryNewestFirst, "newest-first", false, "Print the newest entry first")
}

func runQuery(cmd *cobra.Command, args []string) error {
	if queryLimit < 0 {
		return fmt.Errorf("--limit must be non-negative, got %d", queryLimit)
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	out := cmd.OutOrStdout()
	now := time.Now()

	if queryFilters.network {
		filter, err := queryFilters.networkFilter(now)
		if err != nil {
			return err
		}
		entries, err := a.network.Query(ctx, filter, queryLimit)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		if !queryNewestFirst {
			slices.Reverse(entries)
		}
		return printNetwork(out, entries, queryFormat)
	}

	filter, err := queryFilters.logFilter(now)
	if err != nil {
		return err
	}
	entries, err := a.logs.Query(ctx, filter, queryLimit)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	if !queryNewestFirst {
		slices.Reverse(entries)
	}
	return printLogs(out, entries, queryFormat)
}

func printLogs(w io.Writer, entries []logentry.LogEntry, format string) error {
	if format == formatPretty {
		for _, e := range entries {
			if _, err := fmt.Fprintln(w, viewer.RenderLog(e)); err != nil {
				return err
			}
		}
		return nil
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}
	return export.Logs(w, entries, f)
}

func printNetwork(w io.Writer, entries []logentry.NetworkLogEntry, format string) error {
	if format == formatPretty {
		for _, e := range entries {
			if _, err := fmt.Fprintln(w, viewer.RenderNetwork(e)); err != nil {
				return err
			}
		}
		return nil
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}
	return export.Network(w, entries, f)
}
