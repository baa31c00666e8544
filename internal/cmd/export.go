package cmd

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/Iron-Ham/logscope/internal/export"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Write matching entries to a file",
	Long: `Write matching entries, oldest first, to a file. The format follows the
extension (.json, .jsonl, .txt, .csv, .yaml) unless --format is given, and
a trailing .zst compresses the output with zstd. Use "-" for stdout.

Examples:
  logscope export errors.csv --min-level error
  logscope export --network traffic.jsonl.zst --since 24h`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

var (
	exportFilters filterFlags
	exportLimit   int
	exportFormat  string
)

// exportFs is the filesystem export writes to.
var exportFs = afero.NewOsFs()

func init() {
	rootCmd.AddCommand(exportCmd)

	exportFilters.register(exportCmd)
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "Maximum number of entries, newest kept (0 = all)")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "", "Output format, overriding the extension: json, jsonl, text, csv, yaml")
}

func runExport(cmd *cobra.Command, args []string) error {
	path := args[0]
	format := export.FormatFromPath(path)
	if exportFormat != "" {
		f, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}
		format = f
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	var (
		count int
		write func(io.Writer) error
	)
	now := time.Now()
	if exportFilters.network {
		filter, err := exportFilters.networkFilter(now)
		if err != nil {
			return err
		}
		entries, err := a.network.Query(ctx, filter, exportLimit)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		slices.Reverse(entries)
		count = len(entries)
		write = func(w io.Writer) error { return export.Network(w, entries, format) }
	} else {
		filter, err := exportFilters.logFilter(now)
		if err != nil {
			return err
		}
		entries, err := a.logs.Query(ctx, filter, exportLimit)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		slices.Reverse(entries)
		count = len(entries)
		write = func(w io.Writer) error { return export.Logs(w, entries, format) }
	}

	if path == "-" {
		return write(cmd.OutOrStdout())
	}
	if err := export.ToFile(exportFs, path, write); err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d entries to %s (%s)\n", count, path, format)
	return nil
}
