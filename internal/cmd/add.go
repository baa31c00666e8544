package cmd

import (
	"fmt"
	"strings"

	"github.com/Iron-Ham/logscope/internal/logentry"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add <message...>",
	Short: "Store one log entry",
	Long: `Store one log entry in the configured backend. Useful from shell
scripts and for trying out filters.

Example:
  logscope add --level error --tag db --meta query=users "connection reset"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

var (
	addLevel     string
	addTag       string
	addMeta      []string
	addThrowable string
)

func init() {
	rootCmd.AddCommand(addCmd)

	addCmd.Flags().StringVarP(&addLevel, "level", "l", "info", "Entry level (verbose, debug, info, warning, error, fatal)")
	addCmd.Flags().StringVarP(&addTag, "tag", "t", "cli", "Entry tag")
	addCmd.Flags().StringArrayVar(&addMeta, "meta", nil, "Metadata key=value (repeatable)")
	addCmd.Flags().StringVar(&addThrowable, "throwable", "", "Stack trace or error detail")
}

func runAdd(cmd *cobra.Command, args []string) error {
	level, err := logentry.ParseLevel(addLevel)
	if err != nil {
		return err
	}
	md, err := parseKeyValues(addMeta)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	entry := logentry.NewLogEntry(level, addTag, strings.Join(args, " "),
		logentry.WithMetadata(md),
		logentry.WithThrowable(addThrowable),
	)
	if err := a.logs.Add(ctx, entry); err != nil {
		return fmt.Errorf("failed to store entry: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), entry.ID)
	return nil
}
