package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of stored entries",
	RunE:  runCount,
}

var countNetwork bool

func init() {
	rootCmd.AddCommand(countCmd)

	countCmd.Flags().BoolVarP(&countNetwork, "network", "n", false, "Count HTTP exchanges instead of log entries")
}

func runCount(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	var n int
	if countNetwork {
		n, err = a.network.Count(ctx)
	} else {
		n, err = a.logs.Count(ctx)
	}
	if err != nil {
		return fmt.Errorf("count failed: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), n)
	return nil
}
