package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every stored entry",
	Long: `Remove every stored log entry, or every HTTP exchange with --network.
Asks for confirmation unless --yes is given.`,
	RunE: runClear,
}

var (
	clearNetwork bool
	clearYes     bool
)

func init() {
	rootCmd.AddCommand(clearCmd)

	clearCmd.Flags().BoolVarP(&clearNetwork, "network", "n", false, "Clear HTTP exchanges instead of log entries")
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "Skip the confirmation prompt")
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	what, count, clear := "log entries", a.logs.Count, a.logs.Clear
	if clearNetwork {
		what, count, clear = "network entries", a.network.Count, a.network.Clear
	}

	n, err := count(ctx)
	if err != nil {
		return fmt.Errorf("count failed: %w", err)
	}
	out := cmd.OutOrStdout()
	if n == 0 {
		fmt.Fprintf(out, "No %s to clear.\n", what)
		return nil
	}

	if !clearYes {
		fmt.Fprintf(out, "Remove %d %s? [y/N] ", n, what)
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	if err := clear(ctx); err != nil {
		return fmt.Errorf("clear failed: %w", err)
	}
	fmt.Fprintf(out, "Removed %d %s.\n", n, what)
	return nil
}
