package cmd

import (
	"fmt"
	"io"

	"github.com/Iron-Ham/logscope/internal/errors"
	"github.com/Iron-Ham/logscope/internal/storage"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store bookkeeping",
	Long:  `Show entry counts, capacity, dropped deliveries and unreadable records for both stores.`,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Backend: %s\n", a.cfg.Storage.Backend)

	for _, s := range []any{a.logs, a.network} {
		st, ok := s.(statser)
		if !ok {
			continue
		}
		stats, err := st.Stats(ctx)
		if err != nil {
			return fmt.Errorf("stats failed: %w", err)
		}
		printStats(out, stats)
	}
	return nil
}

func printStats(w io.Writer, s storage.Stats) {
	fmt.Fprintf(w, "\n%s\n", s.Name)
	fmt.Fprintf(w, "  Entries:      %d\n", s.Count)
	if s.Capacity > 0 {
		fmt.Fprintf(w, "  Capacity:     %d\n", s.Capacity)
	}
	if s.Backend == errors.BackendFile {
		fmt.Fprintf(w, "  Active file:  %d\n", s.ActiveIndex)
	}
	fmt.Fprintf(w, "  Subscribers:  %d\n", s.Subscribers)
	fmt.Fprintf(w, "  Dropped:      %d\n", s.Dropped)
	fmt.Fprintf(w, "  Unreadable:   %d\n", s.Corrupted)
}
