package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/Iron-Ham/logscope/internal/logentry"
	"github.com/Iron-Ham/logscope/internal/storage"
	"github.com/spf13/cobra"
)

// followScanLimit bounds how many matching entries each refresh inspects.
const followScanLimit = 1000

var followCmd = &cobra.Command{
	Use:   "follow",
	Short: "Print new entries as they are stored",
	Long: `Print the most recent matching entries, then keep printing new ones as
other processes store them, until interrupted.

The file backend is watched for changes; database backends are polled
every second. The memory backend cannot be followed from another process.`,
	RunE: runFollow,
}

var (
	followFilters filterFlags
	followTail    int
	followFormat  string
)

func init() {
	rootCmd.AddCommand(followCmd)

	followFilters.register(followCmd)
	followCmd.Flags().IntVar(&followTail, "tail", 10, "Number of existing entries to print first")
	followCmd.Flags().StringVarP(&followFormat, "format", "f", formatPretty, "Output format: pretty, jsonl, text")
}

func runFollow(cmd *cobra.Command, args []string) error {
	if followTail < 0 {
		return fmt.Errorf("--tail must be non-negative, got %d", followTail)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	changes, err := a.changes(ctx, followFilters.network)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	now := time.Now()

	if followFilters.network {
		filter, err := followFilters.networkFilter(now)
		if err != nil {
			return err
		}
		return followStore(ctx, a.network, filter, followTail, logentry.NetworkCodec{}.EntryID, changes,
			func(entries []logentry.NetworkLogEntry) error { return printNetwork(out, entries, followFormat) })
	}

	filter, err := followFilters.logFilter(now)
	if err != nil {
		return err
	}
	return followStore(ctx, a.logs, filter, followTail, logentry.LogCodec{}.EntryID, changes,
		func(entries []logentry.LogEntry) error { return printLogs(out, entries, followFormat) })
}

// reloader is implemented by stores whose view of the backing files can go
// stale while another process writes.
type reloader interface {
	Reload(ctx context.Context) error
}

// followStore emits the newest tail entries, then on every signal from
// changes emits the entries stored since the last one emitted, oldest first.
// It returns nil when ctx is done or changes is closed.
func followStore[E any, F storage.Matcher[E]](
	ctx context.Context,
	store storage.Store[E, F],
	filter F,
	tail int,
	id func(E) string,
	changes <-chan struct{},
	emit func([]E) error,
) error {
	limit := tail
	if tail == 0 {
		limit = 1 // only to learn where to resume
	}
	entries, err := store.Query(ctx, filter, limit)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	var lastID string
	if len(entries) > 0 {
		lastID = id(entries[0])
	}
	if tail > 0 {
		slices.Reverse(entries)
		if err := emit(entries); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
		}

		if r, ok := store.(reloader); ok {
			if err := r.Reload(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("reload failed: %w", err)
			}
		}

		entries, err := store.Query(ctx, filter, followScanLimit)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("query failed: %w", err)
		}

		fresh := newerThan(entries, id, lastID)
		if len(fresh) == 0 {
			continue
		}
		lastID = id(fresh[0])
		slices.Reverse(fresh)
		if err := emit(fresh); err != nil {
			return err
		}
	}
}

// newerThan returns the prefix of the newest-first entries that precedes
// lastID. All entries are new when lastID is gone, e.g. after a clear.
func newerThan[E any](entries []E, id func(E) string, lastID string) []E {
	for i, e := range entries {
		if id(e) == lastID {
			return entries[:i]
		}
	}
	return entries
}
