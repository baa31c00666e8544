package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/logscope/internal/errors"
	"github.com/Iron-Ham/logscope/internal/logentry"
	"github.com/Iron-Ham/logscope/internal/logging"
	"github.com/Iron-Ham/logscope/internal/storage"
	"github.com/Iron-Ham/logscope/internal/viewer"
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Browse entries in an interactive terminal viewer",
	Long: `Open a full-screen viewer on the matching entries. New entries appear at
the top as they are stored.

Keys: up/down/pgup/pgdown scroll, g/G jump, c clears the store (confirm
with y), q quits.`,
	RunE: runView,
}

var (
	viewFilters filterFlags
	viewLimit   int
)

func init() {
	rootCmd.AddCommand(viewCmd)

	viewFilters.register(viewCmd)
	viewCmd.Flags().IntVar(&viewLimit, "limit", 0, "Entries kept on screen (default viewer.refresh_limit)")
}

func runView(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	limit := viewLimit
	if limit <= 0 {
		limit = a.cfg.Viewer.RefreshLimit
	}
	now := time.Now()

	var model tea.Model
	if viewFilters.network {
		filter, err := viewFilters.networkFilter(now)
		if err != nil {
			return err
		}
		store := a.network
		if a.cfg.Storage.Backend != errors.BackendMemory {
			changes, err := a.changes(ctx, true)
			if err != nil {
				return err
			}
			var cache storage.NetworkLogStorage = storage.NewInMemoryNetworkLogStorage(storage.WithCapacity(limit))
			store = startMirror(ctx, changes, a.network, cache, filter, limit, logentry.NetworkCodec{}.EntryID, a.log)
		}
		model = viewer.NewNetworkViewer(ctx, store, filter, limit)
	} else {
		filter, err := viewFilters.logFilter(now)
		if err != nil {
			return err
		}
		store := a.logs
		if a.cfg.Storage.Backend != errors.BackendMemory {
			changes, err := a.changes(ctx, false)
			if err != nil {
				return err
			}
			var cache storage.LogStorage = storage.NewInMemoryLogStorage(storage.WithCapacity(limit))
			store = startMirror(ctx, changes, a.logs, cache, filter, limit, logentry.LogCodec{}.EntryID, a.log)
		}
		model = viewer.NewLogViewer(ctx, store, filter, limit)
	}

	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("viewer failed: %w", err)
	}
	return nil
}

// mirror serves reads and subscriptions from an in-memory cache kept up to
// date from source. Clear empties both.
type mirror[E any, F storage.Matcher[E]] struct {
	storage.Store[E, F]
	source storage.Store[E, F]
}

func (m mirror[E, F]) Clear(ctx context.Context) error {
	if err := m.source.Clear(ctx); err != nil {
		return err
	}
	return m.Store.Clear(ctx)
}

// startMirror copies the newest limit matching entries of source into cache
// and keeps copying new ones on every signal from changes, so that a viewer
// sees entries written by other processes.
func startMirror[E any, F storage.Matcher[E]](
	ctx context.Context,
	changes <-chan struct{},
	source, cache storage.Store[E, F],
	filter F,
	limit int,
	id func(E) string,
	log *logging.Logger,
) storage.Store[E, F] {
	go func() {
		err := followStore(ctx, source, filter, limit, id, changes, func(entries []E) error {
			return cache.AddAll(ctx, entries)
		})
		if err != nil && ctx.Err() == nil {
			log.Warn("viewer refresh stopped", "error", err)
		}
	}()
	return mirror[E, F]{Store: cache, source: source}
}
