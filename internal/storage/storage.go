package storage

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/logscope/internal/errors"
	"github.com/Iron-Ham/logscope/internal/logentry"
)

// Matcher is satisfied by filters: it decides whether one entry is selected.
type Matcher[E any] interface {
	Matches(entry E) bool
}

// Store is the contract shared by every backend. Implementations are safe
// for concurrent use.
//
// Query returns matching entries newest first; limit <= 0 means unlimited.
// Observe returns a channel of entries added after the call that match the
// filter; it is closed when ctx is done or the store is closed, and history
// is never replayed. AddAll is a loop of Add and stops at the first error.
// After Close every other operation returns errors.ErrStoreClosed.
type Store[E any, F Matcher[E]] interface {
	Add(ctx context.Context, entry E) error
	AddAll(ctx context.Context, entries []E) error
	Query(ctx context.Context, filter F, limit int) ([]E, error)
	Observe(ctx context.Context, filter F) <-chan E
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
	Close() error
}

// LogStorage stores application log entries.
type LogStorage = Store[logentry.LogEntry, logentry.LogFilter]

// NetworkLogStorage stores HTTP exchange entries.
type NetworkLogStorage = Store[logentry.NetworkLogEntry, logentry.NetworkLogFilter]

// Stats is a point-in-time snapshot of a store's bookkeeping.
type Stats struct {
	Backend     string
	Name        string
	Capacity    int // 0 when the backend is bounded by files instead of entries
	Count       int
	Subscribers int
	Dropped     uint64 // observer deliveries lost to full queues
	Corrupted   uint64 // persisted records skipped as unreadable
	ActiveIndex int    // file store only
}

// checkContext rejects work whose context is already done.
func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrCanceled, err)
	}
	return nil
}

// addAll is the shared AddAll loop.
func addAll[E any](ctx context.Context, entries []E, add func(context.Context, E) error) error {
	for _, e := range entries {
		if err := add(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// takeNewest appends matching entries from newest to oldest, stopping at limit.
// at(i) returns the i-th oldest entry.
func takeNewest[E any, F Matcher[E]](n int, at func(int) E, filter F, limit int) []E {
	var out []E
	for i := n - 1; i >= 0; i-- {
		e := at(i)
		if !filter.Matches(e) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	if out == nil {
		out = []E{}
	}
	return out
}
