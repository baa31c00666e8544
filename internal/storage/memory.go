package storage

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Iron-Ham/logscope/internal/broadcast"
	"github.com/Iron-Ham/logscope/internal/errors"
	"github.com/Iron-Ham/logscope/internal/event"
	"github.com/Iron-Ham/logscope/internal/logentry"
)

// Memory is a bounded in-memory store. Once full, each Add evicts the oldest
// entry. Nothing survives the process.
type Memory[E any, F Matcher[E]] struct {
	cfg config
	hub *broadcast.Hub[E]

	mu   sync.Mutex
	ring []E
	head int // index of the oldest entry
	size int

	// pubMu is taken before mu is released on Add so observers see entries
	// in insertion order.
	pubMu sync.Mutex

	count  atomic.Int64
	closed atomic.Bool
}

// NewInMemoryLogStorage creates a log store holding DefaultLogCapacity
// entries unless WithCapacity is given.
func NewInMemoryLogStorage(opts ...Option) *Memory[logentry.LogEntry, logentry.LogFilter] {
	return newMemory[logentry.LogEntry, logentry.LogFilter](LogStoreName, DefaultLogCapacity, opts)
}

// NewInMemoryNetworkLogStorage creates a network store holding
// DefaultNetworkCapacity entries unless WithCapacity is given.
func NewInMemoryNetworkLogStorage(opts ...Option) *Memory[logentry.NetworkLogEntry, logentry.NetworkLogFilter] {
	return newMemory[logentry.NetworkLogEntry, logentry.NetworkLogFilter](NetworkStoreName, DefaultNetworkCapacity, opts)
}

func newMemory[E any, F Matcher[E]](name string, capacity int, opts []Option) *Memory[E, F] {
	m := &Memory[E, F]{cfg: newConfig(name, capacity, opts)}
	m.cfg.logger = m.cfg.logger.WithStore(errors.BackendMemory, name)
	m.ring = make([]E, m.cfg.capacity)
	m.hub = newHub[E](&m.cfg)
	return m
}

// Capacity returns the maximum number of retained entries.
func (m *Memory[E, F]) Capacity() int {
	return len(m.ring)
}

// Add appends entry, evicting the oldest entry when the store is full.
func (m *Memory[E, F]) Add(ctx context.Context, entry E) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed.Load() {
		m.mu.Unlock()
		return errors.ErrStoreClosed
	}

	capacity := len(m.ring)
	if m.size == capacity {
		m.ring[m.head] = entry
		m.head = (m.head + 1) % capacity
	} else {
		m.ring[(m.head+m.size)%capacity] = entry
		m.size++
		m.count.Add(1)
	}

	m.pubMu.Lock()
	m.mu.Unlock()
	m.hub.Publish(entry)
	m.pubMu.Unlock()
	m.cfg.flushDrops()
	return nil
}

// AddAll adds entries in order, stopping at the first error.
func (m *Memory[E, F]) AddAll(ctx context.Context, entries []E) error {
	return addAll(ctx, entries, m.Add)
}

// Query returns up to limit matching entries, newest first.
func (m *Memory[E, F]) Query(ctx context.Context, filter F, limit int) ([]E, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed.Load() {
		return nil, errors.ErrStoreClosed
	}

	capacity := len(m.ring)
	return takeNewest(m.size, func(i int) E {
		return m.ring[(m.head+i)%capacity]
	}, filter, limit), nil
}

// Observe streams matching entries added after the call.
func (m *Memory[E, F]) Observe(ctx context.Context, filter F) <-chan E {
	return m.hub.Subscribe(ctx, func(e E) bool { return filter.Matches(e) })
}

// Count returns the number of retained entries without taking the lock.
func (m *Memory[E, F]) Count(ctx context.Context) (int, error) {
	if err := checkContext(ctx); err != nil {
		return 0, err
	}
	if m.closed.Load() {
		return 0, errors.ErrStoreClosed
	}
	return int(m.count.Load()), nil
}

// Clear discards every entry.
func (m *Memory[E, F]) Clear(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed.Load() {
		m.mu.Unlock()
		return errors.ErrStoreClosed
	}
	removed := m.size
	clear(m.ring)
	m.head = 0
	m.size = 0
	m.count.Store(0)
	m.mu.Unlock()

	m.cfg.logger.Info("store cleared", "removed", removed)
	m.cfg.bus.Publish(event.NewStorageClearedEvent(errors.BackendMemory, m.cfg.name, removed))
	return nil
}

// Close closes every observer channel. It is safe to call more than once.
func (m *Memory[E, F]) Close() error {
	m.mu.Lock()
	wasClosed := m.closed.Swap(true)
	m.mu.Unlock()
	if !wasClosed {
		m.hub.Close()
	}
	return nil
}

// Stats returns a snapshot of the store's bookkeeping.
func (m *Memory[E, F]) Stats(ctx context.Context) (Stats, error) {
	if err := checkContext(ctx); err != nil {
		return Stats{}, err
	}
	return Stats{
		Backend:     errors.BackendMemory,
		Name:        m.cfg.name,
		Capacity:    len(m.ring),
		Count:       int(m.count.Load()),
		Subscribers: m.hub.SubscriberCount(),
		Dropped:     m.hub.Dropped(),
	}, nil
}
