package broadcast

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Iron-Ham/logscope/internal/errors"
	"github.com/Iron-Ham/logscope/internal/logging"
)

// DefaultBufferSize is the per-subscriber queue length.
const DefaultBufferSize = 64

// Policy decides what happens when a subscriber's queue is full.
type Policy int

const (
	// DropOldest evicts the oldest queued item to make room.
	DropOldest Policy = iota
	// DropNewest discards the item being published.
	DropNewest
)

// String returns the config name of the policy.
func (p Policy) String() string {
	switch p {
	case DropOldest:
		return "drop_oldest"
	case DropNewest:
		return "drop_newest"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy converts a config value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop_oldest", "oldest":
		return DropOldest, nil
	case "drop_newest", "newest":
		return DropNewest, nil
	}
	return 0, errors.NewValidationError("unknown overflow policy").
		WithField("overflow_policy").
		WithValue(s)
}

// DropFunc is called, outside any hub lock, whenever a delivery is dropped.
type DropFunc func(subscriber uint64, policy Policy)

// Option configures a Hub.
type Option func(*options)

type options struct {
	bufferSize int
	policy     Policy
	logger     *logging.Logger
	onDrop     DropFunc
}

// WithBufferSize sets the per-subscriber queue length. Values below 1 are ignored.
func WithBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

// WithPolicy sets the overflow policy.
func WithPolicy(p Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithLogger sets the logger used to report recovered matcher panics.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDropHook registers fn to be told about every dropped delivery.
func WithDropHook(fn DropFunc) Option {
	return func(o *options) {
		o.onDrop = fn
	}
}

type subscriber[E any] struct {
	id    uint64
	match func(E) bool
	ch    chan E

	// mu serializes sends against close so a send never hits a closed channel.
	mu     sync.Mutex
	closed bool
}

// Hub fans values out to any number of subscribers. Each subscriber owns a
// bounded queue; Publish never blocks, and a slow subscriber only loses its
// own deliveries. There is no replay: a subscriber sees values published
// after Subscribe returns.
type Hub[E any] struct {
	opts options

	mu     sync.RWMutex
	subs   map[uint64]*subscriber[E]
	nextID atomic.Uint64

	dropped   atomic.Uint64
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a hub.
func New[E any](opts ...Option) *Hub[E] {
	o := options{
		bufferSize: DefaultBufferSize,
		policy:     DropOldest,
		logger:     logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Hub[E]{
		opts: o,
		subs: make(map[uint64]*subscriber[E]),
		done: make(chan struct{}),
	}
}

// Subscribe registers a subscriber receiving every published value for which
// match returns true (all values when match is nil). The returned channel is
// closed when ctx is done or the hub is closed.
func (h *Hub[E]) Subscribe(ctx context.Context, match func(E) bool) <-chan E {
	sub := &subscriber[E]{
		id:    h.nextID.Add(1),
		match: match,
		ch:    make(chan E, h.opts.bufferSize),
	}

	h.mu.Lock()
	select {
	case <-h.done:
		h.mu.Unlock()
		close(sub.ch)
		return sub.ch
	default:
	}
	h.subs[sub.id] = sub
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-h.done:
		}
		h.remove(sub)
	}()

	return sub.ch
}

// Publish delivers v to every matching subscriber without blocking.
func (h *Hub[E]) Publish(v E) {
	h.mu.RLock()
	subs := make([]*subscriber[E], 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		if !h.safeMatch(sub, v) {
			continue
		}
		if !h.deliver(sub, v) {
			h.dropped.Add(1)
			if h.opts.onDrop != nil {
				h.opts.onDrop(sub.id, h.opts.policy)
			}
		}
	}
}

// deliver enqueues v and reports false when a delivery was lost.
func (h *Hub[E]) deliver(sub *subscriber[E], v E) bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if sub.closed {
		return true
	}

	select {
	case sub.ch <- v:
		return true
	default:
	}

	if h.opts.policy == DropNewest {
		return false
	}

	// Queue full: discard the oldest item. The reader may drain concurrently,
	// so both steps are non-blocking.
	select {
	case <-sub.ch:
	default:
	}
	select {
	case sub.ch <- v:
	default:
	}
	return false
}

func (h *Hub[E]) safeMatch(sub *subscriber[E], v E) (ok bool) {
	if sub.match == nil {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			h.opts.logger.Error("subscriber filter panicked",
				"subscriber", sub.id,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
			ok = false
		}
	}()
	return sub.match(v)
}

func (h *Hub[E]) remove(sub *subscriber[E]) {
	h.mu.Lock()
	delete(h.subs, sub.id)
	h.mu.Unlock()

	sub.mu.Lock()
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
	sub.mu.Unlock()
}

// SubscriberCount returns the number of live subscribers.
func (h *Hub[E]) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns the total number of deliveries lost to full queues.
func (h *Hub[E]) Dropped() uint64 {
	return h.dropped.Load()
}

// Close closes every subscriber channel. Later subscriptions receive an
// already closed channel and Publish becomes a no-op.
func (h *Hub[E]) Close() {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		close(h.done)
		subs := h.subs
		h.subs = make(map[uint64]*subscriber[E])
		h.mu.Unlock()

		for _, sub := range subs {
			h.remove(sub)
		}
	})
}
