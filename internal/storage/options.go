package storage

import (
	"sync"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/logscope/internal/broadcast"
	"github.com/Iron-Ham/logscope/internal/event"
	"github.com/Iron-Ham/logscope/internal/logging"
)

// Default capacities and file limits.
const (
	DefaultLogCapacity     = 10_000
	DefaultNetworkCapacity = 1_000
	DefaultMaxFileSize     = 1 << 20 // 1 MiB
	DefaultMaxFiles        = 5

	LogStoreName     = "logs"
	NetworkStoreName = "network"
)

// CorruptRecord describes a persisted record that could not be decoded.
type CorruptRecord struct {
	Source string // file path or table name
	Line   int    // 1-based line or row sequence number
	Data   []byte
	Err    error
}

// Option configures a store. Options that do not apply to a backend are ignored.
type Option func(*config)

type config struct {
	name             string
	capacity         int
	subscriberBuffer int
	policy           broadcast.Policy
	logger           *logging.Logger
	bus              *event.Bus

	fs          afero.Fs
	maxFileSize int64
	maxFiles    int
	prefix      string
	onCorrupt   func(CorruptRecord)

	drops *dropQueue
}

func newConfig(name string, capacity int, opts []Option) config {
	cfg := config{
		name:             name,
		capacity:         capacity,
		subscriberBuffer: broadcast.DefaultBufferSize,
		policy:           broadcast.DropOldest,
		logger:           logging.NopLogger(),
		fs:               afero.NewOsFs(),
		maxFileSize:      DefaultMaxFileSize,
		maxFiles:         DefaultMaxFiles,
		prefix:           name,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithCapacity bounds the number of retained entries. Values below 1 are ignored.
func WithCapacity(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithSubscriberBuffer sets the per-observer queue length.
func WithSubscriberBuffer(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.subscriberBuffer = n
		}
	}
}

// WithOverflowPolicy sets what a full observer queue discards.
func WithOverflowPolicy(p broadcast.Policy) Option {
	return func(c *config) {
		c.policy = p
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithEventBus publishes storage events on bus.
func WithEventBus(bus *event.Bus) Option {
	return func(c *config) {
		c.bus = bus
	}
}

// WithFs sets the filesystem used by the file store.
func WithFs(fs afero.Fs) Option {
	return func(c *config) {
		if fs != nil {
			c.fs = fs
		}
	}
}

// WithMaxFileSize sets the size in bytes at which the file store rotates.
func WithMaxFileSize(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.maxFileSize = n
		}
	}
}

// WithMaxFiles sets how many files the file store retains.
func WithMaxFiles(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxFiles = n
		}
	}
}

// WithFilePrefix overrides the file name prefix (default: the store name).
func WithFilePrefix(prefix string) Option {
	return func(c *config) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithCorruptionHook registers fn to be called for every skipped record.
func WithCorruptionHook(fn func(CorruptRecord)) Option {
	return func(c *config) {
		c.onCorrupt = fn
	}
}

// newHub builds the observer hub for a store. Dropped deliveries are logged
// at once and queued for the event bus; the store sends them with
// flushDrops after its publish lock is released, so a bus handler may write
// to the store it observes.
func newHub[E any](cfg *config) *broadcast.Hub[E] {
	cfg.drops = &dropQueue{}
	return broadcast.New[E](
		broadcast.WithBufferSize(cfg.subscriberBuffer),
		broadcast.WithPolicy(cfg.policy),
		broadcast.WithLogger(cfg.logger),
		broadcast.WithDropHook(func(sub uint64, p broadcast.Policy) {
			cfg.logger.Debug("observer queue full, delivery dropped",
				"subscriber", sub,
				"policy", p.String())
			cfg.drops.push(event.NewDeliveryDroppedEvent(cfg.name, sub, p.String()))
		}),
	)
}

// flushDrops publishes the queued dropped-delivery events. Callers must not
// hold the store's locks.
func (c *config) flushDrops() {
	for _, e := range c.drops.take() {
		c.bus.Publish(e)
	}
}

// dropQueue holds dropped-delivery events until the store can publish them.
type dropQueue struct {
	mu      sync.Mutex
	pending []event.Event
}

func (q *dropQueue) push(e event.Event) {
	q.mu.Lock()
	q.pending = append(q.pending, e)
	q.mu.Unlock()
}

func (q *dropQueue) take() []event.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	pending := q.pending
	q.pending = nil
	return pending
}

// reportCorrupt fans a skipped record out to the hook, logger and bus.
func (c *config) reportCorrupt(backend string, rec CorruptRecord) {
	c.logger.Warn("skipping corrupt record",
		"source", rec.Source,
		"line", rec.Line,
		"error", rec.Err)
	if c.onCorrupt != nil {
		c.onCorrupt(rec)
	}
	c.bus.Publish(event.NewRecordCorruptedEvent(backend, c.name, rec.Source, rec.Line, rec.Err))
}
