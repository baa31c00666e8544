package capture

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/Iron-Ham/logscope/internal/errors"
	"github.com/Iron-Ham/logscope/internal/event"
	"github.com/Iron-Ham/logscope/internal/logentry"
	"github.com/Iron-Ham/logscope/internal/logging"
	"github.com/Iron-Ham/logscope/internal/storage"
)

// Option configures a Logger or Transport.
type Option func(*options)

type options struct {
	minLevel    logentry.Level
	diagnostics *logging.Logger
	bus         *event.Bus
	maxBodySize int
}

func newOptions(opts []Option) options {
	o := options{
		minLevel:    logentry.LevelVerbose,
		diagnostics: logging.NopLogger(),
		maxBodySize: logentry.DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithMinLevel drops entries below level before they reach the store.
func WithMinLevel(level logentry.Level) Option {
	return func(o *options) {
		o.minLevel = level
	}
}

// WithDiagnostics sets the logger that receives capture failures.
func WithDiagnostics(l *logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.diagnostics = l
		}
	}
}

// WithEventBus publishes capture failures as event.CaptureFailedEvent.
func WithEventBus(bus *event.Bus) Option {
	return func(o *options) {
		o.bus = bus
	}
}

// WithMaxBodySize sets the body capture limit for Transport.
func WithMaxBodySize(n int) Option {
	return func(o *options) {
		o.maxBodySize = n
	}
}

// Logger is the application-facing facade that turns log calls into
// LogEntry values. It never returns storage errors to the caller: failures
// go to the diagnostic logger and the event bus.
type Logger struct {
	store    storage.LogStorage
	opts     options
	log      *logging.Logger
	failures atomic.Uint64
}

// NewLogger creates a Logger writing to store.
func NewLogger(store storage.LogStorage, opts ...Option) *Logger {
	o := newOptions(opts)
	return &Logger{
		store: store,
		opts:  o,
		log:   o.diagnostics.WithComponent("capture").With("source", "logger"),
	}
}

// Failures returns how many entries could not be stored.
func (l *Logger) Failures() uint64 {
	return l.failures.Load()
}

// Enabled reports whether entries at level are stored.
func (l *Logger) Enabled(level logentry.Level) bool {
	return level >= l.opts.minLevel
}

// Log records one entry. Options attach a throwable, metadata or override
// the timestamp.
func (l *Logger) Log(ctx context.Context, level logentry.Level, tag, msg string, opts ...logentry.Option) {
	if !l.Enabled(level) {
		return
	}
	entry := logentry.NewLogEntry(level, tag, msg, opts...)
	if err := l.store.Add(ctx, entry); err != nil {
		l.fail(entry.ID, err)
	}
}

func (l *Logger) fail(entryID string, err error) {
	l.failures.Add(1)
	captureErr := errors.NewCaptureError("logger", err)
	l.log.Warn("failed to store log entry",
		"entry_id", entryID, "error", captureErr, "retryable", errors.IsRetryable(err))
	l.opts.bus.Publish(event.NewCaptureFailedEvent("logger", entryID, captureErr))
}

func (l *Logger) logKV(level logentry.Level, tag, msg string, kv []any) {
	l.Log(context.Background(), level, tag, msg, metadataOption(kv))
}

// Verbose records a VERBOSE entry. kv are alternating key/value pairs
// stored as metadata.
func (l *Logger) Verbose(tag, msg string, kv ...any) { l.logKV(logentry.LevelVerbose, tag, msg, kv) }

// Debug records a DEBUG entry.
func (l *Logger) Debug(tag, msg string, kv ...any) { l.logKV(logentry.LevelDebug, tag, msg, kv) }

// Info records an INFO entry.
func (l *Logger) Info(tag, msg string, kv ...any) { l.logKV(logentry.LevelInfo, tag, msg, kv) }

// Warn records a WARNING entry.
func (l *Logger) Warn(tag, msg string, kv ...any) { l.logKV(logentry.LevelWarning, tag, msg, kv) }

// Error records an ERROR entry.
func (l *Logger) Error(tag, msg string, kv ...any) { l.logKV(logentry.LevelError, tag, msg, kv) }

// Fatal records a FATAL entry. It does not exit the process.
func (l *Logger) Fatal(tag, msg string, kv ...any) { l.logKV(logentry.LevelFatal, tag, msg, kv) }

// Exception records an ERROR entry with err attached as the throwable.
func (l *Logger) Exception(tag, msg string, err error, kv ...any) {
	l.Log(context.Background(), logentry.LevelError, tag, msg, logentry.WithError(err), metadataOption(kv))
}

// WithTag returns a logger that stamps every entry with tag.
func (l *Logger) WithTag(tag string) *TaggedLogger {
	return &TaggedLogger{parent: l, tag: tag}
}

// TaggedLogger is a Logger bound to one tag.
type TaggedLogger struct {
	parent *Logger
	tag    string
}

// Tag returns the bound tag.
func (t *TaggedLogger) Tag() string { return t.tag }

func (t *TaggedLogger) Verbose(msg string, kv ...any) { t.parent.Verbose(t.tag, msg, kv...) }
func (t *TaggedLogger) Debug(msg string, kv ...any)   { t.parent.Debug(t.tag, msg, kv...) }
func (t *TaggedLogger) Info(msg string, kv ...any)    { t.parent.Info(t.tag, msg, kv...) }
func (t *TaggedLogger) Warn(msg string, kv ...any)    { t.parent.Warn(t.tag, msg, kv...) }
func (t *TaggedLogger) Error(msg string, kv ...any)   { t.parent.Error(t.tag, msg, kv...) }
func (t *TaggedLogger) Fatal(msg string, kv ...any)   { t.parent.Fatal(t.tag, msg, kv...) }

// Exception records an ERROR entry with err attached as the throwable.
func (t *TaggedLogger) Exception(msg string, err error, kv ...any) {
	t.parent.Exception(t.tag, msg, err, kv...)
}

// metadataOption converts alternating key/value pairs to entry metadata.
// Non-string keys are formatted with fmt; a dangling key maps to "".
func metadataOption(kv []any) logentry.Option {
	if len(kv) == 0 {
		return func(*logentry.LogEntry) {}
	}
	md := make(map[string]string, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		if i+1 < len(kv) {
			md[key] = fmt.Sprint(kv[i+1])
		} else {
			md[key] = ""
		}
	}
	return logentry.WithMetadata(md)
}
