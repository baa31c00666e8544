package logentry

import (
	"maps"
	"time"
)

// LogEntry is one application log record. Entries are values: once built
// they are never mutated, and the metadata map is owned by the entry.
type LogEntry struct {
	ID        string            `json:"id" yaml:"id"`
	Timestamp time.Time         `json:"timestamp" yaml:"timestamp"`
	Level     Level             `json:"level" yaml:"level"`
	Tag       string            `json:"tag" yaml:"tag"`
	Message   string            `json:"message" yaml:"message"`
	Throwable string            `json:"throwable,omitempty" yaml:"throwable,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Option customizes a LogEntry at construction.
type Option func(*LogEntry)

// WithThrowable attaches a pre-formatted stack trace or error description.
func WithThrowable(trace string) Option {
	return func(e *LogEntry) {
		e.Throwable = trace
	}
}

// WithError attaches err's message as the throwable. A nil error is ignored.
func WithError(err error) Option {
	return func(e *LogEntry) {
		if err != nil {
			e.Throwable = err.Error()
		}
	}
}

// WithMetadata copies md into the entry. Later calls merge into earlier ones.
func WithMetadata(md map[string]string) Option {
	return func(e *LogEntry) {
		if len(md) == 0 {
			return
		}
		if e.Metadata == nil {
			e.Metadata = make(map[string]string, len(md))
		}
		maps.Copy(e.Metadata, md)
	}
}

// WithTimestamp overrides the capture time.
func WithTimestamp(ts time.Time) Option {
	return func(e *LogEntry) {
		e.Timestamp = ts
	}
}

// WithID overrides the generated identifier.
func WithID(id string) Option {
	return func(e *LogEntry) {
		e.ID = id
	}
}

// NewLogEntry builds an entry stamped with a fresh ID and the current time.
func NewLogEntry(level Level, tag, message string, opts ...Option) LogEntry {
	e := LogEntry{
		ID:        NewID(),
		Timestamp: time.Now(),
		Level:     level,
		Tag:       tag,
		Message:   message,
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// HasThrowable reports whether a stack trace is attached.
func (e LogEntry) HasThrowable() bool {
	return e.Throwable != ""
}

// MetadataValue returns the metadata value for key.
func (e LogEntry) MetadataValue(key string) (string, bool) {
	v, ok := e.Metadata[key]
	return v, ok
}
