package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "storage.rotated").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeStorageCleared  = "storage.cleared"
	TypeFileRotated     = "storage.rotated"
	TypeRecordCorrupted = "storage.record_corrupted"
	TypeDeliveryDropped = "storage.delivery_dropped"
	TypeCaptureFailed   = "capture.failed"
)

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Storage Events
// -----------------------------------------------------------------------------

// StorageClearedEvent is emitted after a store discards all its entries.
type StorageClearedEvent struct {
	baseEvent
	Backend string // memory, file or sqlite
	Store   string // logical store name, e.g. "logs" or "network"
	Removed int    // entries held before the clear, when known
}

// NewStorageClearedEvent creates a StorageClearedEvent.
func NewStorageClearedEvent(backend, store string, removed int) StorageClearedEvent {
	return StorageClearedEvent{
		baseEvent: newBaseEvent(TypeStorageCleared),
		Backend:   backend,
		Store:     store,
		Removed:   removed,
	}
}

// FileRotatedEvent is emitted when the file store starts a new active file.
type FileRotatedEvent struct {
	baseEvent
	Store    string
	NewPath  string // the file now receiving appends
	Deleted  string // the file removed to honor max files, empty if none
	NewIndex int
}

// NewFileRotatedEvent creates a FileRotatedEvent.
func NewFileRotatedEvent(store, newPath, deleted string, newIndex int) FileRotatedEvent {
	return FileRotatedEvent{
		baseEvent: newBaseEvent(TypeFileRotated),
		Store:     store,
		NewPath:   newPath,
		Deleted:   deleted,
		NewIndex:  newIndex,
	}
}

// RecordCorruptedEvent is emitted when a persisted record cannot be decoded
// and is skipped.
type RecordCorruptedEvent struct {
	baseEvent
	Backend string
	Store   string
	Source  string // file path or table name
	Line    int    // 1-based line number, 0 when not line oriented
	Err     error
}

// NewRecordCorruptedEvent creates a RecordCorruptedEvent.
func NewRecordCorruptedEvent(backend, store, source string, line int, err error) RecordCorruptedEvent {
	return RecordCorruptedEvent{
		baseEvent: newBaseEvent(TypeRecordCorrupted),
		Backend:   backend,
		Store:     store,
		Source:    source,
		Line:      line,
		Err:       err,
	}
}

// DeliveryDroppedEvent is emitted when an observer's queue overflows.
type DeliveryDroppedEvent struct {
	baseEvent
	Store      string
	Subscriber uint64
	Policy     string
}

// NewDeliveryDroppedEvent creates a DeliveryDroppedEvent.
func NewDeliveryDroppedEvent(store string, subscriber uint64, policy string) DeliveryDroppedEvent {
	return DeliveryDroppedEvent{
		baseEvent:  newBaseEvent(TypeDeliveryDropped),
		Store:      store,
		Subscriber: subscriber,
		Policy:     policy,
	}
}

// -----------------------------------------------------------------------------
// Capture Events
// -----------------------------------------------------------------------------

// CaptureFailedEvent is emitted when a producer could not store an entry.
// Producers never return these failures to the host application.
type CaptureFailedEvent struct {
	baseEvent
	Source  string // "logger" or "transport"
	EntryID string
	Err     error
}

// NewCaptureFailedEvent creates a CaptureFailedEvent.
func NewCaptureFailedEvent(source, entryID string, err error) CaptureFailedEvent {
	return CaptureFailedEvent{
		baseEvent: newBaseEvent(TypeCaptureFailed),
		Source:    source,
		EntryID:   entryID,
		Err:       err,
	}
}
