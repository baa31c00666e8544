// Package event provides a pub-sub event bus for storage diagnostics.
//
// Stores and producers publish events when something happens that a host
// cannot see through the storage contract alone: a clear, a file rotation,
// a corrupt record skipped on read, an observer that fell behind, or a
// capture that failed. Hosts subscribe to surface silent data loss.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Types
//
//   - [StorageClearedEvent]: "storage.cleared"
//   - [FileRotatedEvent]: "storage.rotated"
//   - [RecordCorruptedEvent]: "storage.record_corrupted"
//   - [DeliveryDroppedEvent]: "storage.delivery_dropped"
//   - [CaptureFailedEvent]: "capture.failed"
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Handlers are called
// synchronously on the publishing goroutine and protected from panics: a
// panicking handler is logged and the remaining handlers still run.
// [DeliveryDroppedEvent] is published after the store has released its
// locks, so its handlers may write to that store. Other storage events are
// published while the store is locked; their handlers must not call back
// into it.
//
// # Basic Usage
//
//	bus := event.NewBus()
//	bus.Subscribe(event.TypeRecordCorrupted, func(e event.Event) {
//	    rc := e.(event.RecordCorruptedEvent)
//	    fmt.Printf("skipped %s:%d: %v\n", rc.Source, rc.Line, rc.Err)
//	})
package event
