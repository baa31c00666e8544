// Package storage holds captured entries for later query and live
// observation.
//
// Every backend implements [Store]; [LogStorage] and [NetworkLogStorage] are
// its two instantiations. Three backends are provided:
//
//   - [Memory]: a fixed-capacity ring. Count is lock free.
//   - [File]: newline-delimited JSON in rotating <prefix>_<n>.jsonl files on
//     an afero filesystem. Survives restarts.
//   - [SQL]: a table in SQLite or Postgres with the same capacity semantics
//     as Memory.
//
// # Ordering
//
// Query returns entries newest first. Observers receive entries in insertion
// order: each store hands publication from its write lock to a publish lock
// so that concurrent Adds cannot reorder deliveries.
//
// # Observation
//
// Observe never replays history. Each observer has its own bounded queue;
// when it falls behind the configured [broadcast.Policy] decides which entry
// is lost, the loss is counted in [Stats] and an event is published on the
// bus given with [WithEventBus].
//
// # Diagnostics
//
// Records that cannot be decoded are skipped, counted, passed to the
// [WithCorruptionHook] callback and published as
// event.RecordCorruptedEvent.
package storage
