// Package broadcast provides a generic, non-blocking fan-out hub.
//
// Stores publish every accepted entry to a [Hub]; observers subscribe with a
// match function evaluated at publish time. Each subscriber has its own
// bounded queue, and the configured [Policy] decides which value is lost when
// that queue is full. Lost deliveries are counted by [Hub.Dropped] and can be
// surfaced with [WithDropHook].
package broadcast
