// Package viewer is a terminal UI over a store. It takes a Query snapshot,
// then follows Observe for live entries, one bubbletea command per entry.
package viewer
