package logentry

import (
	"sync"

	"github.com/google/uuid"
)

var (
	idMu        sync.RWMutex
	idGenerator = uuid.NewString
)

// NewID returns a new entry identifier, unique for the process lifetime.
func NewID() string {
	idMu.RLock()
	gen := idGenerator
	idMu.RUnlock()
	return gen()
}

// SetIDGenerator replaces the identifier source and returns a function that
// restores the previous one. Intended for tests that need stable IDs.
func SetIDGenerator(gen func() string) (restore func()) {
	idMu.Lock()
	prev := idGenerator
	idGenerator = gen
	idMu.Unlock()

	return func() {
		idMu.Lock()
		idGenerator = prev
		idMu.Unlock()
	}
}
