package activity

import (
	"sync"

	"github.com/google/uuid"
)

// recordLocks serializes point-bearing writes per activity id so a
// delete can never race a concurrent award against the same record.
// The database row lock covers cross-process writers; this covers
// goroutines sharing one service instance without hammering the
// database with lock-wait retries.
type recordLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newRecordLocks() *recordLocks {
	return &recordLocks{locks: make(map[uuid.UUID]*lockEntry)}
}

// acquire blocks until the caller holds the lock for id and returns the
// release function. Entries are dropped once the last holder releases.
func (r *recordLocks) acquire(id uuid.UUID) func() {
	r.mu.Lock()
	entry, ok := r.locks[id]
	if !ok {
		entry = &lockEntry{}
		r.locks[id] = entry
	}
	entry.refs++
	r.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		r.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(r.locks, id)
		}
		r.mu.Unlock()
	}
}
