package engine

import (
	"sync"

	"github.com/roach88/shelftrack/internal/tag"
)

// keyLocks provides per-item-key mutual exclusion.
//
// Concurrent events for the same key must be serialized so that
// "read current status, decide target, write status + log" is atomic with
// respect to other events for that key. Events for different keys never
// contend.
//
// Lock entries are reference counted and removed when the last holder
// releases, so the table stays bounded by the number of keys currently in
// flight rather than every key ever seen.
type keyLocks struct {
	mu   sync.Mutex
	held map[tag.Key]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{held: make(map[tag.Key]*keyLock)}
}

// lock acquires the lock for a key and returns its release function.
// Callers must invoke the returned function exactly once.
func (l *keyLocks) lock(key tag.Key) func() {
	l.mu.Lock()
	entry, ok := l.held[key]
	if !ok {
		entry = &keyLock{}
		l.held[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.held, key)
		}
		l.mu.Unlock()
	}
}

// len returns the number of keys with live lock entries. Used for testing.
func (l *keyLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}
