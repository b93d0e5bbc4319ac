package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/roach88/shelftrack/internal/tag"
)

// PresenceEntry is one currently-observed (kind, key) pair: which reader last
// reported the item and when.
type PresenceEntry struct {
	Kind           tag.ReaderKind
	Key            tag.Key
	ReaderIdentity string
	LastSeen       time.Time
}

// PresenceTracker is the in-process, per-reader-kind set of currently
// detected item keys. It is the source of truth for "is this item observed
// by any reader of this kind right now".
//
// Entries are partitioned by kind: an item can simultaneously hold a shelf
// entry and a return station entry. No state is shared across kinds.
//
// The tracker has no durability and no store dependency - it is a pure
// presence cache, lost on restart and reconstructed by the next wave of
// sensor traffic.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type PresenceTracker struct {
	mu      sync.Mutex
	entries map[tag.ReaderKind]map[tag.Key]presenceRecord
}

type presenceRecord struct {
	readerIdentity string
	lastSeen       time.Time
}

// NewPresenceTracker creates an empty tracker.
func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		entries: map[tag.ReaderKind]map[tag.Key]presenceRecord{
			tag.KindShelf:         {},
			tag.KindReturnStation: {},
		},
	}
}

// MarkPresent inserts or refreshes the entry for (kind, key).
func (p *PresenceTracker) MarkPresent(kind tag.ReaderKind, key tag.Key, readerIdentity string, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[kind][key] = presenceRecord{readerIdentity: readerIdentity, lastSeen: now}
}

// MarkAbsent removes the entry for (kind, key). Returns whether an entry
// existed.
func (p *PresenceTracker) MarkAbsent(kind tag.ReaderKind, key tag.Key) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.entries[kind][key]; !ok {
		return false
	}
	delete(p.entries[kind], key)
	return true
}

// Seen reports whether (kind, key) currently has a presence entry.
func (p *PresenceTracker) Seen(kind tag.ReaderKind, key tag.Key) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.entries[kind][key]
	return ok
}

// SweepExpired removes every entry whose last-seen age exceeds timeout as of
// now, and returns the removed entries for downstream absence processing.
// Removal and collection are atomic: an entry is returned at most once across
// all sweeps.
func (p *PresenceTracker) SweepExpired(now time.Time, timeout time.Duration) []PresenceEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	var expired []PresenceEntry
	for kind, byKey := range p.entries {
		for key, rec := range byKey {
			if now.Sub(rec.lastSeen) > timeout {
				expired = append(expired, PresenceEntry{
					Kind:           kind,
					Key:            key,
					ReaderIdentity: rec.readerIdentity,
					LastSeen:       rec.lastSeen,
				})
				delete(byKey, key)
			}
		}
	}

	sortEntries(expired)
	return expired
}

// Entries returns a snapshot of the current entries for one kind, sorted by
// key for deterministic output.
func (p *PresenceTracker) Entries(kind tag.ReaderKind) []PresenceEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]PresenceEntry, 0, len(p.entries[kind]))
	for key, rec := range p.entries[kind] {
		out = append(out, PresenceEntry{
			Kind:           kind,
			Key:            key,
			ReaderIdentity: rec.readerIdentity,
			LastSeen:       rec.lastSeen,
		})
	}
	sortEntries(out)
	return out
}

// DropReader removes every entry reported by the given reader identity,
// across both kinds. Returns the number of entries removed. Used when a
// reader is removed from the registry.
func (p *PresenceTracker) DropReader(identity string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, byKey := range p.entries {
		for key, rec := range byKey {
			if rec.readerIdentity == identity {
				delete(byKey, key)
				n++
			}
		}
	}
	return n
}

// Len returns the total number of entries across both kinds.
func (p *PresenceTracker) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, byKey := range p.entries {
		n += len(byKey)
	}
	return n
}

// sortEntries orders by kind then key so map iteration order never leaks
// into sweep processing or query output.
func sortEntries(entries []PresenceEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Kind != entries[j].Kind {
			return entries[i].Kind < entries[j].Kind
		}
		return entries[i].Key < entries[j].Key
	})
}
