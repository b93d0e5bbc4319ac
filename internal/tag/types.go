package tag

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Status is the authoritative location status of an item.
//
// Exactly one status holds at any instant. An item never observed by any
// reader defaults to StatusBorrowed: "not on any institutional surface".
type Status string

const (
	// StatusBorrowed means the item is not currently sensed by any reader.
	StatusBorrowed Status = "borrowed"
	// StatusInLibrary means the item was last sensed by a shelf reader.
	StatusInLibrary Status = "in_library"
	// StatusInReturnStation means the item was last sensed by a return
	// station reader.
	StatusInReturnStation Status = "in_return_station"
)

// Valid reports whether s is a recognized status value.
func (s Status) Valid() bool {
	switch s {
	case StatusBorrowed, StatusInLibrary, StatusInReturnStation:
		return true
	}
	return false
}

// ReaderKind distinguishes the two reader surfaces.
type ReaderKind string

const (
	// KindShelf is a fixed-position bookshelf reader.
	KindShelf ReaderKind = "shelf"
	// KindReturnStation is a return station (drop box) reader.
	KindReturnStation ReaderKind = "return_station"
)

// Valid reports whether k is a recognized reader kind.
func (k ReaderKind) Valid() bool {
	return k == KindShelf || k == KindReturnStation
}

// StatusFor returns the target status asserted by a detection from a reader
// of this kind.
func (k ReaderKind) StatusFor() Status {
	if k == KindReturnStation {
		return StatusInReturnStation
	}
	return StatusInLibrary
}

// Label returns the human form used in log messages ("shelf",
// "return station").
func (k ReaderKind) Label() string {
	if k == KindReturnStation {
		return "return station"
	}
	return "shelf"
}

// LogEntry is one line of an item's append-only audit log.
type LogEntry struct {
	Message string
	Time    time.Time
}

// Item is the durable record for one tagged library copy.
//
// INVARIANTS:
//   - Status is never empty.
//   - Log is ordered, monotonically non-decreasing in time, never truncated.
//   - Status and Log are mutated only by the reconciliation engine.
type Item struct {
	Key                 Key
	Title               string
	Authors             []string
	IndustryIdentifiers []string
	Status              Status
	// ReaderIdentity is the network identity of the reader that last
	// observed the item. Empty when the item is borrowed.
	ReaderIdentity string
	UpdatedAt      time.Time
	Log            []LogEntry
}

// Reader is one fixed-position hardware sensor, identified by its network
// address. Created and removed by administrative action; the engine only
// reads these records.
type Reader struct {
	Identity string
	Kind     ReaderKind
	Name     string
}

// Detection is a validated, normalized presence event: reader identity has
// been resolved against the registry and the key has been normalized.
type Detection struct {
	Key            Key
	ReaderIdentity string
	Kind           ReaderKind
	Detected       bool
}

// NormalizeName canonicalizes a display name (reader or item title) to NFC
// with surrounding whitespace stripped. Unlike keys, case is preserved.
func NormalizeName(raw string) string {
	return strings.TrimSpace(norm.NFC.String(raw))
}
