package engine

import (
	"context"
	"time"

	"github.com/roach88/shelftrack/internal/tag"
)

// ItemStore is the persistence port for durable item records. The engine is
// the only writer of status and log fields.
//
// Absence convention: GetItem returns (nil, nil) for a key with no record.
// CreateItem reports whether the row was inserted so concurrent first
// sightings resolve without errors.
//
// Each call must be atomic: UpdateItemStatus writes the status fields and
// appends the log entry as one unit, or not at all. Serialization of
// competing read-modify-write cycles per key is the engine's responsibility.
type ItemStore interface {
	GetItem(ctx context.Context, key tag.Key) (*tag.Item, error)
	CreateItem(ctx context.Context, item tag.Item) (bool, error)
	UpdateItemStatus(ctx context.Context, key tag.Key, status tag.Status, readerIdentity string, at time.Time, logMessage string) error
	AppendItemLog(ctx context.Context, key tag.Key, readerIdentity string, at time.Time, logMessage string) error
	ListItems(ctx context.Context) ([]tag.Item, error)
}

// ReaderRegistry is the port for the durable reader registry. The engine
// consults it read-only during reconciliation; registration and removal are
// administrative operations delegated through RegisterReader/RemoveReader.
//
// GetReader returns (nil, nil) for an unknown identity. CreateReader and
// DeleteReader report whether a row was inserted/removed.
type ReaderRegistry interface {
	GetReader(ctx context.Context, identity string) (*tag.Reader, error)
	CreateReader(ctx context.Context, r tag.Reader) (bool, error)
	DeleteReader(ctx context.Context, identity string) (bool, error)
	ListReaders(ctx context.Context) ([]tag.Reader, error)
}
