package engine

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/shelftrack/internal/tag"
)

// PresentItem is one currently-observed item in a reader snapshot, joined
// with its durable record when one exists.
type PresentItem struct {
	Key      tag.Key
	LastSeen time.Time
	// Item is nil when presence was reported for a key with no record yet
	// (possible only in the window before the first sighting commits).
	Item *tag.Item
}

// ReaderStatus is a read-only snapshot of one reader: registry data,
// connectivity liveness, and the items it currently observes.
type ReaderStatus struct {
	Reader    tag.Reader
	Connected bool
	Present   []PresentItem
}

// QueryReaders returns a snapshot of every registered reader, combining the
// registry, the presence tracker, the item record store and the
// connectivity map. Presence entries are attributed to the reader identity
// that last reported them.
func (e *Engine) QueryReaders(ctx context.Context) ([]ReaderStatus, error) {
	readers, err := e.registry.ListReaders(ctx)
	if err != nil {
		return nil, persistenceFailure("", "list readers", err)
	}

	items, err := e.items.ListItems(ctx)
	if err != nil {
		return nil, persistenceFailure("", "list items", err)
	}
	byKey := make(map[tag.Key]*tag.Item, len(items))
	for i := range items {
		byKey[items[i].Key] = &items[i]
	}

	out := make([]ReaderStatus, 0, len(readers))
	for _, r := range readers {
		status := ReaderStatus{
			Reader:    r,
			Connected: e.connectivity.Connected(r.Identity),
			Present:   []PresentItem{},
		}
		for _, entry := range e.presence.Entries(r.Kind) {
			if entry.ReaderIdentity != r.Identity {
				continue
			}
			status.Present = append(status.Present, PresentItem{
				Key:      entry.Key,
				LastSeen: entry.LastSeen,
				Item:     byKey[entry.Key],
			})
		}
		out = append(out, status)
	}
	return out, nil
}

// RegisterReader adds a reader to the registry. Duplicate identities are a
// CONFLICT regardless of kind - one physical address maps to one surface.
func (e *Engine) RegisterReader(ctx context.Context, kind tag.ReaderKind, identity, name string) (*tag.Reader, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, invalidEvent("missing reader identity")
	}
	if !kind.Valid() {
		return nil, invalidEvent("unrecognized reader kind " + string(kind))
	}
	name = tag.NormalizeName(name)
	if name == "" {
		return nil, invalidEvent("missing reader name")
	}

	reader := tag.Reader{Identity: identity, Kind: kind, Name: name}
	created, err := e.registry.CreateReader(ctx, reader)
	if err != nil {
		return nil, persistenceFailure("", "create reader", err)
	}
	if !created {
		return nil, &Error{Code: CodeConflict, Message: "reader identity already registered", ReaderIdentity: identity}
	}

	slog.Info("reader registered", "reader", identity, "kind", kind, "name", name)
	return &reader, nil
}

// RemoveReader deletes a reader of the given kind from the registry and
// clears its connectivity and presence state. Removing an identity
// registered under a different kind is NOT_FOUND, not a cross-kind delete.
func (e *Engine) RemoveReader(ctx context.Context, kind tag.ReaderKind, identity string) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return invalidEvent("missing reader identity")
	}
	if !kind.Valid() {
		return invalidEvent("unrecognized reader kind " + string(kind))
	}

	reader, err := e.registry.GetReader(ctx, identity)
	if err != nil {
		return persistenceFailure("", "look up reader", err)
	}
	if reader == nil || reader.Kind != kind {
		return &Error{Code: CodeNotFound, Message: "no such reader", ReaderIdentity: identity}
	}

	deleted, err := e.registry.DeleteReader(ctx, identity)
	if err != nil {
		return persistenceFailure("", "delete reader", err)
	}
	if !deleted {
		return &Error{Code: CodeNotFound, Message: "no such reader", ReaderIdentity: identity}
	}

	e.connectivity.Drop(identity)
	dropped := e.presence.DropReader(identity)
	slog.Info("reader removed", "reader", identity, "kind", kind, "presence_dropped", dropped)
	return nil
}
