package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/shelftrack/internal/tag"
)

// RegisterItem creates an item record by explicit manual registration: the
// one creation path besides first detection. The caller supplies real
// metadata and an initial status; the engine appends the "manually
// registered" audit entry.
func (e *Engine) RegisterItem(ctx context.Context, rawKey, title string, authors, industryIdentifiers []string, status tag.Status) (*tag.Item, error) {
	key, err := tag.NormalizeKey(rawKey)
	if err != nil {
		return nil, invalidEvent("missing item key")
	}
	title = tag.NormalizeName(title)
	if title == "" {
		return nil, invalidEvent("missing title")
	}
	if len(authors) == 0 {
		return nil, invalidEvent("missing authors")
	}
	if !status.Valid() {
		return nil, invalidEvent("unrecognized status " + string(status))
	}
	if len(industryIdentifiers) == 0 {
		industryIdentifiers = []string{"N/A"}
	}

	now := e.now()
	item := tag.Item{
		Key:                 key,
		Title:               title,
		Authors:             authors,
		IndustryIdentifiers: industryIdentifiers,
		Status:              status,
		UpdatedAt:           now,
		Log: []tag.LogEntry{
			{Message: manualMessage(status), Time: now},
		},
	}

	unlock := e.locks.lock(key)
	defer unlock()

	created, err := e.items.CreateItem(ctx, item)
	if err != nil {
		return nil, persistenceFailure(key, "create item", err)
	}
	if !created {
		return nil, &Error{Code: CodeConflict, Message: "item key already registered", Key: key}
	}

	slog.Info("item registered", "key", key, "title", title, "status", status)
	return &item, nil
}

// ListItems returns all item records with their audit logs.
func (e *Engine) ListItems(ctx context.Context) ([]tag.Item, error) {
	items, err := e.items.ListItems(ctx)
	if err != nil {
		return nil, persistenceFailure("", "list items", err)
	}
	return items, nil
}

// GetItem returns one item record, or nil when no record exists.
func (e *Engine) GetItem(ctx context.Context, key tag.Key) (*tag.Item, error) {
	item, err := e.items.GetItem(ctx, key)
	if err != nil {
		return nil, persistenceFailure(key, "read item", err)
	}
	return item, nil
}
