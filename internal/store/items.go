package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/shelftrack/internal/tag"
)

// GetItem returns the item record for a key, with its full audit log, or
// (nil, nil) when no record exists.
func (s *Store) GetItem(ctx context.Context, key tag.Key) (*tag.Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, title, authors, industry_identifiers, status, reader_identity, updated_at
		FROM items
		WHERE key = ?
	`, string(key))

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query item %s: %w", key, err)
	}

	logs, err := s.readItemLogs(ctx, key)
	if err != nil {
		return nil, err
	}
	item.Log = logs

	return item, nil
}

// CreateItem inserts a new item record together with its initial log entries
// in one transaction. Returns (false, nil) when a record for the key already
// exists - the caller decides whether that is a conflict or a lost race.
func (s *Store) CreateItem(ctx context.Context, item tag.Item) (bool, error) {
	authors, err := marshalStrings(item.Authors)
	if err != nil {
		return false, fmt.Errorf("create item %s: %w", item.Key, err)
	}
	identifiers, err := marshalStrings(item.IndustryIdentifiers)
	if err != nil {
		return false, fmt.Errorf("create item %s: %w", item.Key, err)
	}

	inserted := false
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO items (key, title, authors, industry_identifiers, status, reader_identity, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(key) DO NOTHING
		`,
			string(item.Key),
			item.Title,
			authors,
			identifiers,
			string(item.Status),
			nullString(item.ReaderIdentity),
			toMillis(item.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return nil // key exists, nothing written
		}
		inserted = true

		for _, entry := range item.Log {
			if err := insertLog(ctx, tx, item.Key, entry.Message, entry.Time); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("create item %s: %w", item.Key, err)
	}
	return inserted, nil
}

// UpdateItemStatus applies a status transition: status, last reader identity
// and update time are written and the log entry appended in one transaction.
// An empty readerIdentity is persisted as NULL (the borrowed case).
func (s *Store) UpdateItemStatus(ctx context.Context, key tag.Key, status tag.Status, readerIdentity string, at time.Time, logMessage string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE items
			SET status = ?, reader_identity = ?, updated_at = ?
			WHERE key = ?
		`, string(status), nullString(readerIdentity), toMillis(at), string(key))
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("no item row for key")
		}
		return insertLog(ctx, tx, key, logMessage, at)
	})
	if err != nil {
		return fmt.Errorf("update item status %s: %w", key, err)
	}
	return nil
}

// AppendItemLog records a re-observation: the last reader identity and update
// time are refreshed and the log entry appended, without touching status.
func (s *Store) AppendItemLog(ctx context.Context, key tag.Key, readerIdentity string, at time.Time, logMessage string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE items
			SET reader_identity = ?, updated_at = ?
			WHERE key = ?
		`, nullString(readerIdentity), toMillis(at), string(key))
		if err != nil {
			return fmt.Errorf("refresh item: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("no item row for key")
		}
		return insertLog(ctx, tx, key, logMessage, at)
	})
	if err != nil {
		return fmt.Errorf("append item log %s: %w", key, err)
	}
	return nil
}

// ListItems returns all item records with their logs, ordered by key.
// Returns an empty slice (not nil) when the table is empty.
func (s *Store) ListItems(ctx context.Context) ([]tag.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, title, authors, industry_identifiers, status, reader_identity, updated_at
		FROM items
		ORDER BY key ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	items := []tag.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}

	for i := range items {
		logs, err := s.readItemLogs(ctx, items[i].Key)
		if err != nil {
			return nil, err
		}
		items[i].Log = logs
	}

	return items, nil
}

// readItemLogs returns an item's log entries in append order (by rowid, which
// is also the time order: the engine appends monotonically per key).
func (s *Store) readItemLogs(ctx context.Context, key tag.Key) ([]tag.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message, at
		FROM item_logs
		WHERE item_key = ?
		ORDER BY id ASC
	`, string(key))
	if err != nil {
		return nil, fmt.Errorf("query item logs %s: %w", key, err)
	}
	defer rows.Close()

	logs := []tag.LogEntry{}
	for rows.Next() {
		var message string
		var at int64
		if err := rows.Scan(&message, &at); err != nil {
			return nil, fmt.Errorf("scan item log: %w", err)
		}
		logs = append(logs, tag.LogEntry{Message: message, Time: fromMillis(at)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate item logs: %w", err)
	}
	return logs, nil
}

func insertLog(ctx context.Context, tx *sql.Tx, key tag.Key, message string, at time.Time) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO item_logs (item_key, message, at)
		VALUES (?, ?, ?)
	`, string(key), message, toMillis(at)); err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	return nil
}

// rowScanner abstracts sql.Row and sql.Rows for scanItem.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*tag.Item, error) {
	var (
		item        tag.Item
		key         string
		authors     string
		identifiers string
		status      string
		reader      sql.NullString
		updatedAt   int64
	)
	if err := row.Scan(&key, &item.Title, &authors, &identifiers, &status, &reader, &updatedAt); err != nil {
		return nil, err
	}
	item.Key = tag.Key(key)
	item.Status = tag.Status(status)
	item.ReaderIdentity = reader.String
	item.UpdatedAt = fromMillis(updatedAt)

	if err := json.Unmarshal([]byte(authors), &item.Authors); err != nil {
		return nil, fmt.Errorf("unmarshal authors: %w", err)
	}
	if err := json.Unmarshal([]byte(identifiers), &item.IndustryIdentifiers); err != nil {
		return nil, fmt.Errorf("unmarshal industry identifiers: %w", err)
	}
	return &item, nil
}

// marshalStrings serializes a string slice to JSON, mapping nil to "[]" so
// the column is never NULL.
func marshalStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("marshal strings: %w", err)
	}
	return string(b), nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
