package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/shelftrack/internal/tag"
)

// GetReader returns the registered reader for a network identity, or
// (nil, nil) when the identity is unknown.
func (s *Store) GetReader(ctx context.Context, identity string) (*tag.Reader, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT identity, kind, name
		FROM readers
		WHERE identity = ?
	`, identity)

	var r tag.Reader
	var kind string
	err := row.Scan(&r.Identity, &kind, &r.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query reader %s: %w", identity, err)
	}
	r.Kind = tag.ReaderKind(kind)
	return &r, nil
}

// CreateReader registers a reader. Returns (false, nil) when a reader with
// the same identity already exists.
func (s *Store) CreateReader(ctx context.Context, r tag.Reader) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO readers (identity, kind, name)
		VALUES (?, ?, ?)
		ON CONFLICT(identity) DO NOTHING
	`, r.Identity, string(r.Kind), r.Name)
	if err != nil {
		return false, fmt.Errorf("create reader %s: %w", r.Identity, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create reader %s: rows affected: %w", r.Identity, err)
	}
	return n > 0, nil
}

// UpsertReader registers a reader, replacing kind and name when the identity
// is already registered. Used for topology seeding at startup; the
// administrative API goes through CreateReader so duplicates surface as
// conflicts.
func (s *Store) UpsertReader(ctx context.Context, r tag.Reader) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO readers (identity, kind, name)
		VALUES (?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET kind = excluded.kind, name = excluded.name
	`, r.Identity, string(r.Kind), r.Name); err != nil {
		return fmt.Errorf("upsert reader %s: %w", r.Identity, err)
	}
	return nil
}

// DeleteReader removes a reader from the registry. Returns (false, nil) when
// no reader with that identity exists.
func (s *Store) DeleteReader(ctx context.Context, identity string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM readers WHERE identity = ?
	`, identity)
	if err != nil {
		return false, fmt.Errorf("delete reader %s: %w", identity, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete reader %s: rows affected: %w", identity, err)
	}
	return n > 0, nil
}

// ListReaders returns all registered readers ordered by identity.
// Returns an empty slice (not nil) when the registry is empty.
func (s *Store) ListReaders(ctx context.Context) ([]tag.Reader, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identity, kind, name
		FROM readers
		ORDER BY identity ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query readers: %w", err)
	}
	defer rows.Close()

	readers := []tag.Reader{}
	for rows.Next() {
		var r tag.Reader
		var kind string
		if err := rows.Scan(&r.Identity, &kind, &r.Name); err != nil {
			return nil, fmt.Errorf("scan reader: %w", err)
		}
		r.Kind = tag.ReaderKind(kind)
		readers = append(readers, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate readers: %w", err)
	}
	return readers, nil
}
