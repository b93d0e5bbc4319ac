package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/shelftrack/internal/tag"
)

// Placeholder metadata for records created by first detection. Real metadata
// arrives later via manual registration or catalog import.
const (
	placeholderTitle  = "Unknown"
	placeholderAuthor = "Unknown"
)

// changedLogPrefix starts every audit entry that records an actual status
// transition. Re-observations and manual notes use other prefixes, so
// counting transitions is a prefix match over the log.
const changedLogPrefix = "status changed to"

func changedMessage(status tag.Status, kind tag.ReaderKind, readerIdentity string) string {
	return fmt.Sprintf("%s '%s': detected by %s reader %s", changedLogPrefix, status, kind.Label(), readerIdentity)
}

func firstSightingMessage(status tag.Status, kind tag.ReaderKind, readerIdentity string) string {
	return fmt.Sprintf("%s '%s': first sighting by %s reader %s", changedLogPrefix, status, kind.Label(), readerIdentity)
}

func observedMessage(kind tag.ReaderKind, readerIdentity string) string {
	return fmt.Sprintf("observed again by %s reader %s", kind.Label(), readerIdentity)
}

func absentMessage(kind tag.ReaderKind, readerIdentity string) string {
	return fmt.Sprintf("%s '%s': no longer detected by %s reader %s", changedLogPrefix, tag.StatusBorrowed, kind.Label(), readerIdentity)
}

func manualMessage(status tag.Status) string {
	return fmt.Sprintf("manually registered with status '%s'", status)
}

// CountChangedEntries returns how many audit entries record an actual status
// transition.
func CountChangedEntries(log []tag.LogEntry) int {
	n := 0
	for _, entry := range log {
		if strings.HasPrefix(entry.Message, changedLogPrefix) {
			n++
		}
	}
	return n
}

// CountObservedEntries returns how many audit entries record a
// re-observation without a status change.
func CountObservedEntries(log []tag.LogEntry) int {
	n := 0
	for _, entry := range log {
		if strings.HasPrefix(entry.Message, "observed again") {
			n++
		}
	}
	return n
}

// reconcileDetected applies a "detected" event for a validated reader.
// Caller holds the key lock.
//
// Exactly one of three branches runs:
//   - no record: implicit creation with placeholder metadata and the target
//     status. This is the only implicit-creation path in the system, kept as
//     an explicit branch so the "first ever sighting" stays auditable.
//   - status differs: the transition is applied - status, reader identity
//     and timestamp written, "status changed" entry appended, as one unit.
//   - status already matches: lightweight refresh - reader identity and
//     timestamp updated, "observed again" entry appended, no status write.
func (e *Engine) reconcileDetected(ctx context.Context, token string, key tag.Key, kind tag.ReaderKind, readerIdentity string, now time.Time) error {
	target := kind.StatusFor()

	item, err := e.items.GetItem(ctx, key)
	if err != nil {
		return persistenceFailure(key, "read item", err)
	}

	if item == nil {
		created, err := e.items.CreateItem(ctx, tag.Item{
			Key:            key,
			Title:          placeholderTitle,
			Authors:        []string{placeholderAuthor},
			Status:         target,
			ReaderIdentity: readerIdentity,
			UpdatedAt:      now,
			Log: []tag.LogEntry{
				{Message: firstSightingMessage(target, kind, readerIdentity), Time: now},
			},
		})
		if err != nil {
			return persistenceFailure(key, "create item", err)
		}
		if created {
			slog.Info("item created on first sighting",
				"token", token,
				"key", key,
				"status", target,
				"reader", readerIdentity,
			)
			return nil
		}
		// Another process created the record between our read and write.
		// Re-read and fall through to the normal transition logic.
		item, err = e.items.GetItem(ctx, key)
		if err != nil {
			return persistenceFailure(key, "reread item", err)
		}
		if item == nil {
			return persistenceFailure(key, "reread item", fmt.Errorf("record disappeared after create conflict"))
		}
	}

	if item.Status != target {
		msg := changedMessage(target, kind, readerIdentity)
		if err := e.items.UpdateItemStatus(ctx, key, target, readerIdentity, now, msg); err != nil {
			return persistenceFailure(key, "write status transition", err)
		}
		slog.Info("status changed",
			"token", token,
			"key", key,
			"from", item.Status,
			"to", target,
			"reader", readerIdentity,
		)
		return nil
	}

	if err := e.items.AppendItemLog(ctx, key, readerIdentity, now, observedMessage(kind, readerIdentity)); err != nil {
		return persistenceFailure(key, "append observation", err)
	}
	slog.Debug("item observed again",
		"token", token,
		"key", key,
		"status", item.Status,
		"reader", readerIdentity,
	)
	return nil
}

// reconcileAbsent applies a "no longer detected" event, explicit or
// sweep-originated. Caller holds the key lock.
//
// Disappearance means borrowed, but only from a non-borrowed state: an item
// with no record, or one already borrowed, is left untouched - a borrowed
// item cannot be "returned to not-borrowed" by vanishing from a reader it
// was never on, and absence never creates records.
func (e *Engine) reconcileAbsent(ctx context.Context, token string, key tag.Key, kind tag.ReaderKind, readerIdentity string, now time.Time) error {
	item, err := e.items.GetItem(ctx, key)
	if err != nil {
		return persistenceFailure(key, "read item", err)
	}
	if item == nil {
		slog.Debug("absence for unrecorded item ignored", "token", token, "key", key, "kind", kind)
		return nil
	}
	if item.Status == tag.StatusBorrowed {
		slog.Debug("absence for borrowed item ignored", "token", token, "key", key, "kind", kind)
		return nil
	}

	msg := absentMessage(kind, readerIdentity)
	if err := e.items.UpdateItemStatus(ctx, key, tag.StatusBorrowed, "", now, msg); err != nil {
		return persistenceFailure(key, "write status transition", err)
	}
	slog.Info("status changed",
		"token", token,
		"key", key,
		"from", item.Status,
		"to", tag.StatusBorrowed,
		"reader", readerIdentity,
	)
	return nil
}
