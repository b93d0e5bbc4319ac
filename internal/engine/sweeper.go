package engine

import (
	"context"
	"log/slog"
	"time"
)

// RunSweeper runs the expiry sweeper loop: every sweep interval, presence
// entries older than the presence timeout are evicted and fed to the
// reconciler as synthetic absence events.
//
// Blocks until the context is cancelled. Call from exactly one goroutine.
func (e *Engine) RunSweeper(ctx context.Context) error {
	slog.Info("sweeper starting",
		"interval", e.sweepInterval,
		"timeout", e.presenceTimeout,
	)

	ticker := time.NewTicker(e.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sweeper stopping: context cancelled")
			return ctx.Err()
		case <-ticker.C:
			e.SweepNow(ctx)
		}
	}
}

// SweepNow performs one sweep pass and returns the number of absence
// transitions processed. Exposed separately from RunSweeper so tests and the
// conformance harness can drive expiry with a manual clock.
//
// ERROR HANDLING: a store failure during one entry's transition is logged
// and skipped - a single record's transient persistence failure must not
// halt cleanup of the others. The presence entry stays evicted either way;
// the next real detection rebuilds it.
func (e *Engine) SweepNow(ctx context.Context) int {
	now := e.now()
	expired := e.presence.SweepExpired(now, e.presenceTimeout)
	if len(expired) == 0 {
		return 0
	}

	processed := 0
	for _, entry := range expired {
		token := e.tokens.Generate()

		unlock := e.locks.lock(entry.Key)
		// An event between eviction and lock acquisition may have re-marked
		// the pair present; its detection already holds newer truth than
		// this expiry, so the synthetic absence is dropped.
		if e.presence.Seen(entry.Kind, entry.Key) {
			unlock()
			slog.Debug("expiry superseded by re-detection", "token", token, "key", entry.Key, "kind", entry.Kind)
			continue
		}
		err := e.reconcileAbsent(ctx, token, entry.Key, entry.Kind, entry.ReaderIdentity, now)
		unlock()

		if err != nil {
			slog.Error("sweep transition failed",
				"token", token,
				"key", entry.Key,
				"kind", entry.Kind,
				"reader", entry.ReaderIdentity,
				"error", err,
			)
			continue
		}
		processed++
	}

	slog.Debug("sweep pass complete", "expired", len(expired), "processed", processed)
	return processed
}
