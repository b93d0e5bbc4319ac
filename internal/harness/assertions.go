package harness

import (
	"context"
	"fmt"

	"github.com/roach88/shelftrack/internal/engine"
	"github.com/roach88/shelftrack/internal/store"
	"github.com/roach88/shelftrack/internal/tag"
)

// evaluateAssertions checks every assertion against the final engine and
// store state, returning one failure message per unmet assertion.
func evaluateAssertions(ctx context.Context, eng *engine.Engine, st *store.Store, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if msg := evaluateAssertion(ctx, eng, st, &a); msg != "" {
			failures = append(failures, fmt.Sprintf("assertions[%d] (%s): %s", i, a.Type, msg))
		}
	}
	return failures
}

func evaluateAssertion(ctx context.Context, eng *engine.Engine, st *store.Store, a *Assertion) string {
	key, err := tag.NormalizeKey(a.Key)
	if err != nil {
		return fmt.Sprintf("invalid key %q", a.Key)
	}

	switch a.Type {
	case AssertItemStatus:
		item, err := st.GetItem(ctx, key)
		if err != nil {
			return fmt.Sprintf("reading item: %v", err)
		}
		if item == nil {
			return fmt.Sprintf("no record for key %s", key)
		}
		if item.Status != tag.Status(a.Status) {
			return fmt.Sprintf("key %s has status %q, want %q", key, item.Status, a.Status)
		}

	case AssertLogCount:
		item, err := st.GetItem(ctx, key)
		if err != nil {
			return fmt.Sprintf("reading item: %v", err)
		}
		if item == nil {
			return fmt.Sprintf("no record for key %s", key)
		}
		if got := engine.CountChangedEntries(item.Log); got != a.Changed {
			return fmt.Sprintf("key %s has %d status-change log entries, want %d", key, got, a.Changed)
		}
		if got := engine.CountObservedEntries(item.Log); got != a.Observed {
			return fmt.Sprintf("key %s has %d observed-again log entries, want %d", key, got, a.Observed)
		}

	case AssertPresence:
		listed := eng.Presence().Seen(tag.ReaderKind(a.Kind), key)
		if listed != a.Listed {
			return fmt.Sprintf("key %s listed=%t on %s presence, want %t", key, listed, a.Kind, a.Listed)
		}
	}
	return ""
}
