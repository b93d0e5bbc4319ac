package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shelftrack/internal/tag"
	"github.com/roach88/shelftrack/internal/testutil"
)

func TestSweepExpiresStalePresence(t *testing.T) {
	e, s, clock := newTestEngine(t)
	ctx := context.Background()
	registerReader(t, s, shelfIdentity, tag.KindShelf, "Fiction A")

	require.NoError(t, e.SubmitDetection(ctx, shelfIdentity, itemKey, tag.KindShelf, true))

	// Not yet stale.
	clock.Advance(3 * time.Second)
	assert.Equal(t, 0, e.SweepNow(ctx))
	assert.True(t, e.Presence().Seen(tag.KindShelf, itemKey))

	// Past the 5s default timeout: the entry expires and the synthetic
	// absence flips the item to borrowed - exactly once.
	clock.Advance(3 * time.Second)
	assert.Equal(t, 1, e.SweepNow(ctx))
	assert.False(t, e.Presence().Seen(tag.KindShelf, itemKey))

	item, err := s.GetItem(ctx, itemKey)
	require.NoError(t, err)
	assert.Equal(t, tag.StatusBorrowed, item.Status)
	assert.Empty(t, item.ReaderIdentity)
	assert.Equal(t, 2, CountChangedEntries(item.Log))

	// A second sweep finds nothing: sweeping an entry that doesn't exist
	// is a no-op.
	assert.Equal(t, 0, e.SweepNow(ctx))
	after, err := s.GetItem(ctx, itemKey)
	require.NoError(t, err)
	assert.Len(t, after.Log, len(item.Log))
}

func TestSweepRespectsBorrowedGuard(t *testing.T) {
	e, s, clock := newTestEngine(t)
	ctx := context.Background()
	registerReader(t, s, shelfIdentity, tag.KindShelf, "Fiction A")
	registerReader(t, s, stationIdentity, tag.KindReturnStation, "Lobby")

	// Item went borrowed via explicit absence, but a stale return station
	// entry for the same key still exists. Its expiry must not touch the
	// already-borrowed record.
	require.NoError(t, e.SubmitDetection(ctx, stationIdentity, itemKey, tag.KindReturnStation, true))
	require.NoError(t, e.SubmitDetection(ctx, shelfIdentity, itemKey, tag.KindShelf, true))
	require.NoError(t, e.SubmitDetection(ctx, shelfIdentity, itemKey, tag.KindShelf, false))

	before, err := s.GetItem(ctx, itemKey)
	require.NoError(t, err)
	require.Equal(t, tag.StatusBorrowed, before.Status)

	clock.Advance(6 * time.Second)
	e.SweepNow(ctx)

	after, err := s.GetItem(ctx, itemKey)
	require.NoError(t, err)
	assert.Equal(t, tag.StatusBorrowed, after.Status)
	assert.Len(t, after.Log, len(before.Log))
	assert.False(t, e.Presence().Seen(tag.KindReturnStation, itemKey))
}

func TestSweepRefreshedEntrySurvives(t *testing.T) {
	e, s, clock := newTestEngine(t)
	ctx := context.Background()
	registerReader(t, s, shelfIdentity, tag.KindShelf, "Fiction A")

	require.NoError(t, e.SubmitDetection(ctx, shelfIdentity, itemKey, tag.KindShelf, true))

	// Refresh just before the deadline keeps the entry alive.
	clock.Advance(4 * time.Second)
	require.NoError(t, e.SubmitDetection(ctx, shelfIdentity, itemKey, tag.KindShelf, true))
	clock.Advance(4 * time.Second)

	assert.Equal(t, 0, e.SweepNow(ctx))
	assert.True(t, e.Presence().Seen(tag.KindShelf, itemKey))

	item, err := s.GetItem(ctx, itemKey)
	require.NoError(t, err)
	assert.Equal(t, tag.StatusInLibrary, item.Status)
}

// flakyItemStore wraps an ItemStore and fails status writes for chosen keys.
type flakyItemStore struct {
	ItemStore
	failStatus map[tag.Key]bool
}

func (f *flakyItemStore) UpdateItemStatus(ctx context.Context, key tag.Key, status tag.Status, readerIdentity string, at time.Time, logMessage string) error {
	if f.failStatus[key] {
		return errors.New("simulated store outage")
	}
	return f.ItemStore.UpdateItemStatus(ctx, key, status, readerIdentity, at, logMessage)
}

func TestSweepContinuesPastPersistenceFailure(t *testing.T) {
	s := setupTestStore(t)
	clock := testutil.NewManualClock(baseTime)
	flaky := &flakyItemStore{ItemStore: s, failStatus: map[tag.Key]bool{"000000000001": true}}
	e := New(flaky, s,
		WithClock(clock.Now),
		WithEventTokens(NewSequenceGenerator("tok")),
	)
	ctx := context.Background()
	registerReader(t, s, shelfIdentity, tag.KindShelf, "Fiction A")

	require.NoError(t, e.SubmitDetection(ctx, shelfIdentity, "000000000001", tag.KindShelf, true))
	require.NoError(t, e.SubmitDetection(ctx, shelfIdentity, "000000000002", tag.KindShelf, true))

	clock.Advance(6 * time.Second)

	// The failing key is logged and skipped; the other expiry still lands.
	assert.Equal(t, 1, e.SweepNow(ctx))

	healthy, err := s.GetItem(ctx, "000000000002")
	require.NoError(t, err)
	assert.Equal(t, tag.StatusBorrowed, healthy.Status)

	stuck, err := s.GetItem(ctx, "000000000001")
	require.NoError(t, err)
	assert.Equal(t, tag.StatusInLibrary, stuck.Status)
}

func TestSubmitDetectionPersistenceFailure(t *testing.T) {
	s := setupTestStore(t)
	clock := testutil.NewManualClock(baseTime)
	flaky := &flakyItemStore{ItemStore: s, failStatus: map[tag.Key]bool{itemKey: true}}
	e := New(flaky, s,
		WithClock(clock.Now),
		WithEventTokens(NewSequenceGenerator("tok")),
	)
	ctx := context.Background()
	registerReader(t, s, shelfIdentity, tag.KindShelf, "Fiction A")
	registerReader(t, s, stationIdentity, tag.KindReturnStation, "Lobby")

	require.NoError(t, e.SubmitDetection(ctx, shelfIdentity, itemKey, tag.KindShelf, true))

	// The transition write fails: surfaced as PERSISTENCE_FAILURE for the
	// caller to retry at transport level. The presence update has already
	// happened - it is reconstructible, the durable record is not.
	err := e.SubmitDetection(ctx, stationIdentity, itemKey, tag.KindReturnStation, true)
	assert.True(t, IsPersistenceFailure(err), "got %v", err)
	assert.True(t, e.Presence().Seen(tag.KindReturnStation, itemKey))

	item, getErr := s.GetItem(ctx, itemKey)
	require.NoError(t, getErr)
	assert.Equal(t, tag.StatusInLibrary, item.Status)
	assert.Equal(t, 1, CountChangedEntries(item.Log))
}

func TestRunSweeperStopsOnCancel(t *testing.T) {
	e, _, _ := newTestEngine(t, WithSweepInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.RunSweeper(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop on context cancellation")
	}
}
