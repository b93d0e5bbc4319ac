package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shelftrack/internal/tag"
)

func TestFirstSightingCreatesItem(t *testing.T) {
	e, s, _ := newTestEngine(t)
	ctx := context.Background()
	registerReader(t, s, shelfIdentity, tag.KindShelf, "Fiction A")

	require.NoError(t, e.SubmitDetection(ctx, shelfIdentity, itemKey, tag.KindShelf, true))

	item, err := s.GetItem(ctx, itemKey)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, tag.StatusInLibrary, item.Status)
	assert.Equal(t, "Unknown", item.Title)
	assert.Equal(t, []string{"Unknown"}, item.Authors)
	assert.Equal(t, shelfIdentity, item.ReaderIdentity)
	assert.Equal(t, baseTime, item.UpdatedAt)
	// First sighting counts as one status transition.
	assert.Equal(t, 1, CountChangedEntries(item.Log))
	assert.Equal(t, 0, CountObservedEntries(item.Log))
}

func TestDetectionIdempotence(t *testing.T) {
	e, s, clock := newTestEngine(t)
	ctx := context.Background()
	registerReader(t, s, shelfIdentity, tag.KindShelf, "Fiction A")

	// Same detection N times: exactly one "changed" entry, N-1 "observed
	// again" entries.
	const n = 5
	for i := 0; i < n; i++ {
		require.NoError(t, e.SubmitDetection(ctx, shelfIdentity, itemKey, tag.KindShelf, true))
		clock.Advance(100 * time.Millisecond)
	}

	item, err := s.GetItem(ctx, itemKey)
	require.NoError(t, err)
	assert.Equal(t, tag.StatusInLibrary, item.Status)
	assert.Equal(t, 1, CountChangedEntries(item.Log))
	assert.Equal(t, n-1, CountObservedEntries(item.Log))
	require.Len(t, item.Log, n)
}

func TestRefreshUpdatesReaderAndTimestamp(t *testing.T) {
	e, s, clock := newTestEngine(t)
	ctx := context.Background()
	registerReader(t, s, shelfIdentity, tag.KindShelf, "Fiction A")
	registerReader(t, s, "192.168.1.102", tag.KindShelf, "Fiction B")

	require.NoError(t, e.SubmitDetection(ctx, shelfIdentity, itemKey, tag.KindShelf, true))

	clock.Advance(2 * time.Second)
	// Re-detection by a different shelf reader refreshes identity and time
	// without a status write.
	require.NoError(t, e.SubmitDetection(ctx, "192.168.1.102", itemKey, tag.KindShelf, true))

	item, err := s.GetItem(ctx, itemKey)
	require.NoError(t, err)
	assert.Equal(t, tag.StatusInLibrary, item.Status)
	assert.Equal(t, "192.168.1.102", item.ReaderIdentity)
	assert.Equal(t, baseTime.Add(2*time.Second), item.UpdatedAt)
	assert.Equal(t, 1, CountChangedEntries(item.Log))
}

func TestShelfThenReturnStation(t *testing.T) {
	e, s, _ := newTestEngine(t)
	ctx := context.Background()
	registerReader(t, s, shelfIdentity, tag.KindShelf, "Fiction A")
	registerReader(t, s, stationIdentity, tag.KindReturnStation, "Lobby")

	require.NoError(t, e.SubmitDetection(ctx, shelfIdentity, itemKey, tag.KindShelf, true))
	require.NoError(t, e.SubmitDetection(ctx, stationIdentity, itemKey, tag.KindReturnStation, true))

	item, err := s.GetItem(ctx, itemKey)
	require.NoError(t, err)
	assert.Equal(t, tag.StatusInReturnStation, item.Status)
	assert.Equal(t, stationIdentity, item.ReaderIdentity)
	assert.Equal(t, 2, CountChangedEntries(item.Log))

	// Both kinds keep independent presence entries.
	assert.True(t, e.Presence().Seen(tag.KindShelf, itemKey))
	assert.True(t, e.Presence().Seen(tag.KindReturnStation, itemKey))
}

func TestExplicitAbsence(t *testing.T) {
	e, s, _ := newTestEngine(t)
	ctx := context.Background()
	registerReader(t, s, shelfIdentity, tag.KindShelf, "Fiction A")

	require.NoError(t, e.SubmitDetection(ctx, shelfIdentity, itemKey, tag.KindShelf, true))
	require.NoError(t, e.SubmitDetection(ctx, shelfIdentity, itemKey, tag.KindShelf, false))

	item, err := s.GetItem(ctx, itemKey)
	require.NoError(t, err)
	assert.Equal(t, tag.StatusBorrowed, item.Status)
	assert.Empty(t, item.ReaderIdentity)
	assert.Equal(t, 2, CountChangedEntries(item.Log))
	assert.False(t, e.Presence().Seen(tag.KindShelf, itemKey))
}

func TestAbsenceForBorrowedItemIsNoOp(t *testing.T) {
	e, s, _ := newTestEngine(t)
	ctx := context.Background()
	registerReader(t, s, shelfIdentity, tag.KindShelf, "Fiction A")

	require.NoError(t, e.SubmitDetection(ctx, shelfIdentity, itemKey, tag.KindShelf, true))
	require.NoError(t, e.SubmitDetection(ctx, shelfIdentity, itemKey, tag.KindShelf, false))

	before, err := s.GetItem(ctx, itemKey)
	require.NoError(t, err)

	// A second absence changes nothing - no status write, no log entry.
	require.NoError(t, e.SubmitDetection(ctx, shelfIdentity, itemKey, tag.KindShelf, false))

	after, err := s.GetItem(ctx, itemKey)
	require.NoError(t, err)
	assert.Equal(t, tag.StatusBorrowed, after.Status)
	assert.Len(t, after.Log, len(before.Log))
}

func TestAbsenceForUnrecordedItemIsNoOp(t *testing.T) {
	e, s, _ := newTestEngine(t)
	ctx := context.Background()
	registerReader(t, s, shelfIdentity, tag.KindShelf, "Fiction A")

	// Absence never creates records.
	require.NoError(t, e.SubmitDetection(ctx, shelfIdentity, itemKey, tag.KindShelf, false))

	item, err := s.GetItem(ctx, itemKey)
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestReturnStationRoundTrip(t *testing.T) {
	// End-to-end shape of a checkout: shelf -> return station -> gone.
	e, s, _ := newTestEngine(t)
	ctx := context.Background()
	registerReader(t, s, shelfIdentity, tag.KindShelf, "Fiction A")
	registerReader(t, s, stationIdentity, tag.KindReturnStation, "Lobby")

	require.NoError(t, e.SubmitDetection(ctx, shelfIdentity, itemKey, tag.KindShelf, true))
	require.NoError(t, e.SubmitDetection(ctx, stationIdentity, itemKey, tag.KindReturnStation, true))
	require.NoError(t, e.SubmitDetection(ctx, stationIdentity, itemKey, tag.KindReturnStation, false))

	item, err := s.GetItem(ctx, itemKey)
	require.NoError(t, err)
	assert.Equal(t, tag.StatusBorrowed, item.Status)
	assert.Equal(t, 3, CountChangedEntries(item.Log))
}

func TestConcurrentDuplicateDetections(t *testing.T) {
	e, s, _ := newTestEngine(t, WithEventTokens(UUIDv7Generator{}))
	ctx := context.Background()
	registerReader(t, s, shelfIdentity, tag.KindShelf, "Fiction A")

	// Many goroutines re-assert the same target status concurrently. The
	// per-key lock must serialize them past the idempotence check: exactly
	// one "changed" entry, no lost log appends.
	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = e.SubmitDetection(ctx, shelfIdentity, itemKey, tag.KindShelf, true)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}

	item, err := s.GetItem(ctx, itemKey)
	require.NoError(t, err)
	assert.Equal(t, tag.StatusInLibrary, item.Status)
	assert.Equal(t, 1, CountChangedEntries(item.Log))
	assert.Equal(t, workers-1, CountObservedEntries(item.Log))
	require.Len(t, item.Log, workers)
	assert.Equal(t, 0, e.locks.len())
}

func TestConcurrentDistinctKeys(t *testing.T) {
	e, s, _ := newTestEngine(t, WithEventTokens(UUIDv7Generator{}))
	ctx := context.Background()
	registerReader(t, s, shelfIdentity, tag.KindShelf, "Fiction A")

	keys := []string{"000000000001", "000000000002", "000000000003", "000000000004"}
	var wg sync.WaitGroup
	for _, k := range keys {
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			assert.NoError(t, e.SubmitDetection(ctx, shelfIdentity, k, tag.KindShelf, true))
		}(k)
	}
	wg.Wait()

	items, err := s.ListItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, len(keys))
}
