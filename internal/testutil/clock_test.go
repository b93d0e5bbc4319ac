package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClock(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	clock := NewManualClock(start)

	assert.Equal(t, start, clock.Now())
	// Frozen: repeated reads return the same instant.
	assert.Equal(t, start, clock.Now())

	clock.Advance(6 * time.Second)
	assert.Equal(t, start.Add(6*time.Second), clock.Now())

	jump := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
	clock.Set(jump)
	assert.Equal(t, jump, clock.Now())
}
