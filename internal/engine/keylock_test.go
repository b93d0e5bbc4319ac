package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyLocksSerializeSameKey(t *testing.T) {
	locks := newKeyLocks()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock("A1B2C3D4E5F6")
			defer unlock()
			counter++ // data race here would trip -race
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, locks.len())
}

func TestKeyLocksReleaseRemovesEntry(t *testing.T) {
	locks := newKeyLocks()

	unlock1 := locks.lock("000000000001")
	unlock2 := locks.lock("000000000002")
	assert.Equal(t, 2, locks.len())

	unlock1()
	assert.Equal(t, 1, locks.len())
	unlock2()
	assert.Equal(t, 0, locks.len())
}

func TestKeyLocksDistinctKeysDoNotBlock(t *testing.T) {
	locks := newKeyLocks()

	unlock := locks.lock("000000000001")
	defer unlock()

	done := make(chan struct{})
	go func() {
		u := locks.lock("000000000002")
		u()
		close(done)
	}()
	<-done // would deadlock if keys shared a lock
}
