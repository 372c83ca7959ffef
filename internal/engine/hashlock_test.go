package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHashLockTable_SerializesSameHash(t *testing.T) {
	table := newHashLockTable()

	var order []int
	var active, maxActive int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)

		go func() {
			defer wg.Done()

			unlock := table.lockFor("same-hash")
			defer unlock()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			order = append(order, i)
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}

	wg.Wait()
	assert.Len(t, order, 5)
	assert.Equal(t, 1, maxActive, "at most one goroutine may hold the same hash's lock at a time")
}

func TestHashLockTable_DoesNotSerializeDifferentHashes(t *testing.T) {
	table := newHashLockTable()

	unlockA := table.lockFor("hash-a")
	defer unlockA()

	done := make(chan struct{})

	go func() {
		unlockB := table.lockFor("hash-b")
		defer unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lockFor on a different hash should not block")
	}
}
