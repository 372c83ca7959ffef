package engine

import "sync"

// hashLockTable hands out a *sync.Mutex per content hash so the engine can
// serialize RemoteIndex updates to the same hash across concurrent worker
// tasks (sync-algorithm.md §5: "the engine must serialize RemoteIndex
// updates to that hash"), without serializing unrelated hashes against each
// other.
type hashLockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newHashLockTable() *hashLockTable {
	return &hashLockTable{locks: make(map[string]*sync.Mutex)}
}

// lockFor returns the mutex for hash, creating it on first use. Callers
// must call the returned unlock function exactly once.
func (t *hashLockTable) lockFor(hash string) (unlock func()) {
	t.mu.Lock()
	m, ok := t.locks[hash]

	if !ok {
		m = &sync.Mutex{}
		t.locks[hash] = m
	}

	t.mu.Unlock()

	m.Lock()

	return m.Unlock
}
