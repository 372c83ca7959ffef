package localindex

import (
	"context"
	"sync"
	"time"

	"github.com/tonimelisma/coldbackup/internal/engine"
)

// stateRow is one in-memory local_state entry.
type stateRow struct {
	modified time.Time
	hash     string
	hashOK   bool
}

// Memory is an in-process engine.LocalIndex, used by tests. The CLI always
// opens the SQLite-backed Store.
type Memory struct {
	mu   sync.Mutex
	rows map[string]*stateRow
}

var _ engine.LocalIndex = (*Memory)(nil)

// NewMemory returns an empty in-memory LocalIndex.
func NewMemory() *Memory {
	return &Memory{rows: make(map[string]*stateRow)}
}

func (m *Memory) InsertOrUpdate(_ context.Context, path string, modified time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[path]
	if !ok {
		row = &stateRow{}
		m.rows[path] = row
	}

	row.modified = modified.UTC()

	return nil
}

func (m *Memory) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.rows, path)

	return nil
}

func (m *Memory) Diff(_ context.Context, observed []engine.ObservedPath) (engine.ChangeSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cs engine.ChangeSet

	seen := make(map[string]struct{}, len(observed))

	for _, op := range observed {
		seen[op.Path] = struct{}{}

		row, ok := m.rows[op.Path]
		if !ok {
			cs.New = append(cs.New, op.Path)
			continue
		}

		if !row.modified.Equal(op.Modified.UTC()) {
			cs.Modified = append(cs.Modified, op.Path)
		}
	}

	for path := range m.rows {
		if _, ok := seen[path]; !ok {
			cs.Removed = append(cs.Removed, path)
		}
	}

	return cs, nil
}

func (m *Memory) AllPaths(_ context.Context) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]struct{}, len(m.rows))
	for path := range m.rows {
		out[path] = struct{}{}
	}

	return out, nil
}

func (m *Memory) HashHint(_ context.Context, path string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[path]
	if !ok || !row.hashOK {
		return "", false, nil
	}

	return row.hash, true, nil
}

func (m *Memory) RecordHashHint(_ context.Context, path, hash string, modified time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[path]
	if !ok {
		row = &stateRow{}
		m.rows[path] = row
	}

	row.hash = hash
	row.hashOK = true
	row.modified = modified.UTC()

	return nil
}

func (m *Memory) RemoveHashHint(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if row, ok := m.rows[path]; ok {
		row.hash = ""
		row.hashOK = false
	}

	return nil
}

func (m *Memory) Close() error { return nil }
