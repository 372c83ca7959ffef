package remoteindex

import (
	"context"
	"sync"

	"github.com/tonimelisma/coldbackup/internal/engine"
)

// Memory is an in-process engine.RemoteIndex, used by tests.
type Memory struct {
	mu      sync.Mutex
	records map[string]*engine.RemoteHashRecord
}

var _ engine.RemoteIndex = (*Memory)(nil)

// NewMemory returns an empty in-memory RemoteIndex.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]*engine.RemoteHashRecord)}
}

func (m *Memory) Get(_ context.Context, hash string) (*engine.RemoteHashRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[hash]
	if !ok {
		return nil, nil
	}

	return r.Clone(), nil
}

func (m *Memory) Put(_ context.Context, record *engine.RemoteHashRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[record.Hash] = record.Clone()

	return nil
}

func (m *Memory) Delete(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, hash)

	return nil
}

func (m *Memory) Scan(_ context.Context, cb func(*engine.RemoteHashRecord) error) error {
	m.mu.Lock()
	snapshot := make([]*engine.RemoteHashRecord, 0, len(m.records))

	for _, r := range m.records {
		snapshot = append(snapshot, r.Clone())
	}
	m.mu.Unlock()

	for _, r := range snapshot {
		if err := cb(r); err != nil {
			return err
		}
	}

	return nil
}
