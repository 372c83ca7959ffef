package blobstore

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/tonimelisma/coldbackup/internal/engine"
)

// memObject tracks an in-memory blob plus whether it is currently
// delete-marked, modeling S3 versioning well enough to exercise the
// Upserter's undelete path in tests.
type memObject struct {
	data    []byte
	deleted bool
}

// Memory is an in-process engine.BlobStore, used by tests.
type Memory struct {
	mu      sync.Mutex
	objects map[string]*memObject
}

var _ engine.BlobStore = (*Memory)(nil)

// NewMemory returns an empty in-memory BlobStore.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]*memObject)}
}

func (m *Memory) Put(_ context.Context, hash string, r io.Reader, _ int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[hash] = &memObject{data: data}

	return nil
}

func (m *Memory) Get(_ context.Context, hash string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[hash]
	if !ok || obj.deleted {
		return nil, engine.ErrNotFound
	}

	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (m *Memory) Delete(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[hash]
	if !ok {
		return engine.ErrNotFound
	}

	obj.deleted = true

	return nil
}

func (m *Memory) Undelete(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[hash]
	if !ok || !obj.deleted {
		return engine.ErrNotFound
	}

	obj.deleted = false

	return nil
}

func (m *Memory) Exists(_ context.Context, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[hash]

	return ok && !obj.deleted, nil
}
