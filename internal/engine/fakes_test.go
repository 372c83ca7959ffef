package engine

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"
)

// newBytesReader is a small helper so tests can pass string content
// directly to BlobStore.Put without importing strings/bytes at each call
// site.
func newBytesReader(s string) io.Reader {
	return bytes.NewReader([]byte(s))
}

// fakeRemote is a minimal in-process RemoteIndex for unit tests below the
// orchestrator level, avoiding a dependency on internal/remoteindex (which
// imports this package).
type fakeRemote struct {
	mu      sync.Mutex
	records map[string]*RemoteHashRecord
}

var _ RemoteIndex = (*fakeRemote)(nil)

func newFakeRemote() *fakeRemote {
	return &fakeRemote{records: make(map[string]*RemoteHashRecord)}
}

func (f *fakeRemote) Get(_ context.Context, hash string) (*RemoteHashRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.records[hash]
	if !ok {
		return nil, nil
	}

	return r.Clone(), nil
}

func (f *fakeRemote) Put(_ context.Context, record *RemoteHashRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.records[record.Hash] = record.Clone()

	return nil
}

func (f *fakeRemote) Delete(_ context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.records, hash)

	return nil
}

func (f *fakeRemote) Scan(_ context.Context, cb func(*RemoteHashRecord) error) error {
	f.mu.Lock()
	snapshot := make([]*RemoteHashRecord, 0, len(f.records))
	for _, r := range f.records {
		snapshot = append(snapshot, r.Clone())
	}
	f.mu.Unlock()

	for _, r := range snapshot {
		if err := cb(r); err != nil {
			return err
		}
	}

	return nil
}

// fakeBlobObject tracks one blob's bytes and delete-marker state.
type fakeBlobObject struct {
	data    []byte
	deleted bool
}

// fakeBlobs is a minimal in-process BlobStore for unit tests.
type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string]*fakeBlobObject

	// failNextPut, when set, makes the next Put call fail with this error.
	failNextPut error
}

var _ BlobStore = (*fakeBlobs)(nil)

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string]*fakeBlobObject)}
}

func (f *fakeBlobs) Put(_ context.Context, hash string, r io.Reader, _ int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failNextPut != nil {
		err := f.failNextPut
		f.failNextPut = nil

		return err
	}

	f.objects[hash] = &fakeBlobObject{data: data}

	return nil
}

func (f *fakeBlobs) Get(_ context.Context, hash string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	obj, ok := f.objects[hash]
	if !ok || obj.deleted {
		return nil, ErrNotFound
	}

	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (f *fakeBlobs) Delete(_ context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	obj, ok := f.objects[hash]
	if !ok {
		return ErrNotFound
	}

	obj.deleted = true

	return nil
}

func (f *fakeBlobs) Undelete(_ context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	obj, ok := f.objects[hash]
	if !ok || !obj.deleted {
		return ErrNotFound
	}

	obj.deleted = false

	return nil
}

func (f *fakeBlobs) Exists(_ context.Context, hash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	obj, ok := f.objects[hash]

	return ok && !obj.deleted, nil
}

// fakeLocalRow is one in-memory local index entry.
type fakeLocalRow struct {
	modified time.Time
	hash     string
	hashOK   bool
}

// fakeLocal is a minimal in-process LocalIndex for unit tests.
type fakeLocal struct {
	mu   sync.Mutex
	rows map[string]*fakeLocalRow
}

var _ LocalIndex = (*fakeLocal)(nil)

func newFakeLocal() *fakeLocal {
	return &fakeLocal{rows: make(map[string]*fakeLocalRow)}
}

func (l *fakeLocal) InsertOrUpdate(_ context.Context, path string, modified time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	row, ok := l.rows[path]
	if !ok {
		row = &fakeLocalRow{}
		l.rows[path] = row
	}

	row.modified = modified

	return nil
}

func (l *fakeLocal) Delete(_ context.Context, path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.rows, path)

	return nil
}

func (l *fakeLocal) Diff(_ context.Context, observed []ObservedPath) (ChangeSet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var cs ChangeSet

	seen := make(map[string]struct{}, len(observed))

	for _, op := range observed {
		seen[op.Path] = struct{}{}

		row, ok := l.rows[op.Path]
		if !ok {
			cs.New = append(cs.New, op.Path)
			continue
		}

		if !row.modified.Equal(op.Modified) {
			cs.Modified = append(cs.Modified, op.Path)
		}
	}

	for path := range l.rows {
		if _, ok := seen[path]; !ok {
			cs.Removed = append(cs.Removed, path)
		}
	}

	return cs, nil
}

func (l *fakeLocal) AllPaths(_ context.Context) (map[string]struct{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]struct{}, len(l.rows))
	for path := range l.rows {
		out[path] = struct{}{}
	}

	return out, nil
}

func (l *fakeLocal) HashHint(_ context.Context, path string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	row, ok := l.rows[path]
	if !ok || !row.hashOK {
		return "", false, nil
	}

	return row.hash, true, nil
}

func (l *fakeLocal) RecordHashHint(_ context.Context, path, hash string, modified time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	row, ok := l.rows[path]
	if !ok {
		row = &fakeLocalRow{}
		l.rows[path] = row
	}

	row.hash = hash
	row.hashOK = true
	row.modified = modified

	return nil
}

func (l *fakeLocal) RemoveHashHint(_ context.Context, path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if row, ok := l.rows[path]; ok {
		row.hash = ""
		row.hashOK = false
	}

	return nil
}

func (l *fakeLocal) Close() error { return nil }
