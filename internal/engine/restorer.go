package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tonimelisma/coldbackup/internal/retry"
)

// dirPermissions is the Unix permission mode used for directories created
// while reconstructing a tree.
const dirPermissions = 0o755

// filePermissions is the Unix permission mode used for restored files.
const filePermissions = 0o644

// Restorer reconstructs a directory tree from RemoteIndex + BlobStore
// alone (sync-algorithm.md §4.9).
type Restorer struct {
	remote RemoteIndex
	blobs  BlobStore
	logger *slog.Logger
}

// NewRestorer wires a Restorer.
func NewRestorer(remote RemoteIndex, blobs BlobStore, logger *slog.Logger) *Restorer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Restorer{remote: remote, blobs: blobs, logger: logger}
}

// RestoreError records one path that failed to restore, without aborting
// the overall run (sync-algorithm.md §4.9: "Errors per-path are collected
// and reported; the run continues.").
type RestoreError struct {
	Path string
	Err  error
}

// Restore reconstructs every live path from RemoteIndex.Scan into dest,
// fetching each hash's bytes from BlobStore exactly once regardless of how
// many paths share it. Returns the count of files written and any
// per-path errors.
func (r *Restorer) Restore(ctx context.Context, dest string) (written int, errs []RestoreError) {
	scanErr := r.remote.Scan(ctx, func(rec *RemoteHashRecord) error {
		if rec.Empty() {
			return nil
		}

		n, recErrs := r.restoreRecord(ctx, dest, rec)
		written += n
		errs = append(errs, recErrs...)

		return nil
	})
	if scanErr != nil {
		errs = append(errs, RestoreError{Path: "", Err: fmt.Errorf("engine: scan remote index: %w", scanErr)})
	}

	return written, errs
}

func (r *Restorer) restoreRecord(ctx context.Context, dest string, rec *RemoteHashRecord) (int, []RestoreError) {
	var rc io.ReadCloser

	err := retry.Do(ctx, isTransientRemoteErr, func(ctx context.Context) error {
		got, getErr := r.blobs.Get(ctx, rec.Hash)
		if getErr != nil {
			return wrapRemoteErr("get_blob", rec.Hash, getErr)
		}

		rc = got

		return nil
	})
	if err != nil {
		errs := make([]RestoreError, 0, len(rec.FileNames))
		for p := range rec.FileNames {
			errs = append(errs, RestoreError{Path: p, Err: err})
		}

		return 0, errs
	}
	defer rc.Close()

	// Buffer the blob once so it can be written to every path sharing this
	// hash without re-fetching (sync-algorithm.md §4.9: "calls
	// BlobStore.get(hash) once").
	data, err := io.ReadAll(rc)
	if err != nil {
		errs := make([]RestoreError, 0, len(rec.FileNames))
		for p := range rec.FileNames {
			errs = append(errs, RestoreError{Path: p, Err: fmt.Errorf("engine: read blob %s: %w", rec.Hash, err)})
		}

		return 0, errs
	}

	written := 0

	var errs []RestoreError

	for p := range rec.FileNames {
		if err := writeUnderRoot(dest, p, data); err != nil {
			errs = append(errs, RestoreError{Path: p, Err: err})
			continue
		}

		written++
	}

	return written, errs
}

// writeUnderRoot writes data to logicalPath rooted at dest, stripping any
// leading path separators and creating intermediate directories.
func writeUnderRoot(dest, logicalPath string, data []byte) error {
	clean := strings.TrimLeft(filepath.ToSlash(logicalPath), "/")
	target := filepath.Join(dest, filepath.FromSlash(clean))

	if err := os.MkdirAll(filepath.Dir(target), dirPermissions); err != nil {
		return fmt.Errorf("engine: mkdir for restore %s: %w", logicalPath, err)
	}

	if err := os.WriteFile(target, data, filePermissions); err != nil {
		return fmt.Errorf("engine: write restored file %s: %w", logicalPath, err)
	}

	return nil
}
