// Package localindex implements engine.LocalIndex against an embedded
// SQLite database: the authoritative per-path modification-time mirror
// plus an advisory secondary index from path to its last-known content hash (sync-algorithm.md
// §6: "two tables; both keyed by file_path").
package localindex

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure-Go driver, registers as "sqlite"

	"github.com/tonimelisma/coldbackup/internal/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// walJournalSizeLimit bounds the WAL file before a checkpoint is forced.
const walJournalSizeLimit = 64 * 1024 * 1024

// Store is a SQLite-backed engine.LocalIndex. Safe only for sequential use
// from the coordinating task, per the interface's documented contract.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	stmtUpsertState   *sql.Stmt
	stmtDeleteState   *sql.Stmt
	stmtListState     *sql.Stmt
	stmtUpsertGlacier *sql.Stmt
	stmtGetGlacier    *sql.Stmt
	stmtDeleteGlacier *sql.Stmt
}

var _ engine.LocalIndex = (*Store)(nil)

// Open opens (creating if absent) the SQLite database at path, applies
// pending migrations, and prepares the store's statements. Use ":memory:"
// for tests.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("localindex: opening database", "path", path)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("localindex: open: %w", err)
	}

	ctx := context.Background()

	if err := setPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, logger: logger}

	if err := s.prepare(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("localindex: prepare statements: %w", err)
	}

	return s, nil
}

func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit),
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("localindex: set pragma %q: %w", p, err)
		}
	}

	return nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("localindex: migrations sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("localindex: migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("localindex: apply migrations: %w", err)
	}

	return nil
}

func (s *Store) prepare(ctx context.Context) error {
	stmts := []struct {
		dst  **sql.Stmt
		sql  string
	}{
		{&s.stmtUpsertState, `INSERT INTO local_state(file_path, modified) VALUES (?, ?)
			ON CONFLICT(file_path) DO UPDATE SET modified = excluded.modified`},
		{&s.stmtDeleteState, `DELETE FROM local_state WHERE file_path = ?`},
		{&s.stmtListState, `SELECT file_path, modified FROM local_state`},
		{&s.stmtUpsertGlacier, `INSERT INTO glacier_state(file_path, file_hash, modified) VALUES (?, ?, ?)
			ON CONFLICT(file_path) DO UPDATE SET file_hash = excluded.file_hash, modified = excluded.modified`},
		{&s.stmtGetGlacier, `SELECT file_hash FROM glacier_state WHERE file_path = ?`},
		{&s.stmtDeleteGlacier, `DELETE FROM glacier_state WHERE file_path = ?`},
	}

	for _, st := range stmts {
		prepared, err := s.db.PrepareContext(ctx, st.sql)
		if err != nil {
			return fmt.Errorf("prepare %q: %w", st.sql, err)
		}

		*st.dst = prepared
	}

	return nil
}

// InsertOrUpdate commits path's observed modification time to the
// authoritative mirror.
func (s *Store) InsertOrUpdate(ctx context.Context, path string, modified time.Time) error {
	_, err := s.stmtUpsertState.ExecContext(ctx, path, modified.UTC())
	if err != nil {
		return fmt.Errorf("localindex: upsert %s: %w", path, err)
	}

	return nil
}

// Delete removes path from the authoritative mirror.
func (s *Store) Delete(ctx context.Context, path string) error {
	_, err := s.stmtDeleteState.ExecContext(ctx, path)
	if err != nil {
		return fmt.Errorf("localindex: delete %s: %w", path, err)
	}

	return nil
}

// AllPaths returns every path currently in the authoritative mirror.
func (s *Store) AllPaths(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.stmtListState.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("localindex: list: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})

	for rows.Next() {
		var path string

		var modified time.Time

		if err := rows.Scan(&path, &modified); err != nil {
			return nil, fmt.Errorf("localindex: scan row: %w", err)
		}

		out[path] = struct{}{}
	}

	return out, rows.Err()
}

// Diff compares observed against the authoritative mirror and returns the
// disjoint new/modified/removed path sets (sync-algorithm.md §4.3).
func (s *Store) Diff(ctx context.Context, observed []engine.ObservedPath) (engine.ChangeSet, error) {
	rows, err := s.stmtListState.QueryContext(ctx)
	if err != nil {
		return engine.ChangeSet{}, fmt.Errorf("localindex: diff list: %w", err)
	}

	known := make(map[string]time.Time)

	for rows.Next() {
		var path string

		var modified time.Time

		if err := rows.Scan(&path, &modified); err != nil {
			rows.Close()
			return engine.ChangeSet{}, fmt.Errorf("localindex: diff scan: %w", err)
		}

		known[path] = modified.UTC()
	}

	if err := rows.Err(); err != nil {
		rows.Close()
		return engine.ChangeSet{}, err
	}

	rows.Close()

	var cs engine.ChangeSet

	seen := make(map[string]struct{}, len(observed))

	for _, op := range observed {
		seen[op.Path] = struct{}{}

		prior, ok := known[op.Path]
		if !ok {
			cs.New = append(cs.New, op.Path)
			continue
		}

		if !prior.Equal(op.Modified.UTC()) {
			cs.Modified = append(cs.Modified, op.Path)
		}
	}

	for path := range known {
		if _, ok := seen[path]; !ok {
			cs.Removed = append(cs.Removed, path)
		}
	}

	return cs, nil
}

// HashHint returns the advisory content hash last recorded for path via
// the glacier_state secondary index (Q1: advisory, never authoritative).
func (s *Store) HashHint(ctx context.Context, path string) (string, bool, error) {
	var hash string

	err := s.stmtGetGlacier.QueryRowContext(ctx, path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("localindex: hash hint %s: %w", path, err)
	}

	return hash, true, nil
}

// RecordHashHint opportunistically updates the advisory secondary index.
func (s *Store) RecordHashHint(ctx context.Context, path, hash string, modified time.Time) error {
	_, err := s.stmtUpsertGlacier.ExecContext(ctx, path, hash, modified.UTC())
	if err != nil {
		return fmt.Errorf("localindex: record hash hint %s: %w", path, err)
	}

	return nil
}

// RemoveHashHint clears the advisory secondary index entry for path.
func (s *Store) RemoveHashHint(ctx context.Context, path string) error {
	_, err := s.stmtDeleteGlacier.ExecContext(ctx, path)
	if err != nil {
		return fmt.Errorf("localindex: remove hash hint %s: %w", path, err)
	}

	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
