package engine

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"time"
)

// Walker recursively enumerates a target directory, applying an ordered
// list of regular-expression filters, and returns (path, mtime) pairs in
// deterministic lexicographic order (sync-algorithm.md §4.2). Symlinks are
// never followed.
type Walker struct {
	root    string
	filters []*regexp.Regexp
	logger  *slog.Logger
}

// NewWalker compiles the given filter patterns and returns a Walker rooted
// at root. Returns an error if any pattern fails to compile.
func NewWalker(root string, patterns []string, logger *slog.Logger) (*Walker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	filters := make([]*regexp.Regexp, 0, len(patterns))

	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("engine: compiling filter %q: %w", p, err)
		}

		filters = append(filters, re)
	}

	return &Walker{root: root, filters: filters, logger: logger}, nil
}

// Walk returns every non-filtered, non-symlink regular file under the
// walker's root, sorted lexicographically by absolute path so repeated runs
// over the same filesystem state produce identical ordering.
func (w *Walker) Walk() ([]ObservedPath, error) {
	var out []ObservedPath

	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("engine: walk %s: %w", path, err)
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("engine: stat %s: %w", path, err)
		}

		// Symlinks are never followed — skip the entry entirely, whether
		// it is a symlinked file or directory.
		if info.Mode()&fs.ModeSymlink != 0 {
			if d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if d.IsDir() {
			return nil
		}

		if w.matchesAnyFilter(path) {
			w.logger.Debug("walker: path filtered", "path", path)
			return nil
		}

		out = append(out, ObservedPath{Path: path, Modified: info.ModTime().Truncate(time.Second)})

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })

	return out, nil
}

// matchesAnyFilter reports whether path matches any configured filter.
func (w *Walker) matchesAnyFilter(path string) bool {
	for _, re := range w.filters {
		if re.MatchString(path) {
			return true
		}
	}

	return false
}
