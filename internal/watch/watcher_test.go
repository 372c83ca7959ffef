package watch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRecursive_WatchesRootAndSubdirectories(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "file.txt"), []byte("x"), 0o644))

	watcher, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer watcher.Close()

	require.NoError(t, addRecursive(watcher, root))

	assert.ElementsMatch(t, []string{root, sub}, watcher.WatchList())
}

func TestAddRecursive_MissingRootErrors(t *testing.T) {
	watcher, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer watcher.Close()

	assert.Error(t, addRecursive(watcher, filepath.Join(t.TempDir(), "does-not-exist")))
}

func TestNew_DefaultsLoggerWhenNil(t *testing.T) {
	w := New("/tmp", nil)
	assert.NotNil(t, w)
}
