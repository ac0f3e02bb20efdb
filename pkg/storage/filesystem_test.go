package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSave(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(filepath.Join(dir, "exports"))
	require.NoError(t, err)

	rel, err := store.Save("review/run-1.csv", []byte("a,b\n"))
	require.NoError(t, err)
	assert.Equal(t, "review/run-1.csv", rel)
	assert.Equal(t, filepath.Join(dir, "exports", "review", "run-1.csv"), store.Path(rel))

	body, err := os.ReadFile(store.Path(rel))
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(body))

	rel, err = store.Save("review/run-1.csv", []byte("c,d\n"))
	require.NoError(t, err)
	body, err = os.ReadFile(store.Path(rel))
	require.NoError(t, err)
	assert.Equal(t, "c,d\n", string(body))

	entries, err := os.ReadDir(filepath.Join(dir, "exports", "review"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestLocalStorageRejectsEscapes(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "../outside.csv", "review/../../x.csv", "/etc/passwd"} {
		_, err := store.Save(name, []byte("x"))
		assert.True(t, errors.Is(err, ErrOutsideBase), name)
		assert.Empty(t, store.Path(name), name)
	}
}
