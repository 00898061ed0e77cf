package prefs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, LanguageKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, LanguageKey, "de"))
	v, err := store.Get(ctx, LanguageKey)
	require.NoError(t, err)
	assert.Equal(t, "de", v)
}

func TestFileStore_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")

	store, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = store.Get(context.Background(), LanguageKey)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoFileExists(t, path)
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "prefs.yaml")

	store, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, LanguageKey, "ja"))
	assert.FileExists(t, path)

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	v, err := reopened.Get(ctx, LanguageKey)
	require.NoError(t, err)
	assert.Equal(t, "ja", v)
}

func TestFileStore_RejectsNestedKeys(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "prefs.yaml"))
	require.NoError(t, err)

	assert.Error(t, store.Set(context.Background(), "ui.language", "fr"))
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("::: not yaml\n\t- ["), 0o600))

	_, err := NewFileStore(path)
	assert.Error(t, err)
}
