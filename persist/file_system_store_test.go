package persist

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSystemStore(t *testing.T) {
	store, err := NewFileSystemStore(t.TempDir())
	require.NoError(t, err)

	testStoreImplementation(t, store)
}

func TestFileSystemStoreFromConfig(t *testing.T) {
	dir := t.TempDir()

	store, err := NewFileSystemStoreFromConfig(StoreConfig{
		Type:   StoreTypeFileSystem,
		Config: map[string]interface{}{"base_path": dir},
	})
	require.NoError(t, err)
	assert.Equal(t, "filesystem", store.GetType())

	// Missing base_path is a configuration error
	_, err = NewFileSystemStoreFromConfig(StoreConfig{Type: StoreTypeFileSystem})
	assert.Error(t, err)
}

// Ensure artifacts are restricted to user-only access
func TestFileSystemStorePermissions(t *testing.T) {
	// Skip on Windows as it has different permission model
	if runtime.GOOS == "windows" {
		t.Skip("Skipping permission test on Windows")
	}

	dir := t.TempDir()
	store, err := NewFileSystemStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.SaveEnvelope("secret.bin", []byte("sealed")))

	info, err := os.Stat(filepath.Join(dir, "secret.bin"+EnvelopeExt))
	require.NoError(t, err)
	assert.Equal(t, FilePermissions, info.Mode().Perm(), "envelope should be user read/write only")
}

func TestFileSystemStoreAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileSystemStore(dir)
	require.NoError(t, err)

	// Overwriting must leave no temp files behind
	require.NoError(t, store.SaveEnvelope("artifact.bin", []byte("first")))
	require.NoError(t, store.SaveEnvelope("artifact.bin", []byte("second")))

	data, err := store.LoadEnvelope("artifact.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), ".tmp-", "no temp files should remain")
	}
}
