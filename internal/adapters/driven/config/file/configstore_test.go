package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
}

func TestNewConfigStore_DefaultDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := NewConfigStore("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".archeo", "config.toml"), store.Path())
}

func TestNewConfigStore_WithNestedDirectory(t *testing.T) {
	nestedPath := filepath.Join(t.TempDir(), "nested", "deep", "path")

	store, err := NewConfigStore(nestedPath)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(nestedPath, "config.toml"), store.Path())

	info, err := os.Stat(nestedPath)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestNewConfigStore_MkdirAllError(t *testing.T) {
	store, err := NewConfigStore("/dev/null/cannot/create/dirs")

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestNewConfigStore_LoadCorruptedFile(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("this is not valid TOML {{{[["), 0600)
	require.NoError(t, err)

	store, err := NewConfigStore(tmpDir)

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("ingest.default_channel", "mail"))
	require.NoError(t, store.Set("ingest.workers", 4))
	require.NoError(t, store.Set("cache.enabled", true))
	require.NoError(t, store.Set("burst.threshold", 2.5))
	require.NoError(t, store.Set("ingest.include", []string{"*.mbox", "*.json"}))

	assert.Equal(t, "mail", store.GetString("ingest.default_channel"))
	assert.Equal(t, 4, store.GetInt("ingest.workers"))
	assert.True(t, store.GetBool("cache.enabled"))
	assert.InDelta(t, 2.5, store.GetFloat("burst.threshold"), 1e-9)
	assert.Equal(t, []string{"*.mbox", "*.json"}, store.GetStringSlice("ingest.include"))
	assert.InDelta(t, 4.0, store.GetFloat("ingest.workers"), 1e-9, "integers widen to float")

	// Wrong types and missing keys read as zero values
	assert.Empty(t, store.GetString("ingest.workers"))
	assert.Zero(t, store.GetInt("ingest.default_channel"))
	assert.False(t, store.GetBool("missing"))
	assert.Zero(t, store.GetFloat("cache.enabled"))
	assert.Nil(t, store.GetStringSlice("missing"))
}

func TestConfigStore_SetIsNotPersistedUntilSave(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("dedup.window", "30s"))

	reloaded, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	_, ok := reloaded.Get("dedup.window")
	assert.False(t, ok)

	require.NoError(t, store.Save())
	require.NoError(t, reloaded.Load())
	assert.Equal(t, "30s", reloaded.GetString("dedup.window"))
}

func TestConfigStore_SaveReload_PreservesData(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("identity.self", []string{"me@example.com"}))
	require.NoError(t, store.Set("relationship.core_min", int64(100)))
	require.NoError(t, store.Set("relationship.group_weight", 0.5))
	require.NoError(t, store.Set("identity.fold_gmail", false))
	require.NoError(t, store.Set("segment.max_gap", "6h"))
	require.NoError(t, store.Save())

	store2, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, []string{"me@example.com"}, store2.GetStringSlice("identity.self"))
	assert.Equal(t, 100, store2.GetInt("relationship.core_min"))
	assert.InDelta(t, 0.5, store2.GetFloat("relationship.group_weight"), 1e-9)
	val, ok := store2.Get("identity.fold_gmail")
	assert.True(t, ok)
	assert.Equal(t, false, val)
	assert.Equal(t, "6h", store2.GetString("segment.max_gap"))
}

func TestConfigStore_SaveWritesTables(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("burst.threshold", 3.0))
	require.NoError(t, store.Set("burst.window", "24h"))
	require.NoError(t, store.Set("dedup.window", ""))
	require.NoError(t, store.Save())

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "[burst]")
	assert.Contains(t, content, "24h")
	assert.NotContains(t, content, "dedup", "empty values are unset and not written")
}

func TestConfigStore_LoadNestedTables(t *testing.T) {
	tmpDir := t.TempDir()
	content := "[ingest]\nworkers = 8\ninclude = ['*.mbox']\n\n[segment]\nmin_similarity = 0.3\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(content), 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, 8, store.GetInt("ingest.workers"))
	assert.Equal(t, []string{"*.mbox"}, store.GetStringSlice("ingest.include"))
	assert.InDelta(t, 0.3, store.GetFloat("segment.min_similarity"), 1e-9)
}

func TestConfigStore_Load_EmptyFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("# Just a comment\n\n"), 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	_, ok := store.Get("any_key")
	assert.False(t, ok)
}

func TestConfigStore_Save_WriteFileError(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	// A directory where the file should be cannot be written
	_ = os.Remove(store.Path())
	require.NoError(t, os.Mkdir(store.Path(), 0700))

	require.NoError(t, store.Set("another", "value"))
	assert.Error(t, store.Save())
}

func TestConfigStore_Load_InvalidTOML(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(store.Path(), []byte("invalid toml syntax ][}{"), 0600))

	assert.Error(t, store.Load())
}
