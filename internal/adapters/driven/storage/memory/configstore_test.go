package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_SetAndGet(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("dedup.window", "10s"))
	require.NoError(t, store.Set("dedup.window", "30s"))

	val, ok := store.Get("dedup.window")
	assert.True(t, ok)
	assert.Equal(t, "30s", val)

	_, ok = store.Get("segment.max_gap")
	assert.False(t, ok)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStore()
	_ = store.Set("ingest.workers", int64(8))
	_ = store.Set("burst.min_count", 5)
	_ = store.Set("burst.threshold", 2.5)
	_ = store.Set("relationship.core_min", 100)
	_ = store.Set("cache.enabled", true)
	_ = store.Set("identity.self", []any{"me@example.com", 42, "name:me"})
	_ = store.Set("charset.fallbacks", []string{"windows-1252"})

	assert.Equal(t, 8, store.GetInt("ingest.workers"))
	assert.Equal(t, 5, store.GetInt("burst.min_count"))
	assert.Zero(t, store.GetInt("burst.threshold"), "floats are not truncated")
	assert.Equal(t, 2.5, store.GetFloat("burst.threshold"))
	assert.Equal(t, 100.0, store.GetFloat("relationship.core_min"))
	assert.Equal(t, 8.0, store.GetFloat("ingest.workers"))
	assert.True(t, store.GetBool("cache.enabled"))
	assert.Equal(t, []string{"me@example.com", "name:me"}, store.GetStringSlice("identity.self"))
	assert.Equal(t, []string{"windows-1252"}, store.GetStringSlice("charset.fallbacks"))
}

func TestConfigStore_WrongTypesReturnZero(t *testing.T) {
	store := NewConfigStore()
	_ = store.Set("dedup.window", 10)
	_ = store.Set("cache.enabled", "yes")
	_ = store.Set("burst.threshold", "high")

	assert.Empty(t, store.GetString("dedup.window"))
	assert.False(t, store.GetBool("cache.enabled"))
	assert.Zero(t, store.GetFloat("burst.threshold"))
	assert.Zero(t, store.GetInt("burst.threshold"))
	assert.Nil(t, store.GetStringSlice("cache.enabled"))
	assert.Zero(t, store.GetFloat("missing"))
}

func TestConfigStore_SaveLoadAreNoOps(t *testing.T) {
	store := NewConfigStore()
	_ = store.Set("ingest.workers", 2)

	require.NoError(t, store.Save())
	require.NoError(t, store.Load())

	assert.Equal(t, 2, store.GetInt("ingest.workers"))
	assert.Equal(t, ":memory:", store.Path())
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := NewConfigStore()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = store.Set(fmt.Sprintf("key.%d", n), n)
		}(i)
		go func(n int) {
			defer wg.Done()
			_ = store.GetInt(fmt.Sprintf("key.%d", n))
		}(i)
	}
	wg.Wait()

	for i := 0; i < 50; i++ {
		assert.Equal(t, i, store.GetInt(fmt.Sprintf("key.%d", i)))
	}
}
