package cache_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadewadee/kra-collector/internal/cache"
)

// The file tier only ever sees envelope bytes produced by Store, so these
// tests drive it through a Store where envelope handling matters.

func TestFileTierShardsByHashPrefix(t *testing.T) {
	dir := t.TempDir()

	file, err := cache.NewFileTier(dir)
	require.NoError(t, err)

	store := cache.NewStore(cache.NewMemoryTier(), file)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, cache.KeyRaceResult, map[string]string{"date": "20241201"}, "v", 0))

	// One shard directory, two hex characters, one entry file inside.
	shards, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, shards, 1)
	assert.Len(t, shards[0].Name(), 2)

	entries, err := os.ReadDir(filepath.Join(dir, shards[0].Name()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), ".json")
}

func TestFileTierCorruptEntryIsMiss(t *testing.T) {
	dir := t.TempDir()

	file, err := cache.NewFileTier(dir)
	require.NoError(t, err)

	ctx := context.Background()
	key := "race_result:date=20241201"

	require.NoError(t, file.Set(ctx, key, []byte("not json"), time.Minute))

	_, err = file.Get(ctx, key)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestFileTierClearOnlyMatchingPrefix(t *testing.T) {
	dir := t.TempDir()

	file, err := cache.NewFileTier(dir)
	require.NoError(t, err)

	store := cache.NewStore(cache.NewMemoryTier(), file)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, cache.KeyHorseDetail, map[string]string{"id": "1"}, "h", 0))
	require.NoError(t, store.Set(ctx, cache.KeyTrainerDetail, map[string]string{"id": "1"}, "t", 0))

	// Clearing at the tier level: filenames are hashes, so this must go
	// through the sidecar logical key, not the path.
	require.NoError(t, file.Clear(ctx, cache.KeyHorseDetail.Prefix()))

	_, err = file.Get(ctx, cache.BuildKey(cache.KeyHorseDetail, map[string]string{"id": "1"}))
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	_, err = file.Get(ctx, cache.BuildKey(cache.KeyTrainerDetail, map[string]string{"id": "1"}))
	assert.NoError(t, err)
}

func TestFileTierDeleteAbsentKey(t *testing.T) {
	file, err := cache.NewFileTier(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, file.Delete(context.Background(), "race_result:date=19990101"))
}
