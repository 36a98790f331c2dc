package cache_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upp-dev/upp/pkg/cache"
	"github.com/upp-dev/upp/pkg/domain"
)

func TestMemStore_PutThenGet(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemStore()

	key := cache.Key("foo.hup", []byte("content"))
	_, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	entry := domain.CacheEntry{OutputText: "int foo(void);", IsAuthoritative: true}
	require.NoError(t, store.Put(ctx, key, entry))

	got, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entry.OutputText, got.OutputText)
	assert.True(t, got.IsAuthoritative)
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := cache.NewFileStore(filepath.Join(dir, "upp-cache"))

	key := cache.Key("bar.cup", []byte("int x;"))
	entry := domain.CacheEntry{OutputText: "int x;", PendingRuleCount: 2}
	require.NoError(t, store.Put(ctx, key, entry))

	got, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "int x;", got.OutputText)
	assert.Equal(t, 2, got.PendingRuleCount)
}

func TestFileStore_MissingKey(t *testing.T) {
	ctx := context.Background()
	store := cache.NewFileStore(t.TempDir())
	_, ok, err := store.Get(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKey_DifferentContentDifferentKey(t *testing.T) {
	k1 := cache.Key("a.hup", []byte("v1"))
	k2 := cache.Key("a.hup", []byte("v2"))
	assert.NotEqual(t, k1, k2)
}
