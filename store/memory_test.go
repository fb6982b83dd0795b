package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/reckit-rt/core"
)

func newTestMemoryStore(t *testing.T) (*MemoryStore, *time.Time) {
	t.Helper()
	ms := NewMemoryStore()
	t.Cleanup(func() { _ = ms.Close() })
	now := time.Unix(1_700_000_000, 0)
	ms.now = func() time.Time { return now }
	return ms, &now
}

func TestMemoryStore_GetSetTTL(t *testing.T) {
	ctx := context.Background()
	ms, now := newTestMemoryStore(t)

	require.NoError(t, ms.Set(ctx, "k", []byte("v"), 10))
	got, err := ms.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	*now = now.Add(11 * time.Second)
	_, err = ms.Get(ctx, "k")
	assert.True(t, core.IsStoreNotFound(err))
}

func TestMemoryStore_ReplaceList(t *testing.T) {
	ctx := context.Background()
	ms, now := newTestMemoryStore(t)

	require.NoError(t, ms.ReplaceList(ctx, "user:u1:history", []string{"3", "2", "1"}, 60))
	got, err := ms.LRange(ctx, "user:u1:history", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "2", "1"}, got)

	got, err = ms.LRange(ctx, "user:u1:history", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "2"}, got)

	// 覆盖写，不残留旧元素
	require.NoError(t, ms.ReplaceList(ctx, "user:u1:history", []string{"9"}, 60))
	got, err = ms.LRange(ctx, "user:u1:history", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"9"}, got)

	// 列表不可作为字符串读取
	_, err = ms.Get(ctx, "user:u1:history")
	assert.True(t, core.IsStoreNotFound(err))

	*now = now.Add(61 * time.Second)
	got, err = ms.LRange(ctx, "user:u1:history", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, ms.ReplaceList(ctx, "empty", nil, 60))
	got, err = ms.LRange(ctx, "empty", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStore_ZRangeTieOrder(t *testing.T) {
	ctx := context.Background()
	ms, _ := newTestMemoryStore(t)

	require.NoError(t, ms.ZAdd(ctx, "z", 1, "b"))
	require.NoError(t, ms.ZAdd(ctx, "z", 1, "a"))
	require.NoError(t, ms.ZAdd(ctx, "z", 5, "c"))

	got, err := ms.ZRange(ctx, "z", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, got)

	got, err = ms.ZRange(ctx, "z", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, got)
}

func TestMemoryStore_Batch(t *testing.T) {
	ctx := context.Background()
	ms, _ := newTestMemoryStore(t)

	require.NoError(t, ms.BatchSet(ctx, map[string][]byte{"a": []byte("1"), "b": []byte("2")}))
	got, err := ms.BatchGet(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, got)

	require.NoError(t, ms.Delete(ctx, "a"))
	_, err = ms.Get(ctx, "a")
	assert.True(t, core.IsStoreNotFound(err))
}
