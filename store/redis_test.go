package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/reckit-rt/core"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rs := NewRedisStoreWithClient(client)
	t.Cleanup(func() { _ = rs.Close() })
	return rs, mr
}

func TestRedisStore_GetNotFound(t *testing.T) {
	rs, _ := newTestRedisStore(t)

	_, err := rs.Get(context.Background(), "missing")
	assert.True(t, core.IsStoreNotFound(err))
}

func TestRedisStore_SetWithTTL(t *testing.T) {
	ctx := context.Background()
	rs, mr := newTestRedisStore(t)

	require.NoError(t, rs.Set(ctx, "k", []byte("v"), 30))
	assert.Equal(t, 30*time.Second, mr.TTL("k"))

	mr.FastForward(31 * time.Second)
	_, err := rs.Get(ctx, "k")
	assert.True(t, core.IsStoreNotFound(err))
}

func TestRedisStore_ReplaceList(t *testing.T) {
	ctx := context.Background()
	rs, mr := newTestRedisStore(t)

	// 模拟数据加载器预先写入的历史
	_, err := mr.RPush("user:u1:recommendations", "old1", "old2", "old3")
	require.NoError(t, err)

	require.NoError(t, rs.ReplaceList(ctx, "user:u1:recommendations", []string{"a", "b"}, 3600))

	got, err := rs.LRange(ctx, "user:u1:recommendations", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, time.Hour, mr.TTL("user:u1:recommendations"))

	require.NoError(t, rs.ReplaceList(ctx, "user:u1:recommendations", nil, 3600))
	assert.False(t, mr.Exists("user:u1:recommendations"))
}

func TestRedisStore_ZRangeTieOrder(t *testing.T) {
	ctx := context.Background()
	rs, _ := newTestRedisStore(t)

	require.NoError(t, rs.ZAdd(ctx, "category:c1:items", 1, "b"))
	require.NoError(t, rs.ZAdd(ctx, "category:c1:items", 1, "a"))
	require.NoError(t, rs.ZAdd(ctx, "category:c1:items", 2, "z"))

	got, err := rs.ZRange(ctx, "category:c1:items", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "b"}, got)

	// 区间边界切在同分段中间时，与 MemoryStore 取到相同的成员
	ms := NewMemoryStore()
	t.Cleanup(func() { _ = ms.Close() })
	for _, m := range []string{"d", "c", "e"} {
		require.NoError(t, rs.ZAdd(ctx, "category:c1:items", 1, m))
	}
	for _, m := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, ms.ZAdd(ctx, "category:c1:items", 1, m))
	}
	require.NoError(t, ms.ZAdd(ctx, "category:c1:items", 2, "z"))

	cases := []struct {
		start, stop int64
		want        []string
	}{
		{0, 1, []string{"z", "a"}},
		{1, 2, []string{"a", "b"}},
		{2, 3, []string{"b", "c"}},
		{3, -1, []string{"c", "d", "e"}},
		{5, 9, []string{"e"}},
		{6, 9, nil},
	}
	for _, tc := range cases {
		got, err := rs.ZRange(ctx, "category:c1:items", tc.start, tc.stop)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "redis [%d,%d]", tc.start, tc.stop)

		mem, err := ms.ZRange(ctx, "category:c1:items", tc.start, tc.stop)
		require.NoError(t, err)
		assert.Equal(t, tc.want, mem, "memory [%d,%d]", tc.start, tc.stop)
	}
}

func TestRedisStore_Batch(t *testing.T) {
	ctx := context.Background()
	rs, _ := newTestRedisStore(t)

	require.NoError(t, rs.BatchSet(ctx, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, 60))
	got, err := rs.BatchGet(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, got)
}
