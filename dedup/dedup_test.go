package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBloomDeduper(t *testing.T) {
	ctx := context.Background()
	d := NewBloomDeduper(1000, 0.0001, time.Hour)
	now := time.Unix(1_700_000_000, 0)
	d.now = func() time.Time { return now }
	d.rotatedAt = now

	seen, err := d.Seen(ctx, "u1_1")
	require.NoError(t, err)
	assert.False(t, seen)

	// 未 Mark 前重复检查不算出现过
	seen, _ = d.Seen(ctx, "u1_1")
	assert.False(t, seen)

	require.NoError(t, d.Mark(ctx, "u1_1"))
	seen, _ = d.Seen(ctx, "u1_1")
	assert.True(t, seen)

	seen, _ = d.Seen(ctx, "u1_2")
	assert.False(t, seen)

	// 一次轮换后仍记得
	now = now.Add(time.Hour)
	seen, _ = d.Seen(ctx, "u1_1")
	assert.True(t, seen)

	// 两次轮换后遗忘
	now = now.Add(time.Hour)
	seen, _ = d.Seen(ctx, "u1_1")
	assert.False(t, seen)
}

func TestRedisDeduper(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	d := NewRedisDeduper(client, "", time.Minute)

	seen, err := d.Seen(ctx, "u1_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, d.Mark(ctx, "u1_1"))
	assert.Equal(t, time.Minute, mr.TTL("dedup:event:u1_1"))

	seen, err = d.Seen(ctx, "u1_1")
	require.NoError(t, err)
	assert.True(t, seen)

	mr.FastForward(2 * time.Minute)
	seen, err = d.Seen(ctx, "u1_1")
	require.NoError(t, err)
	assert.False(t, seen)

	mr.Close()
	_, err = d.Seen(ctx, "u1_9")
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	seen, err := Nop{}.Seen(context.Background(), "x")
	assert.NoError(t, err)
	assert.False(t, seen)
	assert.NoError(t, Nop{}.Mark(context.Background(), "x"))
}
