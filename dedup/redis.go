package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDeduper 用带过期时间的键在多个处理节点间共享去重状态。
type RedisDeduper struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisDeduper 创建去重器，prefix 默认 "dedup:event:"，ttl 默认 24 小时。
func NewRedisDeduper(client redis.Cmdable, prefix string, ttl time.Duration) *RedisDeduper {
	if prefix == "" {
		prefix = "dedup:event:"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduper{client: client, prefix: prefix, ttl: ttl}
}

func (d *RedisDeduper) Seen(ctx context.Context, key string) (bool, error) {
	n, err := d.client.Exists(ctx, d.prefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *RedisDeduper) Mark(ctx context.Context, key string) error {
	return d.client.Set(ctx, d.prefix+key, 1, d.ttl).Err()
}

var _ Deduper = (*RedisDeduper)(nil)
