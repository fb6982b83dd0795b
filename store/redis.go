package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rushteam/reckit-rt/core"
)

// RedisStore 是 Redis 实现的 KeyValueStore / ListStore。
// 生产环境使用，键布局与在线服务共享：
//
//	user:{id}:history          List，最近在前
//	user:{id}:recommendations  List
//	item:{id}:recommendations  List
//	item:{id}:category         String
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string, db int) (*RedisStore, error) {
	return NewRedisStoreWithOptions(&redis.Options{
		Addr: addr,
		DB:   db,
	})
}

// NewRedisStoreWithOptions 使用完整的 redis.Options 创建，连接失败返回错误。
func NewRedisStoreWithOptions(opts *redis.Options) (*RedisStore, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient 复用已有客户端（测试中配合 miniredis）。
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// GetClient 返回底层客户端，供共现模型、去重等组件共享连接。
func (r *RedisStore) GetClient() *redis.Client { return r.client }

func (r *RedisStore) Name() string { return "redis" }

func ttlDuration(ttl []int) time.Duration {
	if len(ttl) > 0 && ttl[0] > 0 {
		return time.Duration(ttl[0]) * time.Second
	}
	return 0
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrStoreNotFound
	}
	return val, err
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	return r.client.Set(ctx, key, value, ttlDuration(ttl)).Err()
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisStore) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return make(map[string][]byte), nil
	}

	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	result := make(map[string][]byte, len(keys))
	for i, k := range keys {
		if s, ok := vals[i].(string); ok {
			result[k] = []byte(s)
		}
	}
	return result, nil
}

func (r *RedisStore) BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error {
	expiration := ttlDuration(ttl)
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range kvs {
			pipe.Set(ctx, k, v, expiration)
		}
		return nil
	})
	return err
}

func (r *RedisStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return r.client.LRange(ctx, key, start, stop).Result()
}

// ReplaceList 在一个 MULTI/EXEC 中执行 DEL + RPUSH + EXPIRE。
func (r *RedisStore) ReplaceList(ctx context.Context, key string, values []string, ttl int) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) == 0 {
			return nil
		}
		args := make([]interface{}, len(values))
		for i, v := range values {
			args[i] = v
		}
		pipe.RPush(ctx, key, args...)
		if ttl > 0 {
			pipe.Expire(ctx, key, time.Duration(ttl)*time.Second)
		}
		return nil
	})
	return err
}

func (r *RedisStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return r.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

// ZRange 降序返回成员，同分按成员升序。
// Redis 对同分成员按字典序逆序排列，区间边界可能切在同分段中间：
// 取出首尾分数之间的全部成员，按统一顺序排好后再按名次截取。
func (r *RedisStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	if start < 0 {
		start = 0
	}
	zs, err := r.client.ZRevRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(zs) == 0 {
		return nil, nil
	}

	hi := strconv.FormatFloat(zs[0].Score, 'f', -1, 64)
	lo := strconv.FormatFloat(zs[len(zs)-1].Score, 'f', -1, 64)
	var (
		above *redis.IntCmd
		band  *redis.ZSliceCmd
	)
	if _, err := r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		above = p.ZCount(ctx, key, "("+hi, "+inf")
		band = p.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{Min: lo, Max: hi})
		return nil
	}); err != nil {
		return nil, err
	}
	zs = band.Val()
	sortZDesc(zs)

	// band 中第一个成员的全局名次为 above
	from := start - above.Val()
	to := int64(len(zs))
	if stop >= 0 && stop-above.Val()+1 < to {
		to = stop - above.Val() + 1
	}
	if from < 0 {
		from = 0
	}
	if from >= to {
		return nil, nil
	}

	out := make([]string, 0, to-from)
	for _, z := range zs[from:to] {
		if s, ok := z.Member.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

var (
	_ core.Store         = (*RedisStore)(nil)
	_ core.KeyValueStore = (*RedisStore)(nil)
	_ core.ListStore     = (*RedisStore)(nil)
)
