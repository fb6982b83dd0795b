package model

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rushteam/reckit-rt/core"
)

// RedisModel 用 Redis 有序集合保存共现计数：{prefix}{a} 中成员 b 的分数即 count(a,b)。
// 多个处理节点共享同一份计数，解决按用户分区后各分区只看到部分共现的问题。
type RedisModel struct {
	client redis.Cmdable
	prefix string
}

// NewRedisModel 创建共享共现模型，prefix 为空时使用 "cooc:"。
func NewRedisModel(client redis.Cmdable, prefix string) *RedisModel {
	if prefix == "" {
		prefix = "cooc:"
	}
	return &RedisModel{client: client, prefix: prefix}
}

func (m *RedisModel) key(item string) string { return m.prefix + item }

// Update 先读取两个方向的计数，不对称的物品对被跳过；
// 其余物品对的双向 ZINCRBY 在同一个 MULTI/EXEC 中提交。
func (m *RedisModel) Update(ctx context.Context, anchor string, history []string) error {
	if anchor == "" {
		return nil
	}
	others := candidates(anchor, history)
	if len(others) == 0 {
		return nil
	}

	type scores struct{ ab, ba *redis.FloatCmd }
	reads := make([]scores, len(others))
	_, err := m.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, h := range others {
			reads[i] = scores{
				ab: p.ZScore(ctx, m.key(anchor), h),
				ba: p.ZScore(ctx, m.key(h), anchor),
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return core.NewTransientStoreError("read cooccurrence", err)
	}

	var skipped []AsymmetricPair
	apply := make([]string, 0, len(others))
	for i, h := range others {
		ab, err := scoreOf(reads[i].ab)
		if err != nil {
			return core.NewTransientStoreError("read cooccurrence", err)
		}
		ba, err := scoreOf(reads[i].ba)
		if err != nil {
			return core.NewTransientStoreError("read cooccurrence", err)
		}
		if ab != ba {
			skipped = append(skipped, AsymmetricPair{A: anchor, B: h, AB: ab, BA: ba})
			continue
		}
		apply = append(apply, h)
	}

	if len(apply) > 0 {
		_, err = m.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			for _, h := range apply {
				p.ZIncrBy(ctx, m.key(anchor), 1, h)
				p.ZIncrBy(ctx, m.key(h), 1, anchor)
			}
			return nil
		})
		if err != nil {
			return core.NewTransientStoreError("increment cooccurrence", err)
		}
	}

	if len(skipped) > 0 {
		return core.WrapDomainError(core.ModuleModel, core.ErrorCodeInconsistent,
			"cooccurrence: pair update skipped", &InconsistencyError{Anchor: anchor, Pairs: skipped})
	}
	return nil
}

func scoreOf(cmd *redis.FloatCmd) (int64, error) {
	v, err := cmd.Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

// TopN 取前 n 个成员；若第 n 个成员的分数还有其他同分成员，一并取出后按物品 ID 决胜，
// 保证与进程内实现相同的全序。
func (m *RedisModel) TopN(ctx context.Context, item string, n int) ([]Pair, error) {
	if n <= 0 || item == "" {
		return nil, nil
	}
	key := m.key(item)
	zs, err := m.client.ZRevRangeWithScores(ctx, key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, core.NewTransientStoreError("topn cooccurrence", err)
	}
	if len(zs) == 0 {
		return nil, nil
	}

	pairs := make([]Pair, 0, len(zs))
	if len(zs) == n {
		boundary := zs[n-1].Score
		for _, z := range zs {
			if z.Score > boundary {
				pairs = append(pairs, Pair{ItemID: memberString(z.Member), Count: int64(z.Score)})
			}
		}
		bound := strconv.FormatFloat(boundary, 'f', -1, 64)
		tied, err := m.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: bound, Max: bound}).Result()
		if err != nil {
			return nil, core.NewTransientStoreError("topn cooccurrence", err)
		}
		for _, member := range tied {
			pairs = append(pairs, Pair{ItemID: member, Count: int64(boundary)})
		}
	} else {
		for _, z := range zs {
			pairs = append(pairs, Pair{ItemID: memberString(z.Member), Count: int64(z.Score)})
		}
	}

	SortPairs(pairs)
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	return pairs, nil
}

func memberString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func (m *RedisModel) Count(ctx context.Context, a, b string) (int64, error) {
	c, err := scoreOf(m.client.ZScore(ctx, m.key(a), b))
	if err != nil {
		return 0, core.NewTransientStoreError("read cooccurrence", err)
	}
	return c, nil
}

var _ CoOccurrence = (*RedisModel)(nil)
