// Package model 维护全局物品共现模型。
package model

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// CoOccurrence 是全局对称共现计数表：count(a,b) == count(b,a)，计数只增不减（无衰减）。
//
// 实现：
//   - ShardedModel：进程内分片加锁，默认实现
//   - RedisModel：基于 Redis 有序集合，多实例共享同一份计数
type CoOccurrence interface {
	// Update 对 history 中每个 h != anchor，将 count(anchor,h) 与 count(h,anchor) 各加 1，
	// 两个方向的递增作为一个整体完成。发现计数不对称时跳过该物品对，
	// 其余物品对照常更新，并返回 INCONSISTENT 错误。
	Update(ctx context.Context, anchor string, history []string) error

	// TopN 返回与 item 共现最多的 n 个物品，按计数降序、物品 ID 升序排列。
	// 未知物品返回空列表。
	TopN(ctx context.Context, item string, n int) ([]Pair, error)

	// Count 返回 count(a,b)，不存在时为 0
	Count(ctx context.Context, a, b string) (int64, error)
}

// Snapshotter 支持模型在事件之间完整序列化，用于检查点。
type Snapshotter interface {
	Snapshot() ([]byte, error)
	Restore(data []byte) error
}

// Pair 是一个共现物品及其计数。
type Pair struct {
	ItemID string `json:"item_id"`
	Count  int64  `json:"count"`
}

// SortPairs 按计数降序、物品 ID 升序排列，保证全序。
func SortPairs(pairs []Pair) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Count != pairs[j].Count {
			return pairs[i].Count > pairs[j].Count
		}
		return pairs[i].ItemID < pairs[j].ItemID
	})
}

// AsymmetricPair 记录一次被跳过的不对称物品对。
type AsymmetricPair struct {
	A, B   string
	AB, BA int64
}

// InconsistencyError 列出 Update 中因计数不对称而跳过的物品对。
type InconsistencyError struct {
	Anchor string
	Pairs  []AsymmetricPair
}

func (e *InconsistencyError) Error() string {
	parts := make([]string, 0, len(e.Pairs))
	for _, p := range e.Pairs {
		parts = append(parts, fmt.Sprintf("(%s,%s)=%d/%d", p.A, p.B, p.AB, p.BA))
	}
	return "asymmetric counts " + strings.Join(parts, " ")
}

// candidates 过滤掉锚点、空值与重复物品。
func candidates(anchor string, history []string) []string {
	out := make([]string, 0, len(history))
	seen := make(map[string]struct{}, len(history))
	for _, h := range history {
		if h == "" || h == anchor {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}
