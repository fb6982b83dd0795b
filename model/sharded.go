package model

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/rushteam/reckit-rt/core"
)

const defaultShards = 64

// ShardedModel 是进程内的共现模型。物品按 xxhash 分片，每个分片一把读写锁；
// 一次成对递增同时持有两个分片的锁，按分片下标顺序加锁避免死锁。
// TopN 可能读到其他 worker 正在进行的更新之前的值。
type ShardedModel struct {
	shards []*shard
}

type shard struct {
	mu   sync.RWMutex
	rows map[string]map[string]int64
}

func (s *shard) inc(a, b string) {
	row := s.rows[a]
	if row == nil {
		row = make(map[string]int64)
		s.rows[a] = row
	}
	row[b]++
}

// NewShardedModel 创建共现模型，shards <= 0 时使用默认分片数。
func NewShardedModel(shards int) *ShardedModel {
	if shards <= 0 {
		shards = defaultShards
	}
	m := &ShardedModel{shards: make([]*shard, shards)}
	for i := range m.shards {
		m.shards[i] = &shard{rows: make(map[string]map[string]int64)}
	}
	return m
}

func (m *ShardedModel) shardIndex(item string) int {
	return int(xxhash.Sum64String(item) % uint64(len(m.shards)))
}

// lockPair 按下标顺序锁住两个分片，返回解锁函数。
func (m *ShardedModel) lockPair(i, j int) func() {
	if i == j {
		m.shards[i].mu.Lock()
		return m.shards[i].mu.Unlock
	}
	if i > j {
		i, j = j, i
	}
	m.shards[i].mu.Lock()
	m.shards[j].mu.Lock()
	return func() {
		m.shards[j].mu.Unlock()
		m.shards[i].mu.Unlock()
	}
}

func (m *ShardedModel) Update(ctx context.Context, anchor string, history []string) error {
	if anchor == "" {
		return nil
	}
	var skipped []AsymmetricPair
	for _, h := range candidates(anchor, history) {
		if p, ok := m.incrementPair(anchor, h); !ok {
			skipped = append(skipped, p)
		}
	}
	if len(skipped) > 0 {
		return core.WrapDomainError(core.ModuleModel, core.ErrorCodeInconsistent,
			"cooccurrence: pair update skipped", &InconsistencyError{Anchor: anchor, Pairs: skipped})
	}
	return nil
}

func (m *ShardedModel) incrementPair(a, b string) (AsymmetricPair, bool) {
	ia, ib := m.shardIndex(a), m.shardIndex(b)
	unlock := m.lockPair(ia, ib)
	defer unlock()

	sa, sb := m.shards[ia], m.shards[ib]
	ab, ba := sa.rows[a][b], sb.rows[b][a]
	if ab != ba {
		return AsymmetricPair{A: a, B: b, AB: ab, BA: ba}, false
	}
	sa.inc(a, b)
	sb.inc(b, a)
	return AsymmetricPair{}, true
}

func (m *ShardedModel) TopN(ctx context.Context, item string, n int) ([]Pair, error) {
	if n <= 0 || item == "" {
		return nil, nil
	}
	s := m.shards[m.shardIndex(item)]
	s.mu.RLock()
	row := s.rows[item]
	pairs := make([]Pair, 0, len(row))
	for other, c := range row {
		pairs = append(pairs, Pair{ItemID: other, Count: c})
	}
	s.mu.RUnlock()

	SortPairs(pairs)
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	return pairs, nil
}

func (m *ShardedModel) Count(ctx context.Context, a, b string) (int64, error) {
	s := m.shards[m.shardIndex(a)]
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rows[a][b], nil
}

// Size 返回有共现记录的物品数。
func (m *ShardedModel) Size() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		n += len(s.rows)
		s.mu.RUnlock()
	}
	return n
}

func (m *ShardedModel) lockAll(write bool) func() {
	for _, s := range m.shards {
		if write {
			s.mu.Lock()
		} else {
			s.mu.RLock()
		}
	}
	return func() {
		for i := len(m.shards) - 1; i >= 0; i-- {
			if write {
				m.shards[i].mu.Unlock()
			} else {
				m.shards[i].mu.RUnlock()
			}
		}
	}
}

// Snapshot 将整张计数表序列化为 JSON（item -> item -> count）。
func (m *ShardedModel) Snapshot() ([]byte, error) {
	unlock := m.lockAll(false)
	defer unlock()

	table := make(map[string]map[string]int64)
	for _, s := range m.shards {
		for a, row := range s.rows {
			cp := make(map[string]int64, len(row))
			for b, c := range row {
				cp[b] = c
			}
			table[a] = cp
		}
	}
	return json.Marshal(table)
}

// Restore 用快照替换当前全部计数。
func (m *ShardedModel) Restore(data []byte) error {
	var table map[string]map[string]int64
	if err := json.Unmarshal(data, &table); err != nil {
		return fmt.Errorf("decode cooccurrence snapshot: %w", err)
	}

	unlock := m.lockAll(true)
	defer unlock()

	for _, s := range m.shards {
		s.rows = make(map[string]map[string]int64)
	}
	for a, row := range table {
		if len(row) == 0 {
			continue
		}
		cp := make(map[string]int64, len(row))
		for b, c := range row {
			cp[b] = c
		}
		m.shards[m.shardIndex(a)].rows[a] = cp
	}
	return nil
}

var (
	_ CoOccurrence = (*ShardedModel)(nil)
	_ Snapshotter  = (*ShardedModel)(nil)
)
