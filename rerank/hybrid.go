// Package rerank 把多路召回结果合并成最终的推荐列表。
package rerank

import (
	"math"
	"sort"
)

const (
	DefaultCollabWeight  = 0.7
	DefaultContentWeight = 0.3
	DefaultTopN          = 10
)

// HybridScorer 按加权排名聚合协同过滤与内容两路候选：
// 长度为 L 的列表中第 i 位（从 0 开始）得分 weight*(L-i)，同一物品在两路中的得分累加。
// 结果按总分降序，同分按首次出现顺序（先协同列表、后内容列表），截取前 TopN 个。
//
// 示例：
//
//	s := rerank.HybridScorer{CollabWeight: 0.7, ContentWeight: 0.3, TopN: 3}
//	s.Score([]string{"A", "B", "C"}, []string{"B", "D"}) // [A B C]
type HybridScorer struct {
	CollabWeight  float64
	ContentWeight float64
	TopN          int
}

func (s HybridScorer) Score(collab, content []string) []string {
	return Score(collab, content, s.CollabWeight, s.ContentWeight, s.TopN)
}

// scored 记录物品在两路列表中的排名分之和（整数），总分在比较时才乘以权重。
type scored struct {
	id     string
	collab int
	cont   int
	order  int
}

func (s *scored) total(wCollab, wContent float64) float64 {
	return wCollab*float64(s.collab) + wContent*float64(s.cont)
}

// sameScore 以相对误差判断浮点总分是否相等，0.7*3 与 0.3*7 视为同分。
func sameScore(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(math.Abs(a), math.Abs(b))
}

// Score 是 HybridScorer 的函数形式。两路都为空时返回空列表。
func Score(collab, content []string, wCollab, wContent float64, topN int) []string {
	if len(collab) == 0 && len(content) == 0 {
		return nil
	}

	index := make(map[string]*scored, len(collab)+len(content))
	all := make([]*scored, 0, len(collab)+len(content))
	accumulate := func(list []string, fromCollab bool) {
		l := len(list)
		for i, id := range list {
			if id == "" {
				continue
			}
			s, ok := index[id]
			if !ok {
				s = &scored{id: id, order: len(all)}
				index[id] = s
				all = append(all, s)
			}
			if fromCollab {
				s.collab += l - i
			} else {
				s.cont += l - i
			}
		}
	}
	accumulate(collab, true)
	accumulate(content, false)

	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i].total(wCollab, wContent), all[j].total(wCollab, wContent)
		if !sameScore(a, b) {
			return a > b
		}
		return all[i].order < all[j].order
	})

	ids := make([]string, len(all))
	for i, s := range all {
		ids[i] = s.id
	}
	return TopN(ids, topN)
}
