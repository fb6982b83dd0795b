package core

import "github.com/rushteam/reckit-rt/pkg/utils"

// Item 是召回结果的承载结构：物品 ID、召回分数、标签。
// Labels 用于解释结果来源（collab / content）。
type Item struct {
	ID     string
	Score  float64
	Labels map[string]utils.Label
}

func NewItem(id string, score float64) *Item {
	return &Item{
		ID:     id,
		Score:  score,
		Labels: make(map[string]utils.Label),
	}
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// ItemIDs 按顺序提取物品 ID。
func ItemIDs(items []*Item) []string {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		ids = append(ids, it.ID)
	}
	return ids
}
