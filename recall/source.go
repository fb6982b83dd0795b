// Package recall 并发获取协同过滤与内容两路候选。
package recall

import (
	"context"

	"github.com/rushteam/reckit-rt/core"
)

// Source 表示一个可复用的召回源（共现 / 内容 / ...）。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}

const (
	SourceCollab  = "recall.cooccurrence"
	SourceContent = "recall.content"

	// LabelSource 是召回物品上记录来源的标签名
	LabelSource = "recall_source"
)
