package recall

import (
	"context"

	"github.com/rushteam/reckit-rt/content"
	"github.com/rushteam/reckit-rt/core"
	"github.com/rushteam/reckit-rt/pkg/utils"
)

// ContentRecall 是基于内容的召回源：与锚点物品同类目的其他物品。
type ContentRecall struct {
	Lookup content.Lookup

	// TopK 返回 TopK 个物品，<= 0 时使用 rctx.Limit
	TopK int
}

func (r *ContentRecall) Name() string { return SourceContent }

func (r *ContentRecall) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	if r.Lookup == nil || rctx == nil || rctx.ItemID == "" {
		return nil, nil
	}
	topK := r.TopK
	if topK <= 0 {
		topK = rctx.Limit
	}
	ids, err := r.Lookup.Candidates(ctx, rctx.ItemID, topK)
	if err != nil {
		return nil, err
	}
	items := make([]*core.Item, 0, len(ids))
	for i, id := range ids {
		it := core.NewItem(id, float64(len(ids)-i))
		it.PutLabel(LabelSource, utils.Label{Value: "content", Source: "recall"})
		items = append(items, it)
	}
	return items, nil
}
