package recall

import (
	"context"

	"github.com/rushteam/reckit-rt/core"
	"github.com/rushteam/reckit-rt/model"
	"github.com/rushteam/reckit-rt/pkg/utils"
)

// CoOccurrenceRecall 从共现模型取锚点物品的 TopN 共现物品（协同过滤候选）。
// 顺序即模型的全序：计数降序、物品 ID 升序。
type CoOccurrenceRecall struct {
	Model model.CoOccurrence

	// TopK 返回 TopK 个物品，<= 0 时使用 rctx.Limit
	TopK int
}

func (r *CoOccurrenceRecall) Name() string { return SourceCollab }

func (r *CoOccurrenceRecall) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	if r.Model == nil || rctx == nil || rctx.ItemID == "" {
		return nil, nil
	}
	topK := r.TopK
	if topK <= 0 {
		topK = rctx.Limit
	}
	pairs, err := r.Model.TopN(ctx, rctx.ItemID, topK)
	if err != nil {
		return nil, err
	}
	items := make([]*core.Item, 0, len(pairs))
	for _, p := range pairs {
		it := core.NewItem(p.ItemID, float64(p.Count))
		it.PutLabel(LabelSource, utils.Label{Value: "cooccurrence", Source: "recall"})
		items = append(items, it)
	}
	return items, nil
}
