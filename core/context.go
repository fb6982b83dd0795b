package core

// RecommendContext 承载单个事件的处理上下文，在各召回源之间透传。
type RecommendContext struct {
	UserID    string
	ItemID    string // 锚点物品（当前事件的物品）
	EventType EventType

	// Limit 每个召回源返回的候选数量
	Limit int
}

// NewRecommendContext 根据事件构建上下文。
func NewRecommendContext(ev *UserEvent, limit int) *RecommendContext {
	return &RecommendContext{
		UserID:    ev.UserID,
		ItemID:    ev.ItemID,
		EventType: ev.EventType,
		Limit:     limit,
	}
}
