package core

import "time"

// SubjectType 标识推荐列表的主体。
type SubjectType string

const (
	SubjectUser SubjectType = "user"
	SubjectItem SubjectType = "item"
)

// RecommendationList 是发布到存储中的排序结果，过期后视为“尚未计算”。
type RecommendationList struct {
	SubjectID   string      `json:"subject_id"`
	SubjectType SubjectType `json:"subject_type"`
	Items       []string    `json:"items"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// Empty 表示没有可用推荐（未计算或已过期）。
func (l *RecommendationList) Empty() bool {
	return l == nil || len(l.Items) == 0
}

// ProcessingResult 是每个事件处理完成后输出的结果。
type ProcessingResult struct {
	UserID          string    `json:"user_id"`
	ItemID          string    `json:"item_id"`
	EventType       EventType `json:"event_type"`
	EventID         string    `json:"event_id"`
	HistorySize     int       `json:"history_size"`
	Recommendations []string  `json:"recommendations"`

	// Sources 记录每个推荐物品的召回来源，例如 "cooccurrence|content"
	Sources map[string]string `json:"sources,omitempty"`
}
