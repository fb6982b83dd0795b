package core

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// EventType 是用户行为类型。
type EventType string

const (
	EventView      EventType = "view"
	EventAddToCart EventType = "add_to_cart"
	EventPurchase  EventType = "purchase"
)

// 零售数据集中的原始写法
var eventTypeAliases = map[string]EventType{
	"view":        EventView,
	"add_to_cart": EventAddToCart,
	"addtocart":   EventAddToCart,
	"purchase":    EventPurchase,
	"transaction": EventPurchase,
}

// ParseEventType 解析并归一化行为类型，未知类型返回 false。
func ParseEventType(s string) (EventType, bool) {
	t, ok := eventTypeAliases[strings.ToLower(strings.TrimSpace(s))]
	return t, ok
}

// UserEvent 是一次用户-物品交互，按 UserID 分区、同一用户内有序投递。
type UserEvent struct {
	UserID    string    `json:"user_id"`
	ItemID    string    `json:"item_id"`
	EventType EventType `json:"event_type"`
	Timestamp int64     `json:"timestamp"` // 毫秒
	EventID   string    `json:"event_id,omitempty"`
}

// DecodeEvent 解析 JSON 事件并完成归一化与校验。
// 任何失败都返回 MALFORMED_EVENT，不会产生状态变更。
func DecodeEvent(data []byte) (*UserEvent, error) {
	var raw struct {
		UserID    json.RawMessage `json:"user_id"`
		ItemID    json.RawMessage `json:"item_id"`
		EventType string          `json:"event_type"`
		Timestamp int64           `json:"timestamp"`
		EventID   string          `json:"event_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, WrapDomainError(ModuleEngine, ErrorCodeMalformed, "malformed event: invalid json", err)
	}
	ev := &UserEvent{
		UserID:    idString(raw.UserID),
		ItemID:    idString(raw.ItemID),
		EventType: EventType(raw.EventType),
		Timestamp: raw.Timestamp,
		EventID:   raw.EventID,
	}
	ev.Normalize(time.Now())
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

// idString 兼容数字与字符串形式的 ID（数据集中 visitorid/itemid 为整数）。
func idString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// Normalize 填充默认值：timestamp 缺省为当前时间，event_id 缺省为 "{user_id}_{timestamp}"，
// 行为类型别名归一化。
func (e *UserEvent) Normalize(now time.Time) {
	e.UserID = strings.TrimSpace(e.UserID)
	e.ItemID = strings.TrimSpace(e.ItemID)
	if t, ok := ParseEventType(string(e.EventType)); ok {
		e.EventType = t
	}
	if e.EventType == "" {
		e.EventType = EventView
	}
	if e.Timestamp <= 0 {
		e.Timestamp = now.UnixMilli()
	}
	if e.EventID == "" {
		e.EventID = e.UserID + "_" + strconv.FormatInt(e.Timestamp, 10)
	}
}

// Validate 校验必填字段。
func (e *UserEvent) Validate() error {
	if e == nil {
		return NewMalformedEventError("nil event")
	}
	if e.UserID == "" {
		return NewMalformedEventError("missing user_id")
	}
	if e.ItemID == "" {
		return NewMalformedEventError("missing item_id")
	}
	if _, ok := ParseEventType(string(e.EventType)); !ok {
		return NewMalformedEventError("unknown event_type " + strconv.Quote(string(e.EventType)))
	}
	return nil
}
