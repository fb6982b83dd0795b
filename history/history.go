// Package history 实现用户最近交互物品的有界窗口。
package history

const (
	// DefaultWindow 是参与评分的历史长度
	DefaultWindow = 20
	// DefaultArchive 是持久化保存的历史长度
	DefaultArchive = 50
)

// BoundedHistory 是最近在前、无重复、定长的物品序列。
// 重复加入的物品会被移到最前面；超出容量时丢弃最旧的物品。
// 零值不可用，使用 New 创建。
type BoundedHistory struct {
	items    []string
	capacity int
}

// New 根据已有序列（最近在前）创建历史，会去重并截断到 capacity。
// capacity <= 0 时使用 DefaultWindow。
func New(capacity int, items ...string) *BoundedHistory {
	if capacity <= 0 {
		capacity = DefaultWindow
	}
	h := &BoundedHistory{
		items:    make([]string, 0, min(len(items), capacity)+1),
		capacity: capacity,
	}
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it == "" {
			continue
		}
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		h.items = append(h.items, it)
		if len(h.items) == capacity {
			break
		}
	}
	return h
}

// Add 将物品放到最前面并返回更新后的历史副本。
func (h *BoundedHistory) Add(item string) []string {
	if item == "" {
		return h.Items()
	}
	out := make([]string, 0, min(len(h.items)+1, h.capacity))
	out = append(out, item)
	for _, it := range h.items {
		if len(out) == h.capacity {
			break
		}
		if it == item {
			continue
		}
		out = append(out, it)
	}
	h.items = out
	return h.Items()
}

// Items 返回最近在前的历史副本。
func (h *BoundedHistory) Items() []string {
	out := make([]string, len(h.items))
	copy(out, h.items)
	return out
}

// Window 返回前 n 个物品（n <= 0 返回全部）。
func (h *BoundedHistory) Window(n int) []string {
	if n <= 0 || n >= len(h.items) {
		return h.Items()
	}
	out := make([]string, n)
	copy(out, h.items[:n])
	return out
}

func (h *BoundedHistory) Len() int { return len(h.items) }
