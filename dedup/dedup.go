// Package dedup 提供尽力而为的事件重放检测。
//
// 传输层是至少一次投递，重放的事件会让共现计数重复递增。
// 引擎在事件进入时按 event_id 检查（Seen），处理成功后才记录（Mark），
// 处理失败、等待重投的事件不会被误判为重复。
// 误判（布隆过滤器）或窗口外的重放无法识别。
package dedup

import "context"

// Deduper 记录已经成功处理的事件。
type Deduper interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// Nop 从不判定重复。
type Nop struct{}

func (Nop) Seen(context.Context, string) (bool, error) { return false, nil }
func (Nop) Mark(context.Context, string) error          { return nil }
