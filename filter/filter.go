// Package filter 在事件进入引擎前决定是否处理它。
package filter

import (
	"context"

	"github.com/rushteam/reckit-rt/core"
)

// Filter 判断事件是否应该被跳过。返回 true 表示跳过（不产生任何状态变更），false 表示处理。
type Filter interface {
	Name() string
	ShouldFilter(ctx context.Context, ev *core.UserEvent) (bool, error)
}

// Chain 依次执行多个过滤器，任意一个返回 true 即跳过。
type Chain []Filter

func (c Chain) Name() string { return "filter.chain" }

func (c Chain) ShouldFilter(ctx context.Context, ev *core.UserEvent) (bool, error) {
	for _, f := range c {
		skip, err := f.ShouldFilter(ctx, ev)
		if err != nil {
			return false, err
		}
		if skip {
			return true, nil
		}
	}
	return false, nil
}

// EventTypeFilter 只处理指定类型的事件。Allowed 为空时全部处理。
type EventTypeFilter struct {
	Allowed []core.EventType
}

func (f *EventTypeFilter) Name() string { return "filter.event_type" }

func (f *EventTypeFilter) ShouldFilter(_ context.Context, ev *core.UserEvent) (bool, error) {
	if len(f.Allowed) == 0 {
		return false, nil
	}
	for _, t := range f.Allowed {
		if ev.EventType == t {
			return false, nil
		}
	}
	return true, nil
}
