package filter

import (
	"context"

	"github.com/rushteam/reckit-rt/core"
	"github.com/rushteam/reckit-rt/pkg/dsl"
)

// RuleFilter 使用 CEL 表达式作为准入规则：表达式为 true 的事件被处理，false 的被跳过。
//
// 示例：
//
//	f, _ := filter.NewRuleFilter(`event.event_type != "view" || !event.item_id.startsWith("test_")`)
type RuleFilter struct {
	prg *dsl.Program
}

func NewRuleFilter(expr string) (*RuleFilter, error) {
	prg, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &RuleFilter{prg: prg}, nil
}

func (f *RuleFilter) Name() string { return "filter.rule" }

func (f *RuleFilter) ShouldFilter(_ context.Context, ev *core.UserEvent) (bool, error) {
	admit, err := f.prg.EvalEvent(ev)
	if err != nil {
		return false, err
	}
	return !admit, nil
}
