// Package dsl 封装 CEL (Common Expression Language) 表达式，用于配置驱动的事件规则。
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/reckit-rt/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("event", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// Program 是编译后的布尔表达式，可并发执行。
//
// 表达式语法（CEL 标准语法），变量 event 包含
// user_id、item_id、event_type、timestamp、event_id：
//   - event.event_type != "view"
//   - event.event_type in ["add_to_cart", "purchase"]
//   - !event.item_id.startsWith("test_")
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式；返回值类型必须为 bool。
func Compile(expr string) (*Program, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("compile %q: expression must return bool, got %v", expr, out)
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	return &Program{expr: expr, prg: prg}, nil
}

func (p *Program) String() string { return p.expr }

// EvalEvent 对事件求值。
func (p *Program) EvalEvent(ev *core.UserEvent) (bool, error) {
	return p.Eval(map[string]any{
		"event": map[string]any{
			"user_id":    ev.UserID,
			"item_id":    ev.ItemID,
			"event_type": string(ev.EventType),
			"timestamp":  ev.Timestamp,
			"event_id":   ev.EventID,
		},
	})
}

// Eval 使用给定变量求值。
func (p *Program) Eval(vars map[string]any) (bool, error) {
	out, _, err := p.prg.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", p.expr, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("eval %q: expression must return boolean, got %T", p.expr, out.Value())
	}
	return result, nil
}
