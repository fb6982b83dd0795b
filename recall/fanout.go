package recall

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/reckit-rt/core"
)

// Result 是单个召回源的结果。Err 不为空时 Items 为空。
type Result struct {
	Source string
	Items  []*core.Item
	Err    error
}

// Fanout 并发执行多个召回源，按 Sources 顺序返回每一路的结果与错误。
// 某一路失败不影响其他召回源；如何处理失败（中止或降级）由调用方决定。
type Fanout struct {
	Sources []Source

	// Timeout 每个召回源的默认超时时间（0 表示不限制）
	Timeout time.Duration

	// Timeouts 按召回源名称覆盖超时
	Timeouts map[string]time.Duration

	// MaxConcurrent 最大并发数（0 表示无限制）
	MaxConcurrent int
}

func (n *Fanout) timeoutFor(name string) time.Duration {
	if d, ok := n.Timeouts[name]; ok {
		return d
	}
	return n.Timeout
}

// Run 执行所有召回源。
func (n *Fanout) Run(ctx context.Context, rctx *core.RecommendContext) []Result {
	results := make([]Result, len(n.Sources))
	if len(n.Sources) == 0 {
		return results
	}

	var eg errgroup.Group
	if n.MaxConcurrent > 0 {
		eg.SetLimit(n.MaxConcurrent)
	}

	for i, src := range n.Sources {
		eg.Go(func() error {
			recallCtx := ctx
			if d := n.timeoutFor(src.Name()); d > 0 {
				var cancel context.CancelFunc
				recallCtx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}

			items, err := src.Recall(recallCtx, rctx)
			if err != nil {
				items = nil
			}
			// 每个 goroutine 只写自己的下标
			results[i] = Result{Source: src.Name(), Items: items, Err: err}
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

// ByName 按名称查找结果。
func ByName(results []Result, name string) (Result, bool) {
	for _, r := range results {
		if r.Source == name {
			return r, true
		}
	}
	return Result{}, false
}
