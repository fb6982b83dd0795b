package content

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/reckit-rt/core"
)

// BreakerConfig 配置内容召回的熔断器。
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32        // 半开状态允许的探测请求数，默认 1
	Interval         time.Duration // 闭合状态下清零计数的周期，0 表示不清零
	Timeout          time.Duration // 打开状态持续时间，默认 30s
	FailureThreshold uint32        // 连续失败次数达到后打开，默认 5
}

// Breaker 用熔断器保护内容召回：连续失败后直接返回 DEGRADED 错误，不再访问下游，
// 由引擎降级为空列表。
type Breaker struct {
	next Lookup
	cb   *gobreaker.CircuitBreaker[[]string]
}

func NewBreaker(next Lookup, cfg BreakerConfig, logger zerolog.Logger) *Breaker {
	if cfg.Name == "" {
		cfg.Name = "content-lookup"
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("content lookup breaker state changed")
		},
	}
	return &Breaker{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[[]string](settings),
	}
}

func (b *Breaker) Candidates(ctx context.Context, itemID string, n int) ([]string, error) {
	items, err := b.cb.Execute(func() ([]string, error) {
		return b.next.Candidates(ctx, itemID, n)
	})
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleContent, core.ErrorCodeDegraded, "content: lookup failed", err)
	}
	return items, nil
}

// State 返回熔断器状态（closed / half-open / open）。
func (b *Breaker) State() string { return b.cb.State().String() }

var _ Lookup = (*Breaker)(nil)
