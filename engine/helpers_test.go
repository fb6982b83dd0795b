package engine

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rushteam/reckit-rt/model"
)

// modelFunc 只定制 Update，TopN/Count 返回空。
type modelFunc func(ctx context.Context, anchor string, history []string) error

func (f modelFunc) Update(ctx context.Context, anchor string, history []string) error {
	return f(ctx, anchor, history)
}
func (modelFunc) TopN(context.Context, string, int) ([]model.Pair, error) { return nil, nil }
func (modelFunc) Count(context.Context, string, string) (int64, error)    { return 0, nil }

// prometheusCount 读取无标签计数器的当前值。
func prometheusCount(reg *prometheus.Registry, name string) (float64, error) {
	mfs, err := reg.Gather()
	if err != nil {
		return 0, err
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		var total float64
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total, nil
	}
	return 0, nil
}
