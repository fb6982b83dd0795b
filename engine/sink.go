package engine

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/rushteam/reckit-rt/core"
)

// ResultSink 接收每个事件的处理结果。
type ResultSink interface {
	Emit(ctx context.Context, res *core.ProcessingResult) error
}

// SinkFunc 把函数适配为 ResultSink。
type SinkFunc func(ctx context.Context, res *core.ProcessingResult) error

func (f SinkFunc) Emit(ctx context.Context, res *core.ProcessingResult) error { return f(ctx, res) }

// LogSink 把结果写成一行结构化日志。
type LogSink struct {
	Logger zerolog.Logger
}

func (s LogSink) Emit(_ context.Context, res *core.ProcessingResult) error {
	s.Logger.Info().
		Str("user_id", res.UserID).
		Str("item_id", res.ItemID).
		Str("event_type", string(res.EventType)).
		Int("history_size", res.HistorySize).
		Strs("recommendations", res.Recommendations).
		Interface("sources", res.Sources).
		Msg("processed")
	return nil
}

// MultiSink 依次投递到所有 sink，返回合并的错误。
type MultiSink []ResultSink

func (m MultiSink) Emit(ctx context.Context, res *core.ProcessingResult) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type discardSink struct{}

func (discardSink) Emit(context.Context, *core.ProcessingResult) error { return nil }
