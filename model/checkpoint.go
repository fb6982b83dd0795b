package model

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/reckit-rt/core"
)

// CheckpointOptions 配置检查点。
type CheckpointOptions struct {
	Key      string        // 默认 "checkpoint:cooccurrence"
	Interval time.Duration // 默认 1 分钟
	Timeout  time.Duration // 单次保存超时，默认 30 秒
}

// Checkpointer 周期性地把模型快照写入 core.Store，并在启动时恢复。
// 实现了 suture.Service（Serve），由进程的监督树管理。
type Checkpointer struct {
	model  Snapshotter
	store  core.Store
	opts   CheckpointOptions
	logger zerolog.Logger
}

func NewCheckpointer(m Snapshotter, s core.Store, opts CheckpointOptions, logger zerolog.Logger) *Checkpointer {
	if opts.Key == "" {
		opts.Key = "checkpoint:cooccurrence"
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Checkpointer{
		model:  m,
		store:  s,
		opts:   opts,
		logger: logger.With().Str("component", "checkpoint").Str("store", s.Name()).Logger(),
	}
}

// Restore 从存储加载最近一次快照。没有快照时返回 false。
func (c *Checkpointer) Restore(ctx context.Context) (bool, error) {
	data, err := c.store.Get(ctx, c.opts.Key)
	if core.IsStoreNotFound(err) {
		c.logger.Info().Msg("no checkpoint found, starting with empty model")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load checkpoint: %w", err)
	}
	if err := c.model.Restore(data); err != nil {
		return false, err
	}
	c.logger.Info().Int("bytes", len(data)).Msg("model restored from checkpoint")
	return true, nil
}

// Save 写入一次快照。
func (c *Checkpointer) Save(ctx context.Context) error {
	data, err := c.model.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot model: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	if err := c.store.Set(ctx, c.opts.Key, data); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	c.logger.Debug().Int("bytes", len(data)).Msg("checkpoint saved")
	return nil
}

// Serve 按间隔保存快照，退出前再保存一次。
func (c *Checkpointer) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := c.Save(context.Background()); err != nil {
				c.logger.Error().Err(err).Msg("final checkpoint failed")
			}
			return ctx.Err()
		case <-ticker.C:
			if err := c.Save(ctx); err != nil {
				c.logger.Error().Err(err).Msg("checkpoint failed")
			}
		}
	}
}

func (c *Checkpointer) String() string { return "model-checkpointer" }
