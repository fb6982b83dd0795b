package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/rushteam/reckit-rt/core"
	"github.com/rushteam/reckit-rt/metrics"
)

// ErrDispatcherClosed 表示分发器已关闭，不再接收事件。
var ErrDispatcherClosed = errors.New("engine: dispatcher closed")

// ErrUserHeld 表示同一用户更早的事件最终失败，尚未重投；后续事件不处理，等待一起重投。
var ErrUserHeld = errors.New("engine: earlier event of user failed, waiting for redelivery")

// Processor 处理单个事件，由 *Engine 实现。
type Processor interface {
	Process(ctx context.Context, ev *core.UserEvent) (*core.ProcessingResult, error)
}

// DoneFunc 在事件处理结束（成功、最终失败或被跳过）后调用，在 worker goroutine 中执行。
type DoneFunc func(res *core.ProcessingResult, err error)

// DispatcherOptions 配置分发器。
type DispatcherOptions struct {
	Workers      int
	QueueSize    int
	MaxRetries   int           // UNAVAILABLE 错误的重试次数
	RetryBackoff time.Duration // 首次重试等待，之后翻倍
	MaxBackoff   time.Duration // 默认 5 秒
	HoldTimeout  time.Duration // 用户被挂起的最长时间，默认 5 分钟
	Metrics      *metrics.Metrics
}

type task struct {
	ctx  context.Context
	ev   *core.UserEvent
	done DoneFunc
}

// Dispatcher 按 user_id 的哈希把事件分配到固定数量的 worker，每个 worker 一个 FIFO 队列。
// 同一用户的事件总是在同一个 worker 上按提交顺序串行处理，不同用户并行。
// 暂时性失败在 worker 内原地重试，重试期间后续事件排队等待，用户内顺序不变。
//
// 事件最终失败（畸形事件除外）后，该用户被挂起：后续事件直接以 ErrUserHeld（UNAVAILABLE）失败，
// 不修改任何状态，也不记入去重器。失败事件按相同 event_id 重投时解除挂起，
// 保证重投后用户历史仍按原顺序写入。超过 HoldTimeout 仍未重投则自动解除。
type Dispatcher struct {
	proc   Processor
	opts   DispatcherOptions
	logger zerolog.Logger
	queues []chan task
	wg     sync.WaitGroup
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher 创建分发器并启动 worker。
func NewDispatcher(proc Processor, opts DispatcherOptions, logger zerolog.Logger) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 100 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 5 * time.Second
	}
	if opts.HoldTimeout <= 0 {
		opts.HoldTimeout = 5 * time.Minute
	}
	d := &Dispatcher{
		now:    time.Now,
		proc:   proc,
		opts:   opts,
		logger: logger.With().Str("component", "dispatcher").Logger(),
		queues: make([]chan task, opts.Workers),
	}
	for i := range d.queues {
		d.queues[i] = make(chan task, opts.QueueSize)
		d.wg.Add(1)
		go d.work(i, d.queues[i])
	}
	return d
}

// DispatcherOptionsFrom 从引擎参数生成分发器参数。
func DispatcherOptionsFrom(cfg Config, m *metrics.Metrics) DispatcherOptions {
	cfg = cfg.WithDefaults()
	return DispatcherOptions{
		Workers:      cfg.Workers,
		QueueSize:    cfg.QueueSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Metrics:      m,
	}
}

// WorkerFor 返回 user_id 对应的 worker 下标。
func (d *Dispatcher) WorkerFor(userID string) int {
	return int(xxhash.Sum64String(userID) % uint64(len(d.queues)))
}

// Submit 把事件放入对应 worker 的队列，队列满时阻塞直到有空位或 ctx 结束。
// done 可以为空。
func (d *Dispatcher) Submit(ctx context.Context, ev *core.UserEvent, done DoneFunc) error {
	if ev == nil {
		return core.NewMalformedEventError("nil event")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queues[d.WorkerFor(ev.UserID)] <- task{ctx: ctx, ev: ev, done: done}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do 提交事件并等待处理结果。
func (d *Dispatcher) Do(ctx context.Context, ev *core.UserEvent) (*core.ProcessingResult, error) {
	type outcome struct {
		res *core.ProcessingResult
		err error
	}
	ch := make(chan outcome, 1)
	if err := d.Submit(ctx, ev, func(res *core.ProcessingResult, err error) {
		ch <- outcome{res: res, err: err}
	}); err != nil {
		return nil, err
	}
	select {
	case o := <-ch:
		return o.res, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close 停止接收新事件，等待队列中已有的事件处理完毕。
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// hold 记录挂起用户的失败事件。
type hold struct {
	eventID string
	since   time.Time
}

func (d *Dispatcher) work(id int, queue <-chan task) {
	defer d.wg.Done()
	held := make(map[string]hold) // 仅由本 worker 访问
	for t := range queue {
		if err := d.checkHold(held, t.ev); err != nil {
			if t.done != nil {
				t.done(nil, err)
			}
			continue
		}
		res, err := d.processWithRetry(t.ctx, t.ev)
		if err != nil {
			d.logger.Debug().Int("worker", id).Str("user_id", t.ev.UserID).Err(err).Msg("event failed")
			if !core.IsMalformed(err) && t.ev.EventID != "" {
				held[t.ev.UserID] = hold{eventID: t.ev.EventID, since: d.now()}
			}
		}
		if t.done != nil {
			t.done(res, err)
		}
	}
}

// checkHold 在用户被挂起时返回 ErrUserHeld；失败事件重投或挂起超时时解除挂起。
func (d *Dispatcher) checkHold(held map[string]hold, ev *core.UserEvent) error {
	h, ok := held[ev.UserID]
	if !ok {
		return nil
	}
	switch {
	case ev.EventID == h.eventID:
		delete(held, ev.UserID)
		return nil
	case d.now().Sub(h.since) >= d.opts.HoldTimeout:
		d.logger.Warn().Str("user_id", ev.UserID).Str("failed_event_id", h.eventID).Msg("hold expired without redelivery")
		delete(held, ev.UserID)
		return nil
	}
	return core.WrapDomainError(core.ModuleEngine, core.ErrorCodeUnavailable, "engine: user held after failure", ErrUserHeld)
}

func (d *Dispatcher) processWithRetry(ctx context.Context, ev *core.UserEvent) (*core.ProcessingResult, error) {
	backoff := d.opts.RetryBackoff
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := d.proc.Process(ctx, ev)
		if err == nil || !core.IsTransient(err) || attempt >= d.opts.MaxRetries {
			return res, err
		}
		d.opts.Metrics.TransportRetry("dispatcher")
		d.logger.Warn().Err(err).Str("user_id", ev.UserID).Int("attempt", attempt+1).Dur("backoff", backoff).Msg("retrying event")

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
		backoff *= 2
		if backoff > d.opts.MaxBackoff {
			backoff = d.opts.MaxBackoff
		}
	}
}
