package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/reckit-rt/core"
	"github.com/rushteam/reckit-rt/dedup"
	"github.com/rushteam/reckit-rt/publish"
	"github.com/rushteam/reckit-rt/store"
)

type recordingProcessor struct {
	mu     sync.Mutex
	seen   map[string][]string
	failN  int32
	calls  int32
	active int32
	maxPar int32
}

func (p *recordingProcessor) Process(_ context.Context, ev *core.UserEvent) (*core.ProcessingResult, error) {
	atomic.AddInt32(&p.calls, 1)
	n := atomic.AddInt32(&p.active, 1)
	defer atomic.AddInt32(&p.active, -1)
	for {
		old := atomic.LoadInt32(&p.maxPar)
		if n <= old || atomic.CompareAndSwapInt32(&p.maxPar, old, n) {
			break
		}
	}
	if atomic.AddInt32(&p.failN, -1) >= 0 {
		return nil, core.NewTransientStoreError("get", errors.New("timeout"))
	}
	time.Sleep(time.Millisecond)

	p.mu.Lock()
	p.seen[ev.UserID] = append(p.seen[ev.UserID], ev.ItemID)
	p.mu.Unlock()
	return &core.ProcessingResult{UserID: ev.UserID, ItemID: ev.ItemID}, nil
}

func TestDispatcher_PerUserOrder(t *testing.T) {
	proc := &recordingProcessor{seen: map[string][]string{}}
	d := NewDispatcher(proc, DispatcherOptions{Workers: 4, QueueSize: 8}, zerolog.Nop())

	users := []string{"u1", "u2", "u3", "u4", "u5"}
	want := map[string][]string{}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		for _, u := range users {
			item := string(rune('a' + i))
			want[u] = append(want[u], item)
			wg.Add(1)
			require.NoError(t, d.Submit(context.Background(), &core.UserEvent{UserID: u, ItemID: item}, func(*core.ProcessingResult, error) {
				wg.Done()
			}))
		}
	}
	wg.Wait()
	d.Close()

	assert.Equal(t, want, proc.seen)
	assert.LessOrEqual(t, proc.maxPar, int32(4))
}

func TestDispatcher_RetriesTransientErrors(t *testing.T) {
	proc := &recordingProcessor{seen: map[string][]string{}, failN: 2}
	d := NewDispatcher(proc, DispatcherOptions{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond}, zerolog.Nop())
	defer d.Close()

	res, err := d.Do(context.Background(), &core.UserEvent{UserID: "u1", ItemID: "100"})
	require.NoError(t, err)
	assert.Equal(t, "100", res.ItemID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&proc.calls))
}

func TestDispatcher_GivesUpAfterMaxRetries(t *testing.T) {
	proc := &recordingProcessor{seen: map[string][]string{}, failN: 10}
	d := NewDispatcher(proc, DispatcherOptions{Workers: 1, MaxRetries: 1, RetryBackoff: time.Millisecond}, zerolog.Nop())
	defer d.Close()

	_, err := d.Do(context.Background(), &core.UserEvent{UserID: "u1", ItemID: "100"})
	require.Error(t, err)
	assert.True(t, core.IsTransient(err))
	assert.Equal(t, int32(2), atomic.LoadInt32(&proc.calls))
}

func TestDispatcher_MalformedIsNotRetried(t *testing.T) {
	calls := 0
	proc := processorFunc(func(context.Context, *core.UserEvent) (*core.ProcessingResult, error) {
		calls++
		return nil, core.NewMalformedEventError("missing item_id")
	})
	d := NewDispatcher(proc, DispatcherOptions{Workers: 1, MaxRetries: 5}, zerolog.Nop())

	_, err := d.Do(context.Background(), &core.UserEvent{UserID: "u1"})
	assert.True(t, core.IsMalformed(err))
	d.Close()
	assert.Equal(t, 1, calls)
}

func TestDispatcher_Closed(t *testing.T) {
	d := NewDispatcher(processorFunc(func(context.Context, *core.UserEvent) (*core.ProcessingResult, error) {
		return nil, nil
	}), DispatcherOptions{}, zerolog.Nop())
	d.Close()
	d.Close()

	err := d.Submit(context.Background(), &core.UserEvent{UserID: "u1", ItemID: "1"}, nil)
	assert.ErrorIs(t, err, ErrDispatcherClosed)
}

func TestDispatcher_SameUserSameWorker(t *testing.T) {
	d := NewDispatcher(processorFunc(func(context.Context, *core.UserEvent) (*core.ProcessingResult, error) {
		return nil, nil
	}), DispatcherOptions{Workers: 16}, zerolog.Nop())
	defer d.Close()
	assert.Equal(t, d.WorkerFor("u42"), d.WorkerFor("u42"))
}

type processorFunc func(ctx context.Context, ev *core.UserEvent) (*core.ProcessingResult, error)

func (f processorFunc) Process(ctx context.Context, ev *core.UserEvent) (*core.ProcessingResult, error) {
	return f(ctx, ev)
}

func TestEngineWithDispatcher(t *testing.T) {
	f := newFixture(t, Deps{})
	d := NewDispatcher(f.engine, DispatcherOptionsFrom(f.engine.Config(), nil), zerolog.Nop())

	var wg sync.WaitGroup
	for i, item := range []string{"100", "101", "102", "101"} {
		wg.Add(1)
		require.NoError(t, d.Submit(context.Background(), event("u1", item, int64(10+i)), func(_ *core.ProcessingResult, err error) {
			assert.NoError(t, err)
			wg.Done()
		}))
	}
	wg.Wait()
	d.Close()

	hist, err := f.publisher.History(context.Background(), "u1", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"101", "102", "100"}, hist)
}

// flakyHistoryPublisher 在写入以 failItem 开头的历史时失败 failures 次。
type flakyHistoryPublisher struct {
	*publish.StatePublisher
	failItem string
	failures int
}

func (p *flakyHistoryPublisher) PersistHistory(ctx context.Context, userID string, items []string) error {
	if len(items) > 0 && items[0] == p.failItem && p.failures > 0 {
		p.failures--
		return core.NewTransientStoreError("persist history", errors.New("connection reset"))
	}
	return p.StatePublisher.PersistHistory(ctx, userID, items)
}

func TestDispatcher_RedeliveryAfterFailureKeepsUserOrder(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	t.Cleanup(func() { _ = mem.Close() })
	pub := &flakyHistoryPublisher{StatePublisher: publish.NewStatePublisher(mem, publish.Options{}), failItem: "B", failures: 1}
	f := newFixture(t, Deps{Publisher: pub, Deduper: dedup.NewBloomDeduper(1000, 0.001, time.Hour)})
	d := NewDispatcher(f.engine, DispatcherOptions{Workers: 1}, zerolog.Nop())
	defer d.Close()

	a, b, c := event("u1", "A", 1), event("u1", "B", 2), event("u1", "C", 3)

	_, err := d.Do(ctx, a)
	require.NoError(t, err)
	_, err = d.Do(ctx, b)
	require.Error(t, err)
	assert.True(t, core.IsTransient(err))

	// B 尚未重投：C 不处理，也不记入去重器
	_, err = d.Do(ctx, c)
	require.ErrorIs(t, err, ErrUserHeld)
	assert.True(t, core.IsTransient(err))

	// 其他用户不受影响
	_, err = d.Do(ctx, event("u2", "X", 4))
	require.NoError(t, err)

	// 传输层按原顺序重投 B、C
	res, err := d.Do(ctx, b)
	require.NoError(t, err)
	require.NotNil(t, res)
	res, err = d.Do(ctx, c)
	require.NoError(t, err)
	require.NotNil(t, res, "C must not be skipped as a duplicate")

	hist, err := pub.History(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B", "A"}, hist)
}

func TestDispatcher_HoldExpires(t *testing.T) {
	failing := true
	proc := processorFunc(func(context.Context, *core.UserEvent) (*core.ProcessingResult, error) {
		if failing {
			return nil, core.NewTransientStoreError("get", errors.New("timeout"))
		}
		return &core.ProcessingResult{}, nil
	})
	d := NewDispatcher(proc, DispatcherOptions{Workers: 1, HoldTimeout: time.Minute}, zerolog.Nop())
	defer d.Close()
	now := time.Unix(1000, 0)
	d.now = func() time.Time { return now }

	ctx := context.Background()
	_, err := d.Do(ctx, event("u1", "A", 1))
	require.Error(t, err)

	failing = false
	_, err = d.Do(ctx, event("u1", "B", 2))
	require.ErrorIs(t, err, ErrUserHeld)

	now = now.Add(time.Minute)
	_, err = d.Do(ctx, event("u1", "C", 3))
	require.NoError(t, err)
}
