package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
)

// BloomDeduper 是进程内的布隆过滤器去重器。
// 维护两代过滤器，每个 Window 轮换一次：检查两代，只写入当前代，
// 因此一个 event_id 在写入后至少一个窗口内、至多两个窗口内被记住。
type BloomDeduper struct {
	capacity          uint
	falsePositiveRate float64
	window            time.Duration
	now               func() time.Time

	mu        sync.Mutex
	current   *bloom.BloomFilter
	previous  *bloom.BloomFilter
	rotatedAt time.Time
}

// NewBloomDeduper 创建去重器。
//
// 参数：
//   - capacity: 每个窗口预期的事件数，例如 1000000
//   - falsePositiveRate: 误判率，例如 0.001
//   - window: 轮换周期，默认 1 小时
func NewBloomDeduper(capacity uint, falsePositiveRate float64, window time.Duration) *BloomDeduper {
	if capacity == 0 {
		capacity = 1_000_000
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.001
	}
	if window <= 0 {
		window = time.Hour
	}
	d := &BloomDeduper{
		capacity:          capacity,
		falsePositiveRate: falsePositiveRate,
		window:            window,
		now:               time.Now,
	}
	d.current = d.newFilter()
	d.rotatedAt = d.now()
	return d
}

func (d *BloomDeduper) newFilter() *bloom.BloomFilter {
	return bloom.NewWithEstimates(d.capacity, d.falsePositiveRate)
}

// rotate 在持有锁时调用。
func (d *BloomDeduper) rotate() {
	if now := d.now(); now.Sub(d.rotatedAt) >= d.window {
		d.previous = d.current
		d.current = d.newFilter()
		d.rotatedAt = now
	}
}

func (d *BloomDeduper) Seen(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rotate()

	data := []byte(key)
	return d.current.Test(data) || (d.previous != nil && d.previous.Test(data)), nil
}

func (d *BloomDeduper) Mark(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rotate()
	d.current.Add([]byte(key))
	return nil
}

var _ Deduper = (*BloomDeduper)(nil)
