package sampler

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// RingEntry 环形缓冲区里的一条采样记录
// IDs/Values 是独立副本，读出后归调用方所有。
type RingEntry struct {
	Timestamp  time.Time
	SourceName string
	SourceID   uint64
	IDs        []uint64
	Values     []uint64
}

// RingBufferSink 固定容量环形缓冲 sink
// 写满后 FIFO 淘汰最旧记录。与会话层不同，这里为采样写线程与
// 读线程并发访问而生，所有触及缓冲区和下标的操作都持锁。
// 通常以 WithoutNames 注册（名称不入缓冲区）。
type RingBufferSink struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	entries []*RingEntry
	head    int // 写位置
	tail    int // 最旧记录位置
	count   int
	closed  bool
}

// RingBufferOption 构造期选项
type RingBufferOption func(*RingBufferSink)

// WithRingClock 注入时间戳时钟（测试用）
func WithRingClock(clock clockwork.Clock) RingBufferOption {
	return func(rb *RingBufferSink) { rb.clock = clock }
}

// NewRingBufferSink 创建环形缓冲 sink，容量在创建时固定
func NewRingBufferSink(capacity int, opts ...RingBufferOption) (*RingBufferSink, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: ring buffer capacity %d", ErrInvalidArgument, capacity)
	}
	rb := &RingBufferSink{
		clock:   clockwork.NewRealClock(),
		entries: make([]*RingEntry, capacity),
	}
	for _, opt := range opts {
		opt(rb)
	}
	return rb, nil
}

// Output 实现 Consumer：复制 ids/values 写入 head 位置
// 缓冲区已满时覆盖并淘汰 tail 处的最旧记录。
func (rb *RingBufferSink) Output(sourceName string, sourceID uint64, _ []string, ids []uint64, values []uint64) error {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.closed {
		return fmt.Errorf("%w: ring buffer destroyed", ErrInvalidArgument)
	}

	rb.entries[rb.head] = &RingEntry{
		Timestamp:  rb.clock.Now(),
		SourceName: sourceName,
		SourceID:   sourceID,
		IDs:        slices.Clone(ids),
		Values:     slices.Clone(values),
	}
	rb.head = (rb.head + 1) % len(rb.entries)

	if rb.count < len(rb.entries) {
		rb.count++
	} else {
		// 已满：head 覆盖掉的就是最旧记录，tail 前移
		rb.tail = (rb.tail + 1) % len(rb.entries)
	}
	return nil
}

// Count 当前记录数
func (rb *RingBufferSink) Count() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Read 从最旧记录开始非破坏性读出，最多 len(out) 条，返回读出数量
// 读出的 IDs/Values 为副本，调用方可自由持有。
func (rb *RingBufferSink) Read(out []RingEntry) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := min(len(out), rb.count)
	for i := 0; i < n; i++ {
		src := rb.entries[(rb.tail+i)%len(rb.entries)]
		out[i] = RingEntry{
			Timestamp:  src.Timestamp,
			SourceName: src.SourceName,
			SourceID:   src.SourceID,
			IDs:        slices.Clone(src.IDs),
			Values:     slices.Clone(src.Values),
		}
	}
	return n
}

// Clear 清空全部记录并复位下标
func (rb *RingBufferSink) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	for i := range rb.entries {
		rb.entries[i] = nil
	}
	rb.head, rb.tail, rb.count = 0, 0, 0
}

// Destroy 释放缓冲区；之后的 Output 返回 ErrInvalidArgument
func (rb *RingBufferSink) Destroy() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.entries = nil
	rb.head, rb.tail, rb.count = 0, 0, 0
	rb.closed = true
}
