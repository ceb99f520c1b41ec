package sampler

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// fakeProducer 测试用数据源：固定名称表，值可随时改写
type fakeProducer struct {
	names  []string
	values []uint64

	namesErr  error
	valuesErr error

	namesCalls  int // 含 size query 在内的 XStatsNames 调用次数
	valuesCalls int
}

func (p *fakeProducer) XStatsNames(_ uint64, names []string, ids []uint64) (int, error) {
	p.namesCalls++
	if p.namesErr != nil {
		return 0, p.namesErr
	}
	if names == nil && ids == nil {
		return len(p.names), nil
	}
	n := min(len(names), len(p.names))
	for i := 0; i < n; i++ {
		names[i] = p.names[i]
		ids[i] = uint64(i)
	}
	return len(p.names), nil
}

func (p *fakeProducer) XStatsValues(_ uint64, ids []uint64, values []uint64) (int, error) {
	p.valuesCalls++
	if p.valuesErr != nil {
		return 0, p.valuesErr
	}
	for i, id := range ids {
		values[i] = p.values[id]
	}
	return len(ids), nil
}

// lifecycleProducer 附带生命周期钩子的数据源
type lifecycleProducer struct {
	fakeProducer
	startErr error
	started  int
	stopped  int
}

func (p *lifecycleProducer) Start(_ uint64) error {
	p.started++
	return p.startErr
}

func (p *lifecycleProducer) Stop(_ uint64) error {
	p.stopped++
	return nil
}

// resettableProducer 附带清零能力的数据源
type resettableProducer struct {
	fakeProducer
	resetCalls [][]uint64
}

func (p *resettableProducer) XStatsReset(_ uint64, ids []uint64) error {
	p.resetCalls = append(p.resetCalls, ids)
	if ids == nil {
		for i := range p.values {
			p.values[i] = 0
		}
		return nil
	}
	for _, id := range ids {
		p.values[id] = 0
	}
	return nil
}

// delivery 一次 Output 交付的快照
type delivery struct {
	sourceName string
	sourceID   uint64
	names      []string
	ids        []uint64
	values     []uint64
}

// captureSink 测试用数据汇：记录每次交付
type captureSink struct {
	deliveries []delivery
	outputErr  error
}

func (cs *captureSink) Output(sourceName string, sourceID uint64, names []string, ids []uint64, values []uint64) error {
	cs.deliveries = append(cs.deliveries, delivery{
		sourceName: sourceName,
		sourceID:   sourceID,
		names:      append([]string(nil), names...),
		ids:        append([]uint64(nil), ids...),
		values:     append([]uint64(nil), values...),
	})
	return cs.outputErr
}

// lifecycleSink 附带生命周期钩子的数据汇
type lifecycleSink struct {
	captureSink
	started int
	stopped int
}

func (ls *lifecycleSink) Start() error {
	ls.started++
	return nil
}

func (ls *lifecycleSink) Stop() error {
	ls.stopped++
	return nil
}

// newTestSession 用假时钟构建会话
func newTestSession(clock clockwork.Clock, interval, duration time.Duration) (*Registry, *Session) {
	reg := NewRegistry(WithClock(clock))
	s, err := reg.NewSession(SessionConf{
		Name:           "test",
		SampleInterval: interval,
		Duration:       duration,
	})
	if err != nil {
		panic(err)
	}
	return reg, s
}
