package sampler

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStartStopStateMachine(t *testing.T) {
	clock := clockwork.NewFakeClock()
	_, s := newTestSession(clock, 0, 0)

	// 未启动时 Sample / Stop 都是生命周期误用
	assert.ErrorIs(t, s.Sample(), ErrNotStarted)
	assert.ErrorIs(t, s.Stop(), ErrAlreadyStopped)

	require.NoError(t, s.Start())
	assert.True(t, s.IsActive())
	assert.ErrorIs(t, s.Start(), ErrAlreadyActive)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsActive())
	assert.ErrorIs(t, s.Stop(), ErrAlreadyStopped)

	// 停止后可重新启动
	require.NoError(t, s.Start())
	assert.True(t, s.IsActive())
}

func TestSampleFansOutToAllSinks(t *testing.T) {
	clock := clockwork.NewFakeClock()
	_, s := newTestSession(clock, 0, 0)

	p := &fakeProducer{names: []string{"a", "b"}, values: []uint64{10, 20}}
	_, err := s.RegisterSource("src", 7, p)
	require.NoError(t, err)

	failing := &captureSink{outputErr: errors.New("disk full")}
	healthy := &captureSink{}
	_, err = s.RegisterSink("failing", failing)
	require.NoError(t, err)
	_, err = s.RegisterSink("healthy", healthy)
	require.NoError(t, err)

	require.NoError(t, s.Start())
	// 单个 sink 失败不影响其余 sink，Sample 本身不报错
	require.NoError(t, s.Sample())

	require.Len(t, failing.deliveries, 1)
	require.Len(t, healthy.deliveries, 1)

	d := healthy.deliveries[0]
	assert.Equal(t, "src", d.sourceName)
	assert.Equal(t, uint64(7), d.sourceID)
	assert.Equal(t, []string{"a", "b"}, d.names)
	assert.Equal(t, []uint64{0, 1}, d.ids)
	assert.Equal(t, []uint64{10, 20}, d.values)
}

func TestSampleNoNamesOptimization(t *testing.T) {
	clock := clockwork.NewFakeClock()
	_, s := newTestSession(clock, 0, 0)

	p := &fakeProducer{names: []string{"a", "b"}, values: []uint64{1, 2}}
	src, err := s.RegisterSource("src", 1, p)
	require.NoError(t, err)

	plain := &captureSink{}
	noNames := &captureSink{}
	_, err = s.RegisterSink("plain", plain)
	require.NoError(t, err)
	_, err = s.RegisterSink("nonames", noNames, WithoutNames())
	require.NoError(t, err)

	require.NoError(t, s.Start())
	require.NoError(t, s.Sample())

	assert.Equal(t, []string{"a", "b"}, plain.deliveries[0].names)
	assert.Nil(t, noNames.deliveries[0].names)
	// id/value 两侧一致，名称可通过旁路查询补齐
	assert.Equal(t, plain.deliveries[0].ids, noNames.deliveries[0].ids)
	assert.Equal(t, plain.deliveries[0].values, noNames.deliveries[0].values)

	name, err := src.XStatsName(noNames.deliveries[0].ids[1])
	require.NoError(t, err)
	assert.Equal(t, "b", name)

	_, err = src.XStatsName(999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalogCachedWithinActivation(t *testing.T) {
	clock := clockwork.NewFakeClock()
	_, s := newTestSession(clock, 0, 0)

	p := &fakeProducer{names: []string{"a"}, values: []uint64{1}}
	_, err := s.RegisterSource("src", 1, p)
	require.NoError(t, err)
	sink := &captureSink{}
	_, err = s.RegisterSink("capture", sink)
	require.NoError(t, err)

	require.NoError(t, s.Start())
	require.NoError(t, s.Sample())
	require.NoError(t, s.Sample())
	require.NoError(t, s.Sample())

	// 首次采样做两阶段枚举（size query + 填充），之后复用缓存
	assert.Equal(t, 2, p.namesCalls)
	assert.Equal(t, 3, p.valuesCalls)

	// 重新激活开启新周期，目录重新枚举
	require.NoError(t, s.Stop())
	p.names = append(p.names, "b")
	p.values = append(p.values, 2)
	require.NoError(t, s.Start())
	require.NoError(t, s.Sample())

	assert.Equal(t, 4, p.namesCalls)
	last := sink.deliveries[len(sink.deliveries)-1]
	assert.Equal(t, []string{"a", "b"}, last.names)
}

func TestInvalidateCatalogMidActivation(t *testing.T) {
	clock := clockwork.NewFakeClock()
	_, s := newTestSession(clock, 0, 0)

	p := &fakeProducer{names: []string{"a"}, values: []uint64{1}}
	src, err := s.RegisterSource("src", 1, p)
	require.NoError(t, err)
	sink := &captureSink{}
	_, err = s.RegisterSink("capture", sink)
	require.NoError(t, err)

	require.NoError(t, s.Start())
	require.NoError(t, s.Sample())

	p.names = append(p.names, "b")
	p.values = append(p.values, 2)
	require.NoError(t, s.Sample())
	// 显式失效前看不到新统计项
	assert.Len(t, sink.deliveries[1].names, 1)

	src.InvalidateCatalog()
	require.NoError(t, s.Sample())
	assert.Len(t, sink.deliveries[2].names, 2)
}

func TestSourceFailureIsolation(t *testing.T) {
	clock := clockwork.NewFakeClock()
	_, s := newTestSession(clock, 0, 0)

	broken := &fakeProducer{namesErr: errors.New("device gone")}
	healthy := &fakeProducer{names: []string{"a"}, values: []uint64{1}}
	_, err := s.RegisterSource("broken", 1, broken)
	require.NoError(t, err)
	_, err = s.RegisterSource("healthy", 2, healthy)
	require.NoError(t, err)

	sink := &captureSink{}
	_, err = s.RegisterSink("capture", sink)
	require.NoError(t, err)

	require.NoError(t, s.Start())
	require.NoError(t, s.Sample())

	// 枚举失败的 source 整轮被跳过，不影响其他 source
	require.Len(t, sink.deliveries, 1)
	assert.Equal(t, "healthy", sink.deliveries[0].sourceName)

	// 取值失败同样只跳过自己
	healthy.valuesErr = errors.New("read failed")
	require.NoError(t, s.Sample())
	assert.Len(t, sink.deliveries, 1)
}

func TestRegisterSourceValidation(t *testing.T) {
	clock := clockwork.NewFakeClock()
	_, s := newTestSession(clock, 0, 0)

	_, err := s.RegisterSource("src", 1, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = s.RegisterSink("sink", nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestUnregisterAndSlotReuse(t *testing.T) {
	clock := clockwork.NewFakeClock()
	_, s := newTestSession(clock, 0, 0)

	p1 := &fakeProducer{names: []string{"a"}, values: []uint64{1}}
	p2 := &fakeProducer{names: []string{"b"}, values: []uint64{2}}
	src1, err := s.RegisterSource("first", 1, p1)
	require.NoError(t, err)

	require.NoError(t, s.UnregisterSource(src1))
	// 重复注销是误用
	assert.ErrorIs(t, s.UnregisterSource(src1), ErrInvalidArgument)
	// 注销后的句柄不可再用
	assert.ErrorIs(t, src1.SetFilter([]string{"*"}), ErrInvalidArgument)

	src2, err := s.RegisterSource("second", 2, p2)
	require.NoError(t, err)
	assert.Equal(t, src1.slot, src2.slot)

	// 别的会话的句柄不被接受
	_, other := newTestSession(clock, 0, 0)
	assert.ErrorIs(t, other.UnregisterSource(src2), ErrInvalidArgument)

	sink := &captureSink{}
	sk, err := s.RegisterSink("capture", sink)
	require.NoError(t, err)
	require.NoError(t, s.UnregisterSink(sk))
	assert.ErrorIs(t, s.UnregisterSink(sk), ErrInvalidArgument)

	// 注销后的 sink 不再接收交付
	require.NoError(t, s.Start())
	require.NoError(t, s.Sample())
	assert.Empty(t, sink.deliveries)
}

func TestManySourcesDynamicGrowth(t *testing.T) {
	clock := clockwork.NewFakeClock()
	_, s := newTestSession(clock, 0, 0)

	sink := &captureSink{}
	_, err := s.RegisterSink("capture", sink)
	require.NoError(t, err)

	// 注册数量远超任何固定上限的 source，容量按需增长
	const n = 100
	for i := 0; i < n; i++ {
		p := &fakeProducer{
			names:  []string{fmt.Sprintf("stat_%d", i)},
			values: []uint64{uint64(i)},
		}
		_, err := s.RegisterSource(fmt.Sprintf("src-%d", i), uint64(i), p)
		require.NoError(t, err)
	}

	require.NoError(t, s.Start())
	require.NoError(t, s.Sample())
	require.Len(t, sink.deliveries, n)

	// 按注册顺序交付
	for i, d := range sink.deliveries {
		assert.Equal(t, fmt.Sprintf("src-%d", i), d.sourceName)
		assert.Equal(t, []uint64{uint64(i)}, d.values)
	}
}

func TestSessionDurationExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	_, s := newTestSession(clock, time.Second, 5*time.Second)

	p := &fakeProducer{names: []string{"a"}, values: []uint64{1}}
	_, err := s.RegisterSource("src", 1, p)
	require.NoError(t, err)

	require.NoError(t, s.Start())
	clock.Advance(3 * time.Second)
	assert.True(t, s.IsActive())
	require.NoError(t, s.Sample())

	// 超过配置时长后，下一次采样报告超时并转入停止态
	clock.Advance(3 * time.Second)
	assert.ErrorIs(t, s.Sample(), ErrTimeout)
	assert.False(t, s.IsActive())
	assert.ErrorIs(t, s.Sample(), ErrNotStarted)

	// 过期的会话可重新启动
	require.NoError(t, s.Start())
	assert.True(t, s.IsActive())
}

func TestIsActiveLazyExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	_, s := newTestSession(clock, 0, 2*time.Second)

	require.NoError(t, s.Start())
	clock.Advance(time.Second)
	assert.True(t, s.IsActive())

	clock.Advance(2 * time.Second)
	// 无定时器，状态在查询时才转移
	assert.False(t, s.IsActive())
	assert.ErrorIs(t, s.Stop(), ErrAlreadyStopped)
}

func TestStartForValidation(t *testing.T) {
	clock := clockwork.NewFakeClock()
	_, s := newTestSession(clock, 10*time.Second, 0)

	// 显式时长短于采样间隔没有意义
	assert.ErrorIs(t, s.StartFor(time.Second), ErrInvalidArgument)
	assert.False(t, s.IsActive())

	// 0 表示不限时长
	require.NoError(t, s.StartFor(0))
	assert.True(t, s.IsActive())
	require.NoError(t, s.Stop())

	require.NoError(t, s.StartFor(time.Minute))
	clock.Advance(2 * time.Minute)
	assert.False(t, s.IsActive())
}

func TestLifecycleHooks(t *testing.T) {
	clock := clockwork.NewFakeClock()
	_, s := newTestSession(clock, 0, 0)

	p := &lifecycleProducer{fakeProducer: fakeProducer{names: []string{"a"}, values: []uint64{1}}}
	_, err := s.RegisterSource("src", 1, p)
	require.NoError(t, err)

	sk := &lifecycleSink{}
	_, err = s.RegisterSink("sink", sk)
	require.NoError(t, err)

	require.NoError(t, s.Start())
	assert.Equal(t, 1, p.started)
	assert.Equal(t, 1, sk.started)

	require.NoError(t, s.Stop())
	assert.Equal(t, 1, p.stopped)
	assert.Equal(t, 1, sk.stopped)
}

func TestStartHookFailureDoesNotAbort(t *testing.T) {
	clock := clockwork.NewFakeClock()
	_, s := newTestSession(clock, 0, 0)

	p := &lifecycleProducer{
		fakeProducer: fakeProducer{names: []string{"a"}, values: []uint64{1}},
		startErr:     errors.New("warmup failed"),
	}
	_, err := s.RegisterSource("src", 1, p)
	require.NoError(t, err)
	sink := &captureSink{}
	_, err = s.RegisterSink("capture", sink)
	require.NoError(t, err)

	// 钩子失败只记录，会话照常激活
	require.NoError(t, s.Start())
	assert.True(t, s.IsActive())
	require.NoError(t, s.Sample())
	assert.Len(t, sink.deliveries, 1)
}

func TestFreeSession(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg, s := newTestSession(clock, 0, 0)

	p := &fakeProducer{names: []string{"a"}, values: []uint64{1}}
	src, err := s.RegisterSource("src", 1, p)
	require.NoError(t, err)
	require.NoError(t, s.Start())

	require.Equal(t, 1, reg.Sessions())
	s.Free()
	s.Free() // 幂等
	assert.Equal(t, 0, reg.Sessions())

	// 释放后任何操作都是非法参数
	assert.ErrorIs(t, s.Start(), ErrInvalidArgument)
	assert.ErrorIs(t, s.Sample(), ErrInvalidArgument)
	assert.ErrorIs(t, s.Stop(), ErrInvalidArgument)
	_, err = s.RegisterSource("again", 2, p)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, _, err = s.XStatsNames("")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	// 随会话释放的 source 句柄同步失效
	_, err = src.XStatsName(0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
