package sampler

import (
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXStatsNamesSingleSource(t *testing.T) {
	clock := clockwork.NewFakeClock()
	_, s := newTestSession(clock, 0, 0)

	p := &fakeProducer{names: []string{"rx", "tx"}, values: []uint64{1, 2}}
	src, err := s.RegisterSource("nic", 1, p)
	require.NoError(t, err)

	// 过滤器不影响自省目录
	require.NoError(t, src.SetFilter([]string{"rx"}))

	names, ids, err := s.XStatsNames("nic")
	require.NoError(t, err)
	assert.Equal(t, []string{"rx", "tx"}, names)
	assert.Equal(t, []uint64{0, 1}, ids)

	_, _, err = s.XStatsNames("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestXStatsNamesAggregate(t *testing.T) {
	clock := clockwork.NewFakeClock()
	_, s := newTestSession(clock, 0, 0)

	p1 := &fakeProducer{names: []string{"a"}, values: []uint64{1}}
	p2 := &fakeProducer{names: []string{"b", "c"}, values: []uint64{2, 3}}
	_, err := s.RegisterSource("one", 1, p1)
	require.NoError(t, err)
	_, err = s.RegisterSource("two", 2, p2)
	require.NoError(t, err)

	// 空串聚合全部 source，按注册顺序拼接
	names, ids, err := s.XStatsNames("")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names)
	assert.Len(t, ids, 3)

	// 没有任何 source 时聚合返回空，不是错误
	_, empty := newTestSession(clock, 0, 0)
	names, ids, err = empty.XStatsNames("")
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.Empty(t, ids)
}

func TestXStatsGet(t *testing.T) {
	clock := clockwork.NewFakeClock()
	_, s := newTestSession(clock, 0, 0)

	p := &fakeProducer{names: []string{"a", "b"}, values: []uint64{5, 7}}
	_, err := s.RegisterSource("src", 1, p)
	require.NoError(t, err)

	ids, values, err := s.XStatsGet("src")
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1}, ids)
	assert.Equal(t, []uint64{5, 7}, values)

	// 自省读取不要求会话处于激活状态
	assert.False(t, s.IsActive())

	_, _, err = s.XStatsGet("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestXStatsReset(t *testing.T) {
	clock := clockwork.NewFakeClock()
	_, s := newTestSession(clock, 0, 0)

	resettable := &resettableProducer{
		fakeProducer: fakeProducer{names: []string{"a", "b"}, values: []uint64{5, 7}},
	}
	plain := &fakeProducer{names: []string{"c"}, values: []uint64{9}}
	_, err := s.RegisterSource("resettable", 1, resettable)
	require.NoError(t, err)
	_, err = s.RegisterSource("plain", 2, plain)
	require.NoError(t, err)

	// 指定 id 清零
	require.NoError(t, s.XStatsReset("resettable", []uint64{1}))
	assert.Equal(t, []uint64{5, 0}, resettable.values)

	// nil 表示全部清零
	require.NoError(t, s.XStatsReset("resettable", nil))
	assert.Equal(t, []uint64{0, 0}, resettable.values)
	require.Len(t, resettable.resetCalls, 2)

	// 指名的 source 不支持清零是错误
	assert.ErrorIs(t, s.XStatsReset("plain", nil), ErrInvalidArgument)

	// 聚合模式下不支持清零的 source 被跳过
	resettable.values = []uint64{3, 4}
	require.NoError(t, s.XStatsReset("", nil))
	assert.Equal(t, []uint64{0, 0}, resettable.values)
	assert.Equal(t, []uint64{9}, plain.values)

	assert.ErrorIs(t, s.XStatsReset("missing", nil), ErrNotFound)
}
