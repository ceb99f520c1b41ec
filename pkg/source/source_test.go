package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stats-sampler/pkg/sampler"
)

// 两阶段协议契约：size query 返回总数且不写输出，
// 足量缓冲区第二次调用填满全部 (name, id) 对。
func checkTwoPhase(t *testing.T, p sampler.Producer) ([]string, []uint64) {
	t.Helper()

	total, err := p.XStatsNames(1, nil, nil)
	require.NoError(t, err)
	require.Greater(t, total, 0)

	names := make([]string, total)
	ids := make([]uint64, total)
	n, err := p.XStatsNames(1, names, ids)
	require.NoError(t, err)
	require.Equal(t, total, n)

	for i, name := range names {
		assert.NotEmpty(t, name)
		assert.Equal(t, uint64(i), ids[i])
	}

	values := make([]uint64, total)
	got, err := p.XStatsValues(1, ids, values)
	require.NoError(t, err)
	assert.Equal(t, total, got)
	return names, ids
}

func TestMemSourceTwoPhase(t *testing.T) {
	names, _ := checkTwoPhase(t, NewMemSource())
	assert.Contains(t, names, "mem_total_bytes")
	assert.Contains(t, names, "swap_free_bytes")
}

func TestMemSourceUnknownID(t *testing.T) {
	m := NewMemSource()
	values := make([]uint64, 1)
	_, err := m.XStatsValues(1, []uint64{9999}, values)
	assert.ErrorIs(t, err, sampler.ErrNotFound)
}

func TestCPUSourceTwoPhase(t *testing.T) {
	c := NewCPUSource(false)
	names, _ := checkTwoPhase(t, c)
	assert.Contains(t, names[0], "_user_ms")

	require.NoError(t, c.Start(1))
	require.NoError(t, c.Stop(1))
}

func TestCPUSourcePerCPUEnumeratesMore(t *testing.T) {
	aggregate, err := NewCPUSource(false).XStatsNames(1, nil, nil)
	require.NoError(t, err)
	perCPU, err := NewCPUSource(true).XStatsNames(1, nil, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, perCPU, aggregate)
}

func TestNetSourceResetBaseline(t *testing.T) {
	n := NewNetSource()
	total, err := n.XStatsNames(1, nil, nil)
	if err != nil || total == 0 {
		t.Skip("no network interfaces visible")
	}

	ids := make([]uint64, total)
	names := make([]string, total)
	_, err = n.XStatsNames(1, names, ids)
	require.NoError(t, err)

	// 全量清零后读数相对基线
	require.NoError(t, n.XStatsReset(1, nil))
	values := make([]uint64, total)
	got, err := n.XStatsValues(1, ids, values)
	require.NoError(t, err)
	require.Equal(t, total, got)

	before := make([]uint64, total)
	copy(before, values)
	// 基线取自清零时刻，增量不可能超过当前内核计数
	raw := NewNetSource()
	rawValues := make([]uint64, total)
	_, err = raw.XStatsValues(1, ids, rawValues)
	require.NoError(t, err)
	for i := range before {
		assert.LessOrEqual(t, before[i], rawValues[i])
	}

	assert.ErrorIs(t, n.XStatsReset(1, []uint64{uint64(total) + 100}), sampler.ErrNotFound)
}
