// Package source 内置数据源：把 gopsutil 的系统统计包装成 sampler.Producer
// 两阶段协议下 id 是快照内的位置下标，同一主机同一进程内保持稳定。
package source

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"

	"github.com/stats-sampler/pkg/sampler"
)

// CPUSource CPU时间与负载数据源
// 统计项：每个CPU条目的 user/system/idle/iowait/irq/softirq/steal
// 累计毫秒，外加 1/5/15 分钟负载（放大1000倍取整）。
type CPUSource struct {
	perCPU bool
}

// NewCPUSource 创建CPU数据源（perCPU 为 true 时逐核枚举）
func NewCPUSource(perCPU bool) *CPUSource {
	return &CPUSource{perCPU: perCPU}
}

// snapshot 统一的枚举+取值路径，保证名字与值的顺序始终一致
func (c *CPUSource) snapshot() ([]string, []uint64, error) {
	times, err := cpu.Times(c.perCPU)
	if err != nil {
		return nil, nil, fmt.Errorf("cpu times: %w", err)
	}

	names := make([]string, 0, len(times)*7+3)
	values := make([]uint64, 0, len(times)*7+3)
	push := func(name string, seconds float64) {
		names = append(names, name)
		values = append(values, uint64(seconds*1000))
	}
	for _, ts := range times {
		push(ts.CPU+"_user_ms", ts.User)
		push(ts.CPU+"_system_ms", ts.System)
		push(ts.CPU+"_idle_ms", ts.Idle)
		push(ts.CPU+"_iowait_ms", ts.Iowait)
		push(ts.CPU+"_irq_ms", ts.Irq)
		push(ts.CPU+"_softirq_ms", ts.Softirq)
		push(ts.CPU+"_steal_ms", ts.Steal)
	}

	if avg, err := load.Avg(); err == nil {
		push("load_avg_1m_milli", avg.Load1)
		push("load_avg_5m_milli", avg.Load5)
		push("load_avg_15m_milli", avg.Load15)
	}
	return names, values, nil
}

// XStatsNames 实现 sampler.Producer
func (c *CPUSource) XStatsNames(_ uint64, names []string, ids []uint64) (int, error) {
	snapNames, _, err := c.snapshot()
	if err != nil {
		return 0, err
	}
	if names == nil && ids == nil {
		return len(snapNames), nil
	}
	n := min(len(names), len(snapNames))
	for i := 0; i < n; i++ {
		names[i] = snapNames[i]
		ids[i] = uint64(i)
	}
	return len(snapNames), nil
}

// XStatsValues 实现 sampler.Producer
func (c *CPUSource) XStatsValues(_ uint64, ids []uint64, values []uint64) (int, error) {
	_, snapValues, err := c.snapshot()
	if err != nil {
		return 0, err
	}
	for i, id := range ids {
		if id >= uint64(len(snapValues)) {
			return i, fmt.Errorf("%w: cpu stat id %d", sampler.ErrNotFound, id)
		}
		values[i] = snapValues[id]
	}
	return len(ids), nil
}

// Start 实现 sampler.SourceLifecycle：预检查CPU可用性
func (c *CPUSource) Start(_ uint64) error {
	if _, err := cpu.Counts(false); err != nil {
		return fmt.Errorf("cpu counts: %w", err)
	}
	return nil
}

// Stop 实现 sampler.SourceLifecycle
func (c *CPUSource) Stop(_ uint64) error { return nil }
