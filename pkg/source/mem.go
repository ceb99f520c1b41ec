package source

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/stats-sampler/pkg/sampler"
)

// 内存统计项顺序固定，id 即下标
var memStatNames = []string{
	"mem_total_bytes",
	"mem_available_bytes",
	"mem_used_bytes",
	"mem_free_bytes",
	"mem_cached_bytes",
	"mem_buffers_bytes",
	"swap_total_bytes",
	"swap_used_bytes",
	"swap_free_bytes",
}

// MemSource 虚拟内存与交换分区数据源
type MemSource struct{}

// NewMemSource 创建内存数据源
func NewMemSource() *MemSource { return &MemSource{} }

// XStatsNames 实现 sampler.Producer
func (m *MemSource) XStatsNames(_ uint64, names []string, ids []uint64) (int, error) {
	if names == nil && ids == nil {
		return len(memStatNames), nil
	}
	n := min(len(names), len(memStatNames))
	for i := 0; i < n; i++ {
		names[i] = memStatNames[i]
		ids[i] = uint64(i)
	}
	return len(memStatNames), nil
}

// XStatsValues 实现 sampler.Producer
func (m *MemSource) XStatsValues(_ uint64, ids []uint64, values []uint64) (int, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, fmt.Errorf("virtual memory: %w", err)
	}
	sw, err := mem.SwapMemory()
	if err != nil {
		return 0, fmt.Errorf("swap memory: %w", err)
	}
	snap := []uint64{
		vm.Total, vm.Available, vm.Used, vm.Free, vm.Cached, vm.Buffers,
		sw.Total, sw.Used, sw.Free,
	}
	for i, id := range ids {
		if id >= uint64(len(snap)) {
			return i, fmt.Errorf("%w: mem stat id %d", sampler.ErrNotFound, id)
		}
		values[i] = snap[id]
	}
	return len(ids), nil
}
