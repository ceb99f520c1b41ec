package source

import (
	"fmt"

	gnet "github.com/shirou/gopsutil/v3/net"

	"github.com/stats-sampler/pkg/sampler"
)

var netCounterNames = []string{
	"rx_bytes", "rx_packets", "rx_errs", "rx_drop",
	"tx_bytes", "tx_packets", "tx_errs", "tx_drop",
}

// NetSource 逐网卡的收发计数数据源
// 内核计数单调递增，通过基线差值支持 XStatsReset 语义。
type NetSource struct {
	baseline []uint64
}

// NewNetSource 创建网络数据源
func NewNetSource() *NetSource { return &NetSource{} }

func (n *NetSource) snapshot() ([]string, []uint64, error) {
	counters, err := gnet.IOCounters(true)
	if err != nil {
		return nil, nil, fmt.Errorf("net io counters: %w", err)
	}
	names := make([]string, 0, len(counters)*len(netCounterNames))
	values := make([]uint64, 0, cap(names))
	for _, c := range counters {
		names = append(names,
			c.Name+"_rx_bytes", c.Name+"_rx_packets", c.Name+"_rx_errs", c.Name+"_rx_drop",
			c.Name+"_tx_bytes", c.Name+"_tx_packets", c.Name+"_tx_errs", c.Name+"_tx_drop",
		)
		values = append(values,
			c.BytesRecv, c.PacketsRecv, c.Errin, c.Dropin,
			c.BytesSent, c.PacketsSent, c.Errout, c.Dropout,
		)
	}
	return names, values, nil
}

// XStatsNames 实现 sampler.Producer
func (n *NetSource) XStatsNames(_ uint64, names []string, ids []uint64) (int, error) {
	snapNames, _, err := n.snapshot()
	if err != nil {
		return 0, err
	}
	if names == nil && ids == nil {
		return len(snapNames), nil
	}
	count := min(len(names), len(snapNames))
	for i := 0; i < count; i++ {
		names[i] = snapNames[i]
		ids[i] = uint64(i)
	}
	return len(snapNames), nil
}

// XStatsValues 实现 sampler.Producer：返回相对基线的增量
func (n *NetSource) XStatsValues(_ uint64, ids []uint64, values []uint64) (int, error) {
	_, snap, err := n.snapshot()
	if err != nil {
		return 0, err
	}
	for i, id := range ids {
		if id >= uint64(len(snap)) {
			return i, fmt.Errorf("%w: net stat id %d", sampler.ErrNotFound, id)
		}
		v := snap[id]
		if id < uint64(len(n.baseline)) && n.baseline[id] <= v {
			v -= n.baseline[id]
		}
		values[i] = v
	}
	return len(ids), nil
}

// XStatsReset 实现 sampler.Resetter：ids 为 nil 时重置全部基线
func (n *NetSource) XStatsReset(_ uint64, ids []uint64) error {
	_, snap, err := n.snapshot()
	if err != nil {
		return err
	}
	if ids == nil {
		n.baseline = snap
		return nil
	}
	if len(n.baseline) < len(snap) {
		grown := make([]uint64, len(snap))
		copy(grown, n.baseline)
		n.baseline = grown
	}
	for _, id := range ids {
		if id >= uint64(len(snap)) {
			return fmt.Errorf("%w: net stat id %d", sampler.ErrNotFound, id)
		}
		n.baseline[id] = snap[id]
	}
	return nil
}
