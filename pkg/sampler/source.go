package sampler

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/stats-sampler/pkg/logger"
)

// Producer 数据源核心契约（所有 source 必须实现）
// 两阶段查询协议：先以 names==nil && ids==nil 查询总数，
// 再用足量缓冲区第二次调用填充，避免固定上限。
type Producer interface {
	// XStatsNames 枚举可用统计项
	// names/ids 同为 nil 时仅返回总数（size query），不写任何输出；
	// 否则最多填充 len(names) 个 (name,id) 对，返回实际可用总数
	// （可能超过容量，调用方需要用足够容量重新查询）。
	XStatsNames(sourceID uint64, names []string, ids []uint64) (int, error)

	// XStatsValues 按 ids 顺序填充当前值，返回填充数量
	// ids 必须是 XStatsNames 之前返回过的 id。
	XStatsValues(sourceID uint64, ids []uint64, values []uint64) (int, error)
}

// Resetter 可选能力：清零统计项（ids==nil 表示全部清零）
type Resetter interface {
	XStatsReset(sourceID uint64, ids []uint64) error
}

// SourceLifecycle 可选能力：随所属 session 的 start/stop 联动的生命周期钩子
type SourceLifecycle interface {
	Start(sourceID uint64) error
	Stop(sourceID uint64) error
}

// catalog 缓存的统计项目录：(name, id) 有序序列
// 每个激活周期构建一次，跨采样复用，直到显式失效。
type catalog struct {
	names []string
	ids   []uint64
}

// Source 已注册数据源的句柄（由 Session.RegisterSource 返回）
// 独占持有自己的目录缓存和过滤模式副本；注销后句柄失效。
type Source struct {
	name     string
	id       uint64
	producer Producer
	session  *Session
	slot     int
	valid    bool

	catalog      *catalog
	filter       []string
	filterActive bool

	// 过滤结果，始终是目录的子集；无过滤时等于完整目录
	filteredNames []string
	filteredIDs   []uint64
}

// Name 返回注册时的 source 名称
func (src *Source) Name() string { return src.name }

// ID 返回注册时的数字标识（区分同类 producer 的多个实例）
func (src *Source) ID() uint64 { return src.id }

// XStatsName 按 id 反查统计项名称（NoNames sink 的旁路查询通道）
func (src *Source) XStatsName(id uint64) (string, error) {
	if src == nil || !src.valid {
		return "", fmt.Errorf("%w: source not registered", ErrInvalidArgument)
	}
	if err := src.ensureCatalog(); err != nil {
		return "", err
	}
	for i, cid := range src.catalog.ids {
		if cid == id {
			return src.catalog.names[i], nil
		}
	}
	return "", fmt.Errorf("%w: no stat with id %d", ErrNotFound, id)
}

// InvalidateCatalog 使缓存目录失效，下次采样时重新执行两阶段查询
// producer 的统计项集合发生变化时调用。
func (src *Source) InvalidateCatalog() {
	if src == nil || !src.valid {
		return
	}
	src.catalog = nil
	src.filteredNames = nil
	src.filteredIDs = nil
}

// ensureCatalog 构建目录缓存（两阶段：查总数 -> 按总数分配 -> 填充）
// 第一次调用返回负数或失败只会跳过该 source，不影响其他 source。
func (src *Source) ensureCatalog() error {
	if src.catalog != nil {
		return nil
	}

	total, err := src.producer.XStatsNames(src.id, nil, nil)
	if err != nil {
		return fmt.Errorf("xstats size query: %w", err)
	}
	if total < 0 {
		return fmt.Errorf("%w: xstats size query returned %d", ErrInvalidArgument, total)
	}

	names := make([]string, total)
	ids := make([]uint64, total)
	n, err := src.producer.XStatsNames(src.id, names, ids)
	if err != nil {
		return fmt.Errorf("xstats names query: %w", err)
	}
	if n > total {
		// 两次调用之间统计项变多，本周期按已分配容量截断
		logger.Warn("xstats catalog truncated",
			zap.String("source", src.name),
			zap.Int("available", n),
			zap.Int("capacity", total))
		n = total
	}

	src.catalog = &catalog{names: names[:n], ids: ids[:n]}
	src.recomputeFiltered()
	return nil
}

// recomputeFiltered 按当前过滤器重算过滤后的 (name, id) 子集
// 目录重建或过滤器变更后都必须调用。
func (src *Source) recomputeFiltered() {
	if src.catalog == nil {
		src.filteredNames = nil
		src.filteredIDs = nil
		return
	}
	if !src.filterActive || len(src.filter) == 0 {
		src.filteredNames = src.catalog.names
		src.filteredIDs = src.catalog.ids
		return
	}

	names := make([]string, 0, len(src.catalog.names))
	ids := make([]uint64, 0, len(src.catalog.ids))
	for i, name := range src.catalog.names {
		if matchAny(src.filter, name) {
			names = append(names, name)
			ids = append(ids, src.catalog.ids[i])
		}
	}
	src.filteredNames = names
	src.filteredIDs = ids
}

// SetFilter 替换过滤模式集合（复制一份，归 source 所有）
// 超过 MaxFilterPatterns 返回 ErrTooManyPatterns；
// 若目录已缓存则立即重算过滤结果。
func (src *Source) SetFilter(patterns []string) error {
	if src == nil || !src.valid {
		return fmt.Errorf("%w: source not registered", ErrInvalidArgument)
	}
	if len(patterns) > MaxFilterPatterns {
		return fmt.Errorf("%w: %d patterns (max %d)", ErrTooManyPatterns,
			len(patterns), MaxFilterPatterns)
	}

	src.filter = slices.Clone(patterns)
	src.filterActive = true
	src.recomputeFiltered()
	return nil
}

// ClearFilter 停用过滤，恢复为完整目录
func (src *Source) ClearFilter() error {
	if src == nil || !src.valid {
		return fmt.Errorf("%w: source not registered", ErrInvalidArgument)
	}
	src.filter = nil
	src.filterActive = false
	src.recomputeFiltered()
	return nil
}

// Filter 返回当前生效的过滤模式副本
func (src *Source) Filter() []string {
	if src == nil || !src.valid || !src.filterActive {
		return nil
	}
	return slices.Clone(src.filter)
}
