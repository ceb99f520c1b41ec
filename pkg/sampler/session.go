package sampler

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/stats-sampler/pkg/logger"
)

// SessionConf 采样会话配置
// Interval 为 0 表示只接受手动 Sample，Duration 为 0 表示不限时长。
type SessionConf struct {
	Name           string        // 会话名（为空时自动生成）
	SampleInterval time.Duration // 自动采样间隔（0 = 仅手动）
	Duration       time.Duration // 会话总时长（0 = 无限）
}

// Session 调度与所有权单元：绑定若干 source 与 sink，按节奏驱动采样
// 会话独占其 source/sink，Free 后全部随之失效。
//
// 并发约定：Sample 与各注册/注销/过滤操作必须由同一控制线程调用，
// 内部不加锁；跨线程共享会话需调用方自行串行化。
type Session struct {
	name     string
	interval time.Duration
	duration time.Duration

	clock    clockwork.Clock
	registry *Registry

	startTime  time.Time
	lastSample time.Time
	active     bool
	freed      bool

	sources []*Source
	sinks   []*Sink
}

// Name 返回会话名
func (s *Session) Name() string { return s.name }

// Start 激活会话（使用配置中的 Duration）
// 已激活时返回 ErrAlreadyActive。激活开启新的采样周期：
// 目录缓存失效，source/sink 的可选 Start 钩子被触发。
func (s *Session) Start() error {
	return s.start(s.duration, false)
}

// StartFor 以显式时长激活会话（两阶段时长变体）
// duration 非零且小于采样间隔时返回 ErrInvalidArgument。
func (s *Session) StartFor(duration time.Duration) error {
	return s.start(duration, true)
}

func (s *Session) start(duration time.Duration, explicit bool) error {
	if s.freed {
		return fmt.Errorf("%w: session already freed", ErrInvalidArgument)
	}
	if s.IsActive() {
		return fmt.Errorf("%w: %s", ErrAlreadyActive, s.name)
	}
	if explicit && duration != 0 && duration < s.interval {
		return fmt.Errorf("%w: duration %s less than interval %s",
			ErrInvalidArgument, duration, s.interval)
	}

	s.duration = duration
	s.startTime = s.clock.Now()
	s.lastSample = s.startTime
	s.active = true

	// 新激活周期：重新枚举统计项
	for _, src := range s.sources {
		if src != nil && src.valid {
			src.InvalidateCatalog()
		}
	}

	// 可选生命周期钩子，钩子失败只记录不中断
	for _, src := range s.sources {
		if src == nil || !src.valid {
			continue
		}
		if lc, ok := src.producer.(SourceLifecycle); ok {
			if err := lc.Start(src.id); err != nil {
				logger.Warn("source start hook failed",
					zap.String("session", s.name),
					zap.String("source", src.name),
					zap.Error(err))
			}
		}
	}
	for _, sk := range s.sinks {
		if sk == nil || !sk.valid {
			continue
		}
		if lc, ok := sk.consumer.(SinkLifecycle); ok {
			if err := lc.Start(); err != nil {
				logger.Warn("sink start hook failed",
					zap.String("session", s.name),
					zap.String("sink", sk.name),
					zap.Error(err))
			}
		}
	}

	logger.Info("session started",
		zap.String("session", s.name),
		zap.Duration("interval", s.interval),
		zap.Duration("duration", s.duration))
	return nil
}

// Stop 停止会话（不清除 source/sink，也不清目录缓存）
// 未激活时返回 ErrAlreadyStopped。
func (s *Session) Stop() error {
	if s.freed {
		return fmt.Errorf("%w: session already freed", ErrInvalidArgument)
	}
	if !s.IsActive() {
		return fmt.Errorf("%w: %s", ErrAlreadyStopped, s.name)
	}
	s.active = false

	for _, src := range s.sources {
		if src == nil || !src.valid {
			continue
		}
		if lc, ok := src.producer.(SourceLifecycle); ok {
			if err := lc.Stop(src.id); err != nil {
				logger.Warn("source stop hook failed",
					zap.String("session", s.name),
					zap.String("source", src.name),
					zap.Error(err))
			}
		}
	}
	for _, sk := range s.sinks {
		if sk == nil || !sk.valid {
			continue
		}
		if lc, ok := sk.consumer.(SinkLifecycle); ok {
			if err := lc.Stop(); err != nil {
				logger.Warn("sink stop hook failed",
					zap.String("session", s.name),
					zap.String("sink", sk.name),
					zap.Error(err))
			}
		}
	}

	logger.Info("session stopped", zap.String("session", s.name))
	return nil
}

// IsActive 会话是否处于激活状态
// 配置了 Duration 且已超时的会话在此懒惰地转为停止态（无定时器，
// 每次查询时求值），因此返回 false 可能伴随状态转移副作用。
func (s *Session) IsActive() bool {
	if s.freed || !s.active {
		return false
	}
	if s.duration > 0 && s.clock.Since(s.startTime) > s.duration {
		s.active = false
		logger.Info("session expired",
			zap.String("session", s.name),
			zap.Duration("duration", s.duration))
		return false
	}
	return true
}

// Free 释放会话：注销全部 source/sink 并从注册表摘除
// 之后对该会话的任何操作都返回 ErrInvalidArgument。
func (s *Session) Free() {
	if s.freed {
		return
	}
	if s.active {
		_ = s.Stop()
	}
	for _, src := range s.sources {
		if src != nil && src.valid {
			_ = s.UnregisterSource(src)
		}
	}
	for _, sk := range s.sinks {
		if sk != nil && sk.valid {
			_ = s.UnregisterSink(sk)
		}
	}
	s.sources = nil
	s.sinks = nil
	s.freed = true
	if s.registry != nil {
		s.registry.remove(s)
	}
	logger.Debug("session freed", zap.String("session", s.name))
}

// RegisterSource 注册数据源，返回稳定句柄
// producer 为 nil 返回 ErrInvalidArgument；容量按几何增长，注册
// 不会因为容量耗尽失败；已注销的槽位被复用。
func (s *Session) RegisterSource(name string, id uint64, producer Producer) (*Source, error) {
	if s.freed {
		return nil, fmt.Errorf("%w: session already freed", ErrInvalidArgument)
	}
	if producer == nil {
		return nil, fmt.Errorf("%w: nil producer", ErrInvalidArgument)
	}

	src := &Source{
		name:     name,
		id:       id,
		producer: producer,
		session:  s,
		valid:    true,
	}
	for i, old := range s.sources {
		if old == nil || !old.valid {
			src.slot = i
			s.sources[i] = src
			return src, nil
		}
	}
	src.slot = len(s.sources)
	s.sources = append(s.sources, src)

	logger.Debug("source registered",
		zap.String("session", s.name),
		zap.String("source", name),
		zap.Uint64("id", id))
	return src, nil
}

// UnregisterSource 注销数据源并释放其目录/过滤存储
// 重复注销或句柄不属于本会话时返回 ErrInvalidArgument。
func (s *Session) UnregisterSource(src *Source) error {
	if s.freed {
		return fmt.Errorf("%w: session already freed", ErrInvalidArgument)
	}
	if src == nil || !src.valid || src.session != s {
		return fmt.Errorf("%w: source not registered with this session", ErrInvalidArgument)
	}
	src.valid = false
	src.catalog = nil
	src.filter = nil
	src.filterActive = false
	src.filteredNames = nil
	src.filteredIDs = nil
	return nil
}

// RegisterSink 注册数据汇，返回稳定句柄
func (s *Session) RegisterSink(name string, consumer Consumer, opts ...SinkOption) (*Sink, error) {
	if s.freed {
		return nil, fmt.Errorf("%w: session already freed", ErrInvalidArgument)
	}
	if consumer == nil {
		return nil, fmt.Errorf("%w: nil consumer", ErrInvalidArgument)
	}

	sk := &Sink{
		name:     name,
		consumer: consumer,
		session:  s,
		valid:    true,
	}
	for _, opt := range opts {
		opt(sk)
	}
	for i, old := range s.sinks {
		if old == nil || !old.valid {
			sk.slot = i
			s.sinks[i] = sk
			return sk, nil
		}
	}
	sk.slot = len(s.sinks)
	s.sinks = append(s.sinks, sk)

	logger.Debug("sink registered",
		zap.String("session", s.name),
		zap.String("sink", name),
		zap.Bool("no_names", sk.noNames))
	return sk, nil
}

// UnregisterSink 注销数据汇；重复注销返回 ErrInvalidArgument
func (s *Session) UnregisterSink(sk *Sink) error {
	if s.freed {
		return fmt.Errorf("%w: session already freed", ErrInvalidArgument)
	}
	if sk == nil || !sk.valid || sk.session != s {
		return fmt.Errorf("%w: sink not registered with this session", ErrInvalidArgument)
	}
	sk.valid = false
	return nil
}

// Sample 执行一次采样：对每个有效 source 按注册顺序
// 补目录 -> 过滤 -> 取值，再扇出到每个有效 sink。
// 单个 source 或 sink 失败只跳过自己；会话未激活返回 ErrNotStarted，
// 时长已耗尽返回 ErrTimeout。
func (s *Session) Sample() error {
	if s.freed {
		return fmt.Errorf("%w: session already freed", ErrInvalidArgument)
	}
	if s.active && s.duration > 0 && s.clock.Since(s.startTime) > s.duration {
		s.active = false
		return fmt.Errorf("%w: %s", ErrTimeout, s.name)
	}
	if !s.active {
		return fmt.Errorf("%w: %s", ErrNotStarted, s.name)
	}

	for _, src := range s.sources {
		if src == nil || !src.valid {
			continue
		}
		if err := src.ensureCatalog(); err != nil {
			logger.Warn("skipping source for this pass",
				zap.String("session", s.name),
				zap.String("source", src.name),
				zap.Error(err))
			continue
		}

		ids := src.filteredIDs
		names := src.filteredNames
		values := make([]uint64, len(ids))
		n, err := src.producer.XStatsValues(src.id, ids, values)
		if err != nil {
			logger.Warn("value fetch failed, skipping source",
				zap.String("session", s.name),
				zap.String("source", src.name),
				zap.Error(err))
			continue
		}
		if n < len(ids) {
			ids, names, values = ids[:n], names[:n], values[:n]
		}

		for _, sk := range s.sinks {
			if sk == nil || !sk.valid {
				continue
			}
			outNames := names
			if sk.noNames {
				outNames = nil
			}
			if err := sk.consumer.Output(src.name, src.id, outNames, ids, values); err != nil {
				logger.Warn("sink output failed, continuing with remaining sinks",
					zap.String("session", s.name),
					zap.String("source", src.name),
					zap.String("sink", sk.name),
					zap.Error(err))
			}
		}
	}

	s.lastSample = s.clock.Now()
	return nil
}
