package sampler

import (
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/stats-sampler/pkg/logger"
)

// Registry 会话注册表：Poll 的作用域（显式构造注入，无进程级隐藏状态）
// 容量随切片追加几何增长，会话创建不会因容量耗尽失败。
//
// 与 Session 相同的并发约定：Poll/NewSession/Close 由同一控制线程驱动。
type Registry struct {
	clock    clockwork.Clock
	sessions []*Session
	seq      uint64
}

// RegistryOption 构造期选项
type RegistryOption func(*Registry)

// WithClock 注入时钟（测试里配合 clockwork.NewFakeClock 推进虚拟时间）
func WithClock(clock clockwork.Clock) RegistryOption {
	return func(r *Registry) { r.clock = clock }
}

// NewRegistry 创建会话注册表
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewSession 创建会话并登记到本注册表
// 配置名为空时生成 "session-N" 形式的标识。
func (r *Registry) NewSession(conf SessionConf) (*Session, error) {
	if conf.SampleInterval < 0 || conf.Duration < 0 {
		return nil, fmt.Errorf("%w: negative interval or duration", ErrInvalidArgument)
	}

	r.seq++
	name := conf.Name
	if name == "" {
		name = fmt.Sprintf("session-%d", r.seq)
	}
	s := &Session{
		name:     name,
		interval: conf.SampleInterval,
		duration: conf.Duration,
		clock:    r.clock,
		registry: r,
	}
	r.sessions = append(r.sessions, s)

	logger.Debug("session created",
		zap.String("session", name),
		zap.Duration("interval", conf.SampleInterval),
		zap.Duration("duration", conf.Duration))
	return s, nil
}

// Poll 轮询入口：触发所有到期会话采样，返回本轮采样的会话数
// 只有激活且配置了非零间隔、距上次采样已满一个间隔的会话会被采样；
// interval 为 0 的会话永远不被自动采样。本函数不休眠，调用方应以
// 比最小间隔更细的节奏在自己的循环里驱动它。
func (r *Registry) Poll() int {
	sampled := 0
	for _, s := range r.sessions {
		if s == nil || s.interval == 0 || !s.IsActive() {
			continue
		}
		if r.clock.Since(s.lastSample) < s.interval {
			continue
		}
		if err := s.Sample(); err != nil {
			logger.Warn("poll sample failed",
				zap.String("session", s.name),
				zap.Error(err))
			continue
		}
		sampled++
	}
	return sampled
}

// Sessions 返回当前登记的会话数
func (r *Registry) Sessions() int {
	return len(r.sessions)
}

// Close 释放注册表持有的全部会话
func (r *Registry) Close() {
	for len(r.sessions) > 0 {
		r.sessions[0].Free()
	}
}

// remove 从注册表摘除会话（Session.Free 调用）
func (r *Registry) remove(s *Session) {
	for i, cur := range r.sessions {
		if cur == s {
			r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)
			return
		}
	}
}
