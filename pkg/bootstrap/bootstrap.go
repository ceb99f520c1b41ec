// Package bootstrap 把配置装配成可运行的采样会话：
// 初始化Prometheus注册器，按开关注册数据源与数据汇，统一收口资源释放。
package bootstrap

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/stats-sampler/pkg/config"
	"github.com/stats-sampler/pkg/logger"
	"github.com/stats-sampler/pkg/sampler"
	"github.com/stats-sampler/pkg/source"
)

// sourceModule 数据源装配条目（新增数据源只需在表里加一条）
type sourceModule struct {
	Enabled bool
	Name    string
	ID      uint64
	New     func() sampler.Producer
}

// sinkModule 数据汇装配条目
// New 返回消费者、注册选项和可选的关闭函数。
type sinkModule struct {
	Enabled bool
	Name    string
	New     func() (sampler.Consumer, []sampler.SinkOption, func() error, error)
}

// App 装配完成的采样应用
type App struct {
	Registry *sampler.Registry
	Session  *sampler.Session
	Ring     *sampler.RingBufferSink // 为nil表示环形缓冲区未启用
	closers  []func() error
}

// InitPromRegistry 初始化Prometheus指标注册器（不注册Go指标）
// enableProcess 为 true 时附带进程指标。
func InitPromRegistry(enableProcess bool) *prometheus.Registry {
	promReg := prometheus.NewRegistry()
	if enableProcess {
		promReg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	}
	return promReg
}

// Build 按配置装配采样会话：创建会话、注册启用的数据源和数据汇、下发过滤模式
// 任一必需步骤失败时回收已打开的资源后返回错误。
func Build(reg *sampler.Registry, promReg prometheus.Registerer, cfg *config.Config) (*App, error) {
	session, err := reg.NewSession(sampler.SessionConf{
		Name:           cfg.Sampler.Name,
		SampleInterval: cfg.Sampler.Interval,
		Duration:       cfg.Sampler.Duration,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	app := &App{Registry: reg, Session: session}

	sources := []sourceModule{
		{
			Enabled: cfg.Sampler.Sources.CPU.Enable,
			Name:    "cpu",
			ID:      1,
			New: func() sampler.Producer {
				return source.NewCPUSource(cfg.Sampler.Sources.CPU.PerCPU)
			},
		},
		{
			Enabled: cfg.Sampler.Sources.Mem.Enable,
			Name:    "mem",
			ID:      2,
			New: func() sampler.Producer {
				return source.NewMemSource()
			},
		},
		{
			Enabled: cfg.Sampler.Sources.Net.Enable,
			Name:    "net",
			ID:      3,
			New: func() sampler.Producer {
				return source.NewNetSource()
			},
		},
	}
	for _, m := range sources {
		if !m.Enabled {
			continue
		}
		src, err := session.RegisterSource(m.Name, m.ID, m.New())
		if err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("register source %s: %w", m.Name, err)
		}
		if len(cfg.Sampler.Filters) > 0 {
			if err := src.SetFilter(cfg.Sampler.Filters); err != nil {
				_ = app.Close()
				return nil, fmt.Errorf("set filter on source %s: %w", m.Name, err)
			}
		}
		logger.Info("source registered",
			zap.String("source", m.Name),
			zap.Uint64("source_id", m.ID),
			zap.Strings("filters", cfg.Sampler.Filters))
	}

	sinks := []sinkModule{
		{
			Enabled: cfg.Sinks.Console.Enable,
			Name:    "console",
			New: func() (sampler.Consumer, []sampler.SinkOption, func() error, error) {
				return sampler.NewConsoleSink(os.Stdout), nil, nil, nil
			},
		},
		{
			Enabled: cfg.Sinks.RingBuffer.Enable,
			Name:    "ringbuffer",
			New: func() (sampler.Consumer, []sampler.SinkOption, func() error, error) {
				rb, err := sampler.NewRingBufferSink(cfg.Sinks.RingBuffer.Capacity)
				if err != nil {
					return nil, nil, nil, err
				}
				app.Ring = rb
				// 环形缓冲区不持有名字，走无名优化路径
				return rb, []sampler.SinkOption{sampler.WithoutNames()}, func() error {
					rb.Destroy()
					return nil
				}, nil
			},
		},
		{
			Enabled: cfg.Sinks.File.Enable,
			Name:    "file",
			New: func() (sampler.Consumer, []sampler.SinkOption, func() error, error) {
				format, err := sampler.ParseFileFormat(cfg.Sinks.File.Format)
				if err != nil {
					return nil, nil, nil, err
				}
				fs, err := sampler.NewFileSink(sampler.FileSinkConf{
					Path:   cfg.Sinks.File.Path,
					Format: format,
					Append: cfg.Sinks.File.Append,
				})
				if err != nil {
					return nil, nil, nil, err
				}
				return fs, nil, fs.Close, nil
			},
		},
		{
			Enabled: cfg.Sinks.Trace.Enable,
			Name:    "trace",
			New: func() (sampler.Consumer, []sampler.SinkOption, func() error, error) {
				ts, err := sampler.NewTraceSink(sampler.TraceSinkConf{
					Dir:  cfg.Sinks.Trace.Dir,
					Name: cfg.Sinks.Trace.Name,
				})
				if err != nil {
					return nil, nil, nil, err
				}
				// 事件流只记录 id/value，名字通过 Source.XStatsName 侧查
				return ts, []sampler.SinkOption{sampler.WithoutNames()}, ts.Close, nil
			},
		},
		{
			Enabled: cfg.Sinks.Prometheus.Enable,
			Name:    "prometheus",
			New: func() (sampler.Consumer, []sampler.SinkOption, func() error, error) {
				ps, err := sampler.NewPrometheusSink(promReg)
				return ps, nil, nil, err
			},
		},
	}
	for _, m := range sinks {
		if !m.Enabled {
			continue
		}
		consumer, opts, closer, err := m.New()
		if err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("build sink %s: %w", m.Name, err)
		}
		if closer != nil {
			app.closers = append(app.closers, closer)
		}
		if _, err := session.RegisterSink(m.Name, consumer, opts...); err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("register sink %s: %w", m.Name, err)
		}
		logger.Info("sink registered", zap.String("sink", m.Name))
	}

	return app, nil
}

// Close 停止会话并释放所有数据汇资源，返回最后一个错误
func (a *App) Close() error {
	if a.Session != nil && a.Session.IsActive() {
		if err := a.Session.Stop(); err != nil {
			logger.Warn("session stop failed", zap.Error(err))
		}
	}
	if a.Session != nil {
		a.Session.Free()
		a.Session = nil
	}
	return a.cleanup()
}

func (a *App) cleanup() error {
	var lastErr error
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			logger.Error("sink close failed", zap.Error(err))
			lastErr = err
		}
	}
	a.closers = nil
	return lastErr
}
