package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate HTTP服务配置校验
func (h *ServerConfig) Validate() error {
	if err := valid.Struct(h); err != nil {
		return err
	}
	if h.Addr == "" {
		return errors.New("server.addr cannot be empty")
	}
	// 	用net包解析地址，验证格式合法性
	if _, err := net.ResolveTCPAddr("tcp", h.Addr); err != nil {
		return fmt.Errorf("server.addr format invalid (expected: :port or ip:port), got %s: %w", h.Addr, err)
	}
	return nil
}

// Validate 采样配置校验
func (s *SamplerConfig) Validate() error {
	if err := valid.Struct(s); err != nil {
		return err
	}
	// 轮询节奏必须比采样间隔细，否则间隔永远追不上
	if s.Interval > 0 && s.PollTick >= s.Interval {
		return fmt.Errorf("sampler.poll_tick (%s) must be finer than sampler.interval (%s)",
			s.PollTick, s.Interval)
	}
	// 时长不能小于间隔（两者都非零时）
	if s.Duration > 0 && s.Interval > 0 && s.Duration < s.Interval {
		return fmt.Errorf("sampler.duration (%s) cannot be lesser than sampler.interval (%s)",
			s.Duration, s.Interval)
	}
	// 	校验至少启用一个数据源，否则没有意义
	if !s.Sources.CPU.Enable && !s.Sources.Mem.Enable && !s.Sources.Net.Enable {
		return fmt.Errorf("at least one source must be enabled (cpu/mem/net)")
	}
	// 过滤模式不能是空串
	for _, p := range s.Filters {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("sampler.filters cannot contain empty pattern")
		}
	}
	return nil
}

// Validate 数据汇配置校验
func (sk *SinksConfig) Validate() error {
	if err := valid.Struct(sk); err != nil {
		return err
	}
	// 	校验至少启用一个 sink，否则采样结果无处可去
	if !sk.Console.Enable && !sk.RingBuffer.Enable && !sk.File.Enable &&
		!sk.Trace.Enable && !sk.Prometheus.Enable {
		return fmt.Errorf("at least one sink must be enabled (console/ringbuffer/file/trace/prometheus)")
	}
	if sk.RingBuffer.Enable && sk.RingBuffer.Capacity <= 0 {
		return fmt.Errorf("sinks.ringbuffer.capacity must be positive, got %d", sk.RingBuffer.Capacity)
	}
	if sk.File.Enable {
		if strings.TrimSpace(sk.File.Path) == "" {
			return fmt.Errorf("sinks.file.path cannot be empty")
		}
		switch strings.ToLower(sk.File.Format) {
		case "csv", "json", "text":
		default:
			return fmt.Errorf("sinks.file.format must be one of csv/json/text, got %s", sk.File.Format)
		}
	}
	if sk.Trace.Enable {
		if strings.TrimSpace(sk.Trace.Dir) == "" || strings.TrimSpace(sk.Trace.Name) == "" {
			return fmt.Errorf("sinks.trace.dir and sinks.trace.name cannot be empty")
		}
		if strings.ContainsAny(sk.Trace.Name, "/\\") {
			return fmt.Errorf("sinks.trace.name %q must not contain path separators", sk.Trace.Name)
		}
	}
	return nil
}
