// Package server 提供HTTP服务：暴露Prometheus指标、健康检查和最近采样快照端点，
// 支持优雅关闭，用于观察采样引擎的运行状态。
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/stats-sampler/pkg/config"
	"github.com/stats-sampler/pkg/logger"
	"github.com/stats-sampler/pkg/sampler"
)

// httpShutdownTimeout 优雅关闭超时时间，避免关闭流程无限阻塞
const httpShutdownTimeout = 5 * time.Second

// HTTPServer HTTP服务实例
// 端点：
//
//	/metrics 暴露注入的Prometheus注册器中的指标
//	/health  健康检查，直接返回200 OK
//	/stats   返回环形缓冲区中最近的采样快照（JSON）
type HTTPServer struct {
	addr     string
	server   *http.Server
	registry *prometheus.Registry
	ring     *sampler.RingBufferSink // 可为nil，此时/stats返回空数组
}

// statusWriter 包装http.ResponseWriter以捕获响应状态码
type statusWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader 记录状态码后再写入
func (w *statusWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// NewHTTPServer 创建HTTP服务实例（依赖注入模式）
// registry 为自定义Prometheus注册器；ring 为采样环形缓冲区，可为nil。
func NewHTTPServer(cfg config.ServerConfig, registry *prometheus.Registry, ring *sampler.RingBufferSink) *HTTPServer {
	mux := http.NewServeMux()

	// logRequest 请求日志：方法、URL、客户端地址、状态码、耗时
	logRequest := func(r *http.Request, msg string, statusCode int, start time.Time) {
		logger.Info(
			msg,
			zap.String("method", r.Method),
			zap.String("url", r.URL.String()),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", statusCode),
			zap.Duration("duration", time.Since(start)),
		)
	}

	mux.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: 200}

		promhttp.HandlerFor(registry, promhttp.HandlerOpts{
			ErrorLog: zap.NewStdLog(logger.GetLogger()),
		}).ServeHTTP(ww, r)

		logRequest(r, "metrics request received", ww.status, start)
	}))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: 200}

		ww.WriteHeader(http.StatusOK)
		_, _ = ww.Write([]byte("OK"))

		logRequest(r, "health check received", ww.status, start)
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: 200}

		entries := []sampler.RingEntry{}
		if ring != nil {
			entries = make([]sampler.RingEntry, ring.Count())
			entries = entries[:ring.Read(entries)]
		}
		body, err := sonic.ConfigStd.Marshal(entries)
		if err != nil {
			ww.WriteHeader(http.StatusInternalServerError)
			logRequest(r, "stats snapshot encode failed", ww.status, start)
			return
		}
		ww.Header().Set("Content-Type", "application/json")
		_, _ = ww.Write(body)

		logRequest(r, "stats snapshot served", ww.status, start)
	})

	return &HTTPServer{
		addr:     cfg.Addr,
		registry: registry,
		ring:     ring,
		server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      mux,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Start 启动HTTP服务（非阻塞，监听错误在子goroutine中记录）
func (s *HTTPServer) Start() error {
	logger.Info(
		"starting HTTP server",
		zap.String("listen_addr", s.addr),
		zap.Duration("read_timeout", s.server.ReadTimeout),
		zap.Duration("write_timeout", s.server.WriteTimeout),
		zap.Duration("idle_timeout", s.server.IdleTimeout),
	)

	go func() {
		if err := s.server.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal(
					"HTTP server failed to listen",
					zap.Error(err),
					zap.String("listen_addr", s.addr),
				)
			} else {
				logger.Info(
					"HTTP server stopped listening",
					zap.String("listen_addr", s.addr),
				)
			}
		}
	}()
	return nil
}

// Shutdown 优雅关闭HTTP服务：停止接收新请求，等待现有请求完成
// 超时错误被视为关闭完成。
func (s *HTTPServer) Shutdown() error {
	logger.Info("starting graceful shutdown of HTTP server", zap.String("listen_addr", s.addr))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
			return nil
		}
		logger.Error("HTTP server shutdown failed", zap.Error(err), zap.String("listen_addr", s.addr))
		return err
	}
	logger.Info("HTTP server shutdown successfully", zap.String("listen_addr", s.addr))
	return nil
}
