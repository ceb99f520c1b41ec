// Package signal 监听系统退出信号并驱动优雅关闭流程
package signal

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/stats-sampler/pkg/logger"
)

// shutdownTimeout 关闭逻辑的最长等待时间，超时后放弃等待直接退出
const shutdownTimeout = 5 * time.Second

// WaitForShutdown 阻塞等待SIGINT/SIGTERM，收到后执行shutdownFunc
// shutdownFunc 在独立goroutine里运行，超过shutdownTimeout视为失败。
func WaitForShutdown(shutdownFunc func() error) {
	if shutdownFunc == nil {
		logger.Error("shutdownFunc is nil, cannot execute shutdown")
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("service is running, waiting for shutdown signal (SIGINT/SIGTERM)...")

	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- shutdownFunc()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
		} else {
			logger.Info("graceful shutdown completed successfully")
		}
	case <-ctx.Done():
		logger.Error("graceful shutdown timed out", zap.Error(ctx.Err()))
	}

	_ = logger.Sync()
	logger.Info("shutdown workflow finished, program exiting")
}
