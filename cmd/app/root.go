package app

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stats-sampler/pkg/bootstrap"
	"github.com/stats-sampler/pkg/config"
	"github.com/stats-sampler/pkg/logger"
	"github.com/stats-sampler/pkg/sampler"
	"github.com/stats-sampler/pkg/server"
	"github.com/stats-sampler/pkg/signal"
	"github.com/stats-sampler/pkg/util"
)

var (
	cfgFile   string
	GlobalCfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "stats-sampler",
	Short: "Pluggable statistics sampling engine (CPU/memory/network sources, multiple sinks)",
	RunE: func(cmd *cobra.Command, args []string) error {
		var err error
		GlobalCfg, err = config.LoadConfigWithCli(cmd)
		if err != nil {
			// 统一输出错误到 stderr，不返回给 cobra
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			fmt.Fprintf(os.Stderr, "请检查配置文件路径或使用 -c 参数指定\n")
			os.Exit(1)
		}
		if err := runSampler(GlobalCfg); err != nil {
			fmt.Fprintf(os.Stderr, "服务启动失败: %v\n", err)
			os.Exit(1)
		}
		return nil
	},
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "configs/config.yaml", "配置文件路径")
	// 注册分组 flag
	initServerFlags(rootCmd)
	initSamplerFlags(rootCmd)
	initSinkFlags(rootCmd)
	initLogFlags(rootCmd)
}

func runSampler(cfg *config.Config) error {
	util.PrintBanner("stats-sampler", "blue")

	if err := logger.Init(logger.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Path:      cfg.Log.Path,
		MaxAge:    cfg.Log.MaxAge,
		MaxBackup: cfg.Log.MaxBackup,
		Compress:  cfg.Log.Compress,
	}); err != nil {
		return fmt.Errorf("日志初始化失败: %w", err)
	}
	defer logger.Sync()

	const enableProcess = true
	promReg := bootstrap.InitPromRegistry(enableProcess)

	registry := sampler.NewRegistry()
	app, err := bootstrap.Build(registry, promReg, cfg)
	if err != nil {
		return fmt.Errorf("装配采样会话失败: %w", err)
	}

	httpServer := server.NewHTTPServer(cfg.Server, promReg, app.Ring)
	if err := httpServer.Start(); err != nil {
		_ = app.Close()
		return fmt.Errorf("start HTTP server failed: %w", err)
	}

	if err := app.Session.Start(); err != nil {
		_ = app.Close()
		return fmt.Errorf("start session failed: %w", err)
	}
	logger.Info("sampling session started",
		zap.String("session", app.Session.Name()),
		zap.Duration("interval", cfg.Sampler.Interval),
		zap.Duration("duration", cfg.Sampler.Duration))

	// 轮询循环：按固定节奏驱动到期会话采样
	stopPoll := make(chan struct{})
	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		ticker := time.NewTicker(cfg.Sampler.PollTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				registry.Poll()
			case <-stopPoll:
				return
			}
		}
	}()

	signal.WaitForShutdown(func() error {
		close(stopPoll)
		<-pollDone

		if err := httpServer.Shutdown(); err != nil {
			return fmt.Errorf("shutdown HTTP server failed: %w", err)
		}
		if err := app.Close(); err != nil {
			return fmt.Errorf("close sampling app failed: %w", err)
		}
		registry.Close()

		logger.Info("all services shutdown successfully")
		return nil
	})
	return nil
}
