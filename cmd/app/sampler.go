package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func initSamplerFlags(root *cobra.Command) {
	f := root.PersistentFlags()

	f.String("sampler.name", defaultCfg.Sampler.Name, "会话名（为空时自动生成）")
	f.Duration("sampler.interval", defaultCfg.Sampler.Interval, "采样间隔（0=仅手动采样）")
	f.Duration("sampler.duration", defaultCfg.Sampler.Duration, "会话时长（0=无限）")
	f.Duration("sampler.poll_tick", defaultCfg.Sampler.PollTick, "轮询节奏（应小于采样间隔）")
	f.StringSlice("sampler.filters", defaultCfg.Sampler.Filters, "统计项名称过滤模式（支持 * 和 ?）")

	f.Bool("sampler.sources.cpu.enable", defaultCfg.Sampler.Sources.CPU.Enable, "启用 CPU 统计源")
	f.Bool("sampler.sources.cpu.per_cpu", defaultCfg.Sampler.Sources.CPU.PerCPU, "CPU 统计按核心枚举")
	f.Bool("sampler.sources.mem.enable", defaultCfg.Sampler.Sources.Mem.Enable, "启用内存统计源")
	f.Bool("sampler.sources.net.enable", defaultCfg.Sampler.Sources.Net.Enable, "启用网络接口统计源")

	err := viper.BindPFlags(f)
	if err != nil {
		return
	}
}
