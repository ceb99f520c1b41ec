package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func initSinkFlags(root *cobra.Command) {
	f := root.PersistentFlags()

	f.Bool("sinks.console.enable", defaultCfg.Sinks.Console.Enable, "启用控制台输出")

	f.Bool("sinks.ringbuffer.enable", defaultCfg.Sinks.RingBuffer.Enable, "启用环形缓冲区")
	f.Int("sinks.ringbuffer.capacity", defaultCfg.Sinks.RingBuffer.Capacity, "环形缓冲区容量（写满后FIFO淘汰）")

	f.Bool("sinks.file.enable", defaultCfg.Sinks.File.Enable, "启用文件输出")
	f.String("sinks.file.path", defaultCfg.Sinks.File.Path, "输出文件路径")
	f.String("sinks.file.format", defaultCfg.Sinks.File.Format, "输出编码 [csv,json,text]")
	f.Bool("sinks.file.append", defaultCfg.Sinks.File.Append, "追加写（false=截断）")

	f.Bool("sinks.trace.enable", defaultCfg.Sinks.Trace.Enable, "启用二进制事件流输出")
	f.String("sinks.trace.dir", defaultCfg.Sinks.Trace.Dir, "trace 输出目录")
	f.String("sinks.trace.name", defaultCfg.Sinks.Trace.Name, "事件流文件名前缀")

	f.Bool("sinks.prometheus.enable", defaultCfg.Sinks.Prometheus.Enable, "启用 Prometheus 指标导出")

	err := viper.BindPFlags(f)
	if err != nil {
		return
	}
}
