package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var valid = validator.New()

// Config 全局配置结构体（聚合所有核心模块）
type Config struct {
	Server  ServerConfig  `yaml:"server" mapstructure:"server" comment:"HTTP服务配置"`
	Sampler SamplerConfig `yaml:"sampler" mapstructure:"sampler" comment:"采样会话配置"`
	Sinks   SinksConfig   `yaml:"sinks" mapstructure:"sinks" comment:"数据汇配置"`
	Log     ZapLogConfig  `yaml:"log" mapstructure:"log" comment:"日志配置"`
}

// ServerConfig HTTP服务配置（暴露 /metrics 与 /health）
type ServerConfig struct {
	Addr         string        `yaml:"addr" mapstructure:"addr" env:"HTTP_ADDR" validate:"required,hostname_port" comment:"HTTP监听地址（格式：ip:port）"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" env:"HTTP_READ_TIMEOUT" validate:"required,gt=0" comment:"读取超时时间（如30s）"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" env:"HTTP_WRITE_TIMEOUT" validate:"required,gt=0" comment:"写入超时时间（如30s）"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" validate:"required,gt=0" comment:"空闲连接超时时间（如60s）"`
}

// SamplerConfig 采样会话全局配置
// Interval 为 0 表示只手动采样，Duration 为 0 表示不限时长。
type SamplerConfig struct {
	Name     string        `yaml:"name" mapstructure:"name" env:"SAMPLER_NAME" comment:"会话名（为空时自动生成）"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval" env:"SAMPLER_INTERVAL" validate:"gte=0" comment:"采样间隔（0=仅手动）" default:"10s"`
	Duration time.Duration `yaml:"duration" mapstructure:"duration" env:"SAMPLER_DURATION" validate:"gte=0" comment:"会话时长（0=无限）"`
	PollTick time.Duration `yaml:"poll_tick" mapstructure:"poll_tick" env:"SAMPLER_POLL_TICK" validate:"required,gt=0" comment:"轮询节奏（应小于最小采样间隔）" default:"100ms"`
	Filters  []string      `yaml:"filters" mapstructure:"filters" env:"SAMPLER_FILTERS" comment:"统计项名称过滤模式（* 和 ? 通配）"`
	Sources  SourcesConfig `yaml:"sources" mapstructure:"sources" comment:"各数据源开关"`
}

// SourcesConfig 内置数据源开关
type SourcesConfig struct {
	CPU CPUSourceConfig `yaml:"cpu" mapstructure:"cpu" comment:"CPU 统计源"`
	Mem MemSourceConfig `yaml:"mem" mapstructure:"mem" comment:"内存统计源"`
	Net NetSourceConfig `yaml:"net" mapstructure:"net" comment:"网络接口统计源"`
}

type CPUSourceConfig struct {
	Enable bool `yaml:"enable" mapstructure:"enable" env:"SOURCE_CPU_ENABLE" comment:"是否启用CPU源" default:"true"`
	PerCPU bool `yaml:"per_cpu" mapstructure:"per_cpu" env:"SOURCE_CPU_PER_CPU" comment:"是否按核心枚举" default:"false"`
}

type MemSourceConfig struct {
	Enable bool `yaml:"enable" mapstructure:"enable" env:"SOURCE_MEM_ENABLE" comment:"是否启用内存源" default:"true"`
}

type NetSourceConfig struct {
	Enable bool `yaml:"enable" mapstructure:"enable" env:"SOURCE_NET_ENABLE" comment:"是否启用网络源" default:"false"`
}

// SinksConfig 数据汇配置（可同时启用多个）
type SinksConfig struct {
	Console    ConsoleSinkConfig    `yaml:"console" mapstructure:"console" comment:"控制台输出"`
	RingBuffer RingBufferSinkConfig `yaml:"ringbuffer" mapstructure:"ringbuffer" comment:"环形缓冲区"`
	File       FileSinkConfig       `yaml:"file" mapstructure:"file" comment:"格式化文件"`
	Trace      TraceSinkConfig      `yaml:"trace" mapstructure:"trace" comment:"二进制事件流"`
	Prometheus PromSinkConfig       `yaml:"prometheus" mapstructure:"prometheus" comment:"Prometheus 指标"`
}

type ConsoleSinkConfig struct {
	Enable bool `yaml:"enable" mapstructure:"enable" env:"SINK_CONSOLE_ENABLE" default:"true"`
}

type RingBufferSinkConfig struct {
	Enable   bool `yaml:"enable" mapstructure:"enable" env:"SINK_RINGBUFFER_ENABLE" default:"false"`
	Capacity int  `yaml:"capacity" mapstructure:"capacity" env:"SINK_RINGBUFFER_CAPACITY" comment:"固定容量（写满后FIFO淘汰）" default:"1024"`
}

type FileSinkConfig struct {
	Enable bool   `yaml:"enable" mapstructure:"enable" env:"SINK_FILE_ENABLE" default:"false"`
	Path   string `yaml:"path" mapstructure:"path" env:"SINK_FILE_PATH" comment:"输出文件路径"`
	Format string `yaml:"format" mapstructure:"format" env:"SINK_FILE_FORMAT" comment:"输出编码 csv/json/text" default:"csv"`
	Append bool   `yaml:"append" mapstructure:"append" env:"SINK_FILE_APPEND" comment:"追加写（false=截断）" default:"false"`
}

type TraceSinkConfig struct {
	Enable bool   `yaml:"enable" mapstructure:"enable" env:"SINK_TRACE_ENABLE" default:"false"`
	Dir    string `yaml:"dir" mapstructure:"dir" env:"SINK_TRACE_DIR" comment:"trace目录" default:"./trace"`
	Name   string `yaml:"name" mapstructure:"name" env:"SINK_TRACE_NAME" comment:"事件流文件名前缀" default:"xstats"`
}

type PromSinkConfig struct {
	Enable bool `yaml:"enable" mapstructure:"enable" env:"SINK_PROMETHEUS_ENABLE" default:"true"`
}

// ZapLogConfig 日志配置
type ZapLogConfig struct {
	Level     string `yaml:"level" mapstructure:"level" env:"LOG_LEVEL" validate:"required,oneof=debug info warn error dpanic panic fatal" comment:"日志级别" default:"info"`
	Format    string `yaml:"format" mapstructure:"format" env:"LOG_FORMAT" validate:"required,oneof=json console" comment:"日志格式（json/console）" default:"json"`
	Path      string `yaml:"path" mapstructure:"path" env:"LOG_PATH" validate:"required" comment:"日志存储路径" default:"./logs"`
	MaxSize   int    `yaml:"max_size" mapstructure:"max_size" env:"LOG_MAX_SIZE" validate:"required,gt=0" comment:"单个日志文件最大大小（MB）" default:"100"`
	MaxBackup int    `yaml:"max_backup" mapstructure:"max_backup" env:"LOG_MAX_BACKUP" validate:"gte=0" comment:"日志文件最大备份数" default:"30"`
	MaxAge    int    `yaml:"max_age" mapstructure:"max_age" env:"LOG_MAX_AGE" validate:"gte=0" comment:"日志文件最大保存天数" default:"7"`
	Compress  bool   `yaml:"compress" mapstructure:"compress" env:"LOG_COMPRESS" comment:"是否压缩过期日志" default:"true"`
}

// NewDefaultConfig 创建默认配置（所有字段兜底，避免空指针/非法值）
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         "0.0.0.0:8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Sampler: SamplerConfig{
			Name:     "",
			Interval: 10 * time.Second,
			Duration: 0,
			PollTick: 100 * time.Millisecond,
			Filters:  nil,
			Sources: SourcesConfig{
				CPU: CPUSourceConfig{Enable: true, PerCPU: false},
				Mem: MemSourceConfig{Enable: true},
				Net: NetSourceConfig{Enable: false},
			},
		},
		Sinks: SinksConfig{
			Console:    ConsoleSinkConfig{Enable: true},
			RingBuffer: RingBufferSinkConfig{Enable: false, Capacity: 1024},
			File:       FileSinkConfig{Enable: false, Path: "./xstats.csv", Format: "csv", Append: false},
			Trace:      TraceSinkConfig{Enable: false, Dir: "./trace", Name: "xstats"},
			Prometheus: PromSinkConfig{Enable: true},
		},
		Log: ZapLogConfig{
			Level:     "info",
			Format:    "json",
			Path:      "./logs",
			MaxSize:   100,
			MaxBackup: 30,
			MaxAge:    7,
			Compress:  true,
		},
	}
}

// LoadConfigWithCli 合并 Flags + YAML + ENV（支持 time.Duration）
func LoadConfigWithCli(cmd *cobra.Command) (*Config, error) {
	cfg := NewDefaultConfig()
	v := viper.New()

	// 1. 绑定 Cobra Flags → Viper
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	// 2. 解析配置文件 (--config)
	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	// 3. 绑定环境变量 ENV -> Viper （SAMPLER_INTERVAL -> sampler.interval）
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("_", "."))

	// 4. 解码反序列化到结构体（支持 time.Duration）
	decoderConfig := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	}

	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// 5. 校验配置
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate 配置校验
func (c *Config) Validate() error {
	if err := valid.Struct(c); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Sampler.Validate(); err != nil {
		return err
	}
	if err := c.Sinks.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return nil
}
