package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config 日志配置（独立定义，避免与 pkg/config 循环依赖）
type Config struct {
	Level     string // debug/info/warn/error
	Format    string // json/console（文件输出恒为 json）
	Path      string // 日志目录
	MaxAge    int    // 最大保存天数
	MaxBackup int    // 最大备份数
	Compress  bool
}

var (
	baseLogger *zap.Logger
	initOnce   sync.Once
	mu         sync.RWMutex
)

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "dbg", "debug":
		return zapcore.DebugLevel
	case "war", "warn":
		return zapcore.WarnLevel
	case "err", "error":
		return zapcore.ErrorLevel
	case "pan", "panic":
		return zapcore.PanicLevel
	case "fat", "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Init 初始化全局日志器（进程内只生效一次）
// 控制台彩色输出 + rotatelogs 滚动 JSON 文件双写。
func Init(cfg Config) error {
	var err error
	initOnce.Do(func() {
		level := parseLevel(cfg.Level)

		if err = os.MkdirAll(cfg.Path, 0755); err != nil {
			return
		}

		maxAge := cfg.MaxAge
		if maxAge <= 0 {
			maxAge = 7
		}
		writer, wErr := rotatelogs.New(
			filepath.Join(cfg.Path, "sampler-%Y%m%d.log"),
			rotatelogs.WithMaxAge(time.Duration(maxAge)*24*time.Hour),
			rotatelogs.WithRotationTime(24*time.Hour),
			rotatelogs.WithRotationSize(100*1024*1024),
		)
		if wErr != nil {
			err = wErr
			return
		}

		// 控制台彩色时间
		consoleTime := func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(fmt.Sprintf("\033[34m%s\033[0m", t.Format("2006-01-02 15:04:05.000 -07:00")))
		}
		// JSON 日志纯文本时间
		jsonTime := func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.Format("2006-01-02 15:04:05.000 -07:00"))
		}

		coloredLevel := func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			var s string
			switch l {
			case zapcore.DebugLevel:
				s = "\033[36mDEBUG\033[0m"
			case zapcore.InfoLevel:
				s = "\033[32mINFO \033[0m"
			case zapcore.WarnLevel:
				s = "\033[33mWARN \033[0m"
			case zapcore.ErrorLevel:
				s = "\033[31mERROR\033[0m"
			case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
				s = "\033[35m" + strings.ToUpper(l.String()) + "\033[0m"
			default:
				s = "UNK  "
			}
			enc.AppendString(s)
		}

		consoleCfg := zap.NewDevelopmentEncoderConfig()
		consoleCfg.ConsoleSeparator = " "
		consoleCfg.EncodeLevel = coloredLevel
		consoleCfg.EncodeTime = consoleTime
		// Caller 两级路径
		consoleCfg.EncodeCaller = func(c zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
			rel := filepath.Join(filepath.Base(filepath.Dir(c.File)), filepath.Base(c.File))
			enc.AppendString(fmt.Sprintf("%s:%d", rel, c.Line))
		}

		jsonCfg := zap.NewProductionEncoderConfig()
		jsonCfg.TimeKey = "timestamp"
		jsonCfg.EncodeTime = jsonTime
		jsonCfg.EncodeLevel = zapcore.LowercaseLevelEncoder

		core := zapcore.NewTee(
			zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.AddSync(os.Stdout), level),
			zapcore.NewCore(zapcore.NewJSONEncoder(jsonCfg), zapcore.AddSync(writer), level),
		)

		mu.Lock()
		baseLogger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))
		mu.Unlock()
	})
	return err
}

// get 未 Init 时退回 nop，库代码在任何环境下都能安全打日志
func get() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if baseLogger == nil {
		return zap.NewNop()
	}
	return baseLogger
}

func Debug(msg string, fields ...zap.Field) { get().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { get().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { get().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { get().Error(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { get().Fatal(msg, fields...) }

// Sync 刷盘（进程退出前调用）
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if baseLogger == nil {
		return nil
	}
	return baseLogger.Sync()
}

// GetLogger 返回全局 zap 实例（注入给需要 *zap.Logger 的组件）
func GetLogger() *zap.Logger {
	return get()
}
