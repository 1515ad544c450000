// Package logging 基于 zap 构建结构化日志。
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config 日志配置
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	OutputPath string // stdout, stderr 或文件路径
}

// New 按配置构建 logger。未知级别返回错误，空级别按 info 处理。
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	var zc zap.Config
	switch cfg.Format {
	case "console":
		zc = zap.NewDevelopmentConfig()
	case "", "json":
		zc = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	zc.Level = zap.NewAtomicLevelAt(level)
	// CLI 的用户可见输出走 stdout，日志默认写 stderr
	zc.OutputPaths = []string{"stderr"}
	if cfg.OutputPath != "" {
		zc.OutputPaths = []string{cfg.OutputPath}
	}

	return zc.Build(zap.AddStacktrace(zapcore.ErrorLevel))
}

// 常用字段
func String(key, val string) zap.Field { return zap.String(key, val) }

func Int64(key string, val int64) zap.Field { return zap.Int64(key, val) }

func Err(err error) zap.Field { return zap.Error(err) }

// OrNop 把 nil logger 替换为 no-op logger
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
