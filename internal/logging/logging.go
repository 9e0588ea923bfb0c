package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"license-token-service/internal/config"

	"github.com/rs/zerolog"
)

// New 根据配置创建 zerolog 日志器，支持 json 与 console 两种格式
func New(cfg config.LogConfig) zerolog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

func NewWithWriter(cfg config.LogConfig, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	out := w
	if strings.ToLower(cfg.Format) == "console" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	if cfg.Sampling {
		// 每 100 条保留 1 条
		logger = logger.Sample(&zerolog.BasicSampler{N: 100})
	}
	return logger
}

// Redact 隐藏邮箱等个人信息，只保留首尾少量字符
func Redact(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:3] + "..." + s[len(s)-4:]
}
