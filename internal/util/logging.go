package util

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel 未知级别按 info 处理
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitLogger 设置全局 JSON 日志，同时写入 stdout 和 extra（可为 nil）
func InitLogger(level string, extra io.Writer) *slog.Logger {
	var w io.Writer = os.Stdout
	if extra != nil {
		w = io.MultiWriter(os.Stdout, extra)
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: true,
	}))
	slog.SetDefault(logger)
	return logger
}
