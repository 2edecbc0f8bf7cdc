// Package log 提供 p2pcore 统一日志接口
//
// 基于 log/slog 封装。各组件通过 Logger("core/xxx") 获取带组件标签的
// LazyLogger，每次调用都使用当前的 slog.Default()，
// 因此 cmd 层在启动后重新配置输出仍然对所有组件生效。
package log

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// 日志级别常量
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format 输出格式
type Format string

const (
	// FormatText key=value 文本
	FormatText Format = "text"
	// FormatJSON 每行一个 JSON 对象
	FormatJSON Format = "json"
)

// ParseLevel 解析级别字符串（debug/info/warn/error，不区分大小写）
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("log: unknown level %q", s)
	}
}

// Setup 重新创建默认 logger
func Setup(w io.Writer, level slog.Level, format Format) {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if format == FormatJSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
}

// ============================================================================
//                              LazyLogger
// ============================================================================

// LazyLogger 懒加载 logger
//
// 使用方式：
//
//	var logger = log.Logger("core/muxer")
//	logger.Info("连接已升级", "peer", peer)
type LazyLogger struct {
	component string
}

func (l *LazyLogger) get() *slog.Logger {
	return slog.Default().With("component", l.component)
}

// Debug 输出 Debug 级别日志
func (l *LazyLogger) Debug(msg string, args ...any) { l.get().Debug(msg, args...) }

// Info 输出 Info 级别日志
func (l *LazyLogger) Info(msg string, args ...any) { l.get().Info(msg, args...) }

// Warn 输出 Warn 级别日志
func (l *LazyLogger) Warn(msg string, args ...any) { l.get().Warn(msg, args...) }

// Error 输出 Error 级别日志
func (l *LazyLogger) Error(msg string, args ...any) { l.get().Error(msg, args...) }

// With 添加额外的属性
func (l *LazyLogger) With(args ...any) *slog.Logger {
	return l.get().With(args...)
}

// Logger 返回带组件名的 LazyLogger
func Logger(component string) *LazyLogger {
	return &LazyLogger{component: component}
}
