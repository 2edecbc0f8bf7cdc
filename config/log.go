package config

import (
	"fmt"
	"strings"
)

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别: debug, info, warn, error
	Level string `json:"level"`

	// Format 输出格式: text, json
	Format string `json:"format"`

	// File 日志文件路径，为空时输出到 stderr
	File string `json:"file,omitempty"`
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// Validate 验证日志配置
func (c LogConfig) Validate() error {
	switch strings.ToLower(c.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Level)
	}
	switch c.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s", c.Format)
	}
	return nil
}
