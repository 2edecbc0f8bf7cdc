package config

import (
	"errors"
)

// MetricsConfig Prometheus 指标导出配置
type MetricsConfig struct {
	// Enable 启用 HTTP 指标导出
	Enable bool `json:"enable"`

	// Addr 导出服务监听地址
	// 默认 "127.0.0.1:9464"
	Addr string `json:"addr"`
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enable: false,
		Addr:   "127.0.0.1:9464",
	}
}

// Validate 验证指标配置
func (c MetricsConfig) Validate() error {
	if c.Enable && c.Addr == "" {
		return errors.New("metrics address must be set when enabled")
	}
	return nil
}
