package upgrader

import (
	"time"

	"github.com/dep2p/go-p2pcore/config"
)

// Config 升级器配置
type Config struct {
	// HandshakeTimeout 整个升级流程的超时（默认 30s）
	HandshakeTimeout time.Duration

	// MuxerPreference 多路复用器偏好顺序（协议名称），未列出的排在最后
	MuxerPreference []string
}

// NewConfig 创建默认配置
func NewConfig() Config {
	return Config{
		HandshakeTimeout: 30 * time.Second,
	}
}

// ConfigFromUnified 从统一配置创建升级器配置
func ConfigFromUnified(cfg *config.Config) Config {
	c := NewConfig()
	if cfg == nil {
		return c
	}
	if d := cfg.Transport.HandshakeTimeout.Duration(); d > 0 {
		c.HandshakeTimeout = d
	}
	c.MuxerPreference = append([]string(nil), cfg.Muxer.Protocols...)
	return c
}
