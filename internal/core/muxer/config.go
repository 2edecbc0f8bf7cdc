package muxer

import (
	"fmt"

	"github.com/dep2p/go-p2pcore/config"
)

// Config Multiplexer 配置
type Config struct {
	// MaxPendingInbound 未被 PollInbound 认领的入站子流上限，超出时新流被重置
	MaxPendingInbound int

	// ReadBufferSize 每个子流读缓冲上限，满时读泵暂停
	ReadBufferSize int

	// WriteBufferSize 每个子流写缓冲上限，满时 WriteSubstream 返回 Pending
	WriteBufferSize int

	// ReadChunkSize 读泵单次读取大小
	ReadChunkSize int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		MaxPendingInbound: 64,
		ReadBufferSize:    256 * 1024,
		WriteBufferSize:   256 * 1024,
		ReadChunkSize:     16 * 1024,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.MaxPendingInbound <= 0 {
		return fmt.Errorf("%w: max pending inbound must be positive", ErrInvalidConfig)
	}
	if c.ReadBufferSize <= 0 || c.WriteBufferSize <= 0 {
		return fmt.Errorf("%w: buffer sizes must be positive", ErrInvalidConfig)
	}
	if c.ReadChunkSize <= 0 || c.ReadChunkSize > c.ReadBufferSize {
		return fmt.Errorf("%w: read chunk must be in (0, read buffer]", ErrInvalidConfig)
	}
	return nil
}

// ConfigFromUnified 从统一配置创建 Multiplexer 配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return Config{
		MaxPendingInbound: cfg.Muxer.MaxPendingInbound,
		ReadBufferSize:    cfg.Muxer.ReadBufferSize,
		WriteBufferSize:   cfg.Muxer.WriteBufferSize,
		ReadChunkSize:     cfg.Muxer.ReadChunkSize,
	}
}
