package config

import (
	"errors"
	"time"
)

// MuxerConfig 多路复用配置
//
// 缓冲参数作用于轮询适配层，窗口与帧大小分别作用于 yamux 与 smux 引擎。
type MuxerConfig struct {
	// Protocols 多路复用协议偏好，靠前的优先
	// 可选值: "/yamux/1.0.0", "/smux/1.0.0"
	Protocols []string `json:"protocols"`

	// MaxPendingInbound 未被认领的入站子流上限
	MaxPendingInbound int `json:"max_pending_inbound"`

	// ReadBufferSize 每个子流读缓冲上限
	ReadBufferSize int `json:"read_buffer_size"`

	// WriteBufferSize 每个子流写缓冲上限
	WriteBufferSize int `json:"write_buffer_size"`

	// ReadChunkSize 单次从引擎读取的大小
	ReadChunkSize int `json:"read_chunk_size"`

	// MaxStreamWindowSize yamux 流窗口上限
	MaxStreamWindowSize uint32 `json:"max_stream_window_size"`

	// MaxFrameSize smux 最大帧
	MaxFrameSize int `json:"max_frame_size"`

	// KeepAliveInterval 会话心跳间隔，0 表示禁用
	KeepAliveInterval Duration `json:"keep_alive_interval"`
}

// DefaultMuxerConfig 返回默认多路复用配置
func DefaultMuxerConfig() MuxerConfig {
	return MuxerConfig{
		Protocols:           []string{"/yamux/1.0.0", "/smux/1.0.0"},
		MaxPendingInbound:   64,
		ReadBufferSize:      256 * 1024,
		WriteBufferSize:     256 * 1024,
		ReadChunkSize:       16 * 1024,
		MaxStreamWindowSize: 16 * 1024 * 1024,
		MaxFrameSize:        32 * 1024,
		KeepAliveInterval:   Duration(30 * time.Second),
	}
}

// Validate 验证多路复用配置
func (c MuxerConfig) Validate() error {
	if len(c.Protocols) == 0 {
		return errors.New("at least one muxer protocol must be configured")
	}
	seen := make(map[string]struct{}, len(c.Protocols))
	for _, p := range c.Protocols {
		if p == "" {
			return errors.New("muxer protocol must not be empty")
		}
		if _, dup := seen[p]; dup {
			return errors.New("duplicate muxer protocol: " + p)
		}
		seen[p] = struct{}{}
	}
	if c.MaxPendingInbound <= 0 {
		return errors.New("max pending inbound must be positive")
	}
	if c.ReadBufferSize <= 0 || c.WriteBufferSize <= 0 {
		return errors.New("muxer buffer sizes must be positive")
	}
	if c.ReadChunkSize <= 0 || c.ReadChunkSize > c.ReadBufferSize {
		return errors.New("read chunk size must be in (0, read buffer size]")
	}
	if c.MaxFrameSize < 0 || c.MaxFrameSize > 65535 {
		return errors.New("smux max frame size must be in [0, 65535]")
	}
	if c.KeepAliveInterval < 0 {
		return errors.New("keep alive interval must not be negative")
	}
	return nil
}

// WithProtocols 设置协议偏好
func (c MuxerConfig) WithProtocols(protocols ...string) MuxerConfig {
	c.Protocols = append([]string(nil), protocols...)
	return c
}
