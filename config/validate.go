package config

import (
	"errors"
	"fmt"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/dep2p/go-p2pcore/pkg/types"
)

// ValidateAll 验证整个配置的有效性
//
// 与 Config.Validate 相同，额外处理 nil。
func ValidateAll(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	return c.Validate()
}

// ValidateAndFix 验证配置并尝试自动修复常见问题
//
// 可修复的问题：
//   - 读块大于读缓冲 -> 读块取读缓冲大小
//   - 协议偏好为空 -> 使用默认偏好
//   - 身份交换间隔非正 -> 使用默认值
func ValidateAndFix(c *Config) (*Config, error) {
	if c == nil {
		return NewConfig(), nil
	}

	if c.Muxer.ReadChunkSize > c.Muxer.ReadBufferSize {
		c.Muxer.ReadChunkSize = c.Muxer.ReadBufferSize
	}
	if len(c.Muxer.Protocols) == 0 {
		c.Muxer.Protocols = DefaultMuxerConfig().Protocols
	}

	def := DefaultIdentifyConfig()
	if c.Identify.Interval <= 0 {
		c.Identify.Interval = def.Interval
	}
	if c.Identify.ErrorInterval <= 0 {
		c.Identify.ErrorInterval = def.ErrorInterval
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed after fixes: %w", err)
	}
	return c, nil
}

// MustValidate 验证配置，如果失败则 panic
//
// 仅用于初始化阶段或测试代码。
func MustValidate(c *Config) {
	if err := c.Validate(); err != nil {
		panic(fmt.Sprintf("config validation failed: %v", err))
	}
}

// Validate 验证已知节点
func (k KnownPeer) Validate() error {
	if _, err := types.ParsePeerID(k.PeerID); err != nil {
		return fmt.Errorf("known peer: %w", err)
	}
	if len(k.Addrs) == 0 {
		return fmt.Errorf("known peer %s: no addresses", k.PeerID)
	}
	for _, s := range k.Addrs {
		if _, err := ma.NewMultiaddr(s); err != nil {
			return fmt.Errorf("known peer %s: invalid address %q: %w", k.PeerID, s, err)
		}
	}
	return nil
}
