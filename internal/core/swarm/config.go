package swarm

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-p2pcore/pkg/types"
)

// Config Swarm 配置
type Config struct {
	// DialTimeout 拨号及连接升级超时
	DialTimeout time.Duration

	// SubstreamTimeout 子流打开与协议协商超时
	SubstreamTimeout time.Duration

	// PollInterval 没有唤醒时的兜底轮询间隔
	PollInterval time.Duration

	// MaxPendingUpgrades 同时进行的连接升级上限（入站与出站合计）
	MaxPendingUpgrades int
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		DialTimeout:        10 * time.Second,
		SubstreamTimeout:   30 * time.Second,
		PollInterval:       100 * time.Millisecond,
		MaxPendingUpgrades: 256,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.DialTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.SubstreamTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.PollInterval <= 0 {
		return ErrInvalidConfig
	}
	if c.MaxPendingUpgrades <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// settings New 的可选参数
type settings struct {
	config     *Config
	registerer prometheus.Registerer
	peers      map[types.PeerID][]types.Multiaddr
}

// Option Swarm 选项函数
type Option func(*settings) error

// WithConfig 设置配置
func WithConfig(config *Config) Option {
	return func(s *settings) error {
		if config == nil {
			return ErrInvalidConfig
		}
		if err := config.Validate(); err != nil {
			return err
		}
		s.config = config
		return nil
	}
}

// WithRegisterer 在 reg 上注册 Prometheus 指标
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *settings) error {
		s.registerer = reg
		return nil
	}
}

// WithPeerAddrs 预置节点地址，供 DialPeer 使用
func WithPeerAddrs(peer types.PeerID, addrs ...types.Multiaddr) Option {
	return func(s *settings) error {
		if err := peer.Validate(); err != nil {
			return err
		}
		if len(addrs) == 0 {
			return ErrNoAddresses
		}
		if s.peers == nil {
			s.peers = make(map[types.PeerID][]types.Multiaddr)
		}
		s.peers[peer] = append(s.peers[peer], addrs...)
		return nil
	}
}
