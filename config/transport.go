package config

import (
	"errors"
	"fmt"
	"time"

	ma "github.com/multiformats/go-multiaddr"
)

// TransportConfig 传输层配置
type TransportConfig struct {
	// ListenAddrs 监听地址（multiaddr）
	ListenAddrs []string `json:"listen_addrs"`

	// DialTimeout 拨号超时，只覆盖建立 TCP 连接
	DialTimeout Duration `json:"dial_timeout"`

	// HandshakeTimeout 安全握手加多路复用协商的总超时
	HandshakeTimeout Duration `json:"handshake_timeout"`

	// TCP 配置
	TCP TCPConfig `json:"tcp"`
}

// TCPConfig TCP 传输配置
type TCPConfig struct {
	// KeepAlivePeriod TCP KeepAlive 周期，0 表示使用系统默认
	KeepAlivePeriod Duration `json:"keep_alive_period"`

	// AcceptBacklog 已接受但尚未被轮询取走的连接上限
	AcceptBacklog int `json:"accept_backlog"`
}

// DefaultTransportConfig 返回默认传输配置
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		ListenAddrs:      []string{"/ip4/0.0.0.0/tcp/4001"},
		DialTimeout:      Duration(10 * time.Second),
		HandshakeTimeout: Duration(30 * time.Second),
		TCP: TCPConfig{
			KeepAlivePeriod: Duration(15 * time.Second),
			AcceptBacklog:   128,
		},
	}
}

// Validate 验证传输配置
func (c TransportConfig) Validate() error {
	for _, s := range c.ListenAddrs {
		if _, err := ma.NewMultiaddr(s); err != nil {
			return fmt.Errorf("invalid listen address %q: %w", s, err)
		}
	}
	if c.DialTimeout <= 0 {
		return errors.New("dial timeout must be positive")
	}
	if c.HandshakeTimeout <= 0 {
		return errors.New("handshake timeout must be positive")
	}
	if c.TCP.KeepAlivePeriod < 0 {
		return errors.New("TCP keep alive period must not be negative")
	}
	if c.TCP.AcceptBacklog <= 0 {
		return errors.New("TCP accept backlog must be positive")
	}
	return nil
}

// WithListenAddrs 设置监听地址
func (c TransportConfig) WithListenAddrs(addrs ...string) TransportConfig {
	c.ListenAddrs = append([]string(nil), addrs...)
	return c
}

// WithDialTimeout 设置拨号超时
func (c TransportConfig) WithDialTimeout(timeout time.Duration) TransportConfig {
	c.DialTimeout = Duration(timeout)
	return c
}
