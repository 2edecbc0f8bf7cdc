// Package smux 提供基于 xtaci/smux 的多路复用引擎与连接升级
//
// smux 流不支持半关闭：CloseWrite 与 CloseRead 都完整关闭流，
// 对端在读完已发送的数据后看到 EOF。
package smux

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/xtaci/smux"

	"github.com/dep2p/go-p2pcore/internal/core/muxer"
	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
	"github.com/dep2p/go-p2pcore/pkg/lib/log"
)

var logger = log.Logger("core/muxer/smux")

// ID 协议名称
const ID = "/smux/1.0.0"

// Config smux 升级配置
type Config struct {
	// Version smux 协议版本（1 或 2）
	Version int

	// MaxFrameSize 单帧最大负载
	MaxFrameSize int

	// MaxReceiveBuffer 会话接收缓冲
	MaxReceiveBuffer int

	// MaxStreamBuffer 每流缓冲（仅版本 2）
	MaxStreamBuffer int

	// KeepAliveInterval 心跳间隔，0 表示关闭心跳
	KeepAliveInterval time.Duration

	// Muxer 轮询适配层配置
	Muxer muxer.Config
}

var _ muxer.ConnUpgrade = (*Config)(nil)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	d := smux.DefaultConfig()
	return &Config{
		Version:           d.Version,
		MaxFrameSize:      d.MaxFrameSize,
		MaxReceiveBuffer:  d.MaxReceiveBuffer,
		MaxStreamBuffer:   d.MaxStreamBuffer,
		KeepAliveInterval: d.KeepAliveInterval,
		Muxer:             muxer.DefaultConfig(),
	}
}

// smuxConfig 转换并校验 smux 配置
func (c *Config) smuxConfig() (*smux.Config, error) {
	cfg := smux.DefaultConfig()
	cfg.Version = c.Version
	cfg.MaxFrameSize = c.MaxFrameSize
	cfg.MaxReceiveBuffer = c.MaxReceiveBuffer
	cfg.MaxStreamBuffer = c.MaxStreamBuffer
	if c.KeepAliveInterval > 0 {
		cfg.KeepAliveInterval = c.KeepAliveInterval
		if cfg.KeepAliveTimeout < 3*c.KeepAliveInterval {
			cfg.KeepAliveTimeout = 3 * c.KeepAliveInterval
		}
	} else {
		cfg.KeepAliveDisabled = true
	}
	return cfg, smux.VerifyConfig(cfg)
}

// ProtocolNames 实现 UpgradeInfo
func (c *Config) ProtocolNames() []pkgif.ProtocolName {
	return []pkgif.ProtocolName{{Name: ID, ID: ID}}
}

// UpgradeInbound 以服务端模式建立会话
func (c *Config) UpgradeInbound(_ context.Context, conn net.Conn, _ any) (*muxer.Multiplexer, error) {
	return c.upgrade(conn, true)
}

// UpgradeOutbound 以客户端模式建立会话
func (c *Config) UpgradeOutbound(_ context.Context, conn net.Conn, _ any) (*muxer.Multiplexer, error) {
	return c.upgrade(conn, false)
}

func (c *Config) upgrade(conn net.Conn, server bool) (*muxer.Multiplexer, error) {
	cfg, err := c.smuxConfig()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("smux: invalid config: %w", err)
	}

	var sess *smux.Session
	if server {
		sess, err = smux.Server(conn, cfg)
	} else {
		sess, err = smux.Client(conn, cfg)
	}
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("smux: session: %w", err)
	}
	logger.Debug("smux 会话已建立", "server", server, "remote", conn.RemoteAddr())
	return muxer.New(&engine{session: sess}, c.Muxer), nil
}

// ============================================================================
//                              引擎
// ============================================================================

// engine 包装 smux.Session，实现 muxer.Engine
type engine struct {
	session *smux.Session
}

// OpenStream smux 打开流不等待对端确认，只在开始前检查 ctx
func (e *engine) OpenStream(ctx context.Context) (muxer.EngineStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, err := e.session.OpenStream()
	if err != nil {
		return nil, err
	}
	return &stream{s: s}, nil
}

func (e *engine) AcceptStream() (muxer.EngineStream, error) {
	s, err := e.session.AcceptStream()
	if err != nil {
		return nil, muxer.PeerClosed(err)
	}
	return &stream{s: s}, nil
}

func (e *engine) Close() error   { return e.session.Close() }
func (e *engine) IsClosed() bool { return e.session.IsClosed() }

// stream 包装 smux.Stream
type stream struct {
	s *smux.Stream
}

func (s *stream) Read(p []byte) (int, error)  { return s.s.Read(p) }
func (s *stream) Write(p []byte) (int, error) { return s.s.Write(p) }
func (s *stream) Close() error                { return s.s.Close() }

// CloseWrite smux 不支持半关闭，退化为完整关闭
func (s *stream) CloseWrite() error { return s.s.Close() }

// CloseRead smux 不支持半关闭，退化为完整关闭
func (s *stream) CloseRead() error { return s.s.Close() }

// Reset smux 没有 RST 帧，以关闭代替
func (s *stream) Reset() error { return s.s.Close() }
