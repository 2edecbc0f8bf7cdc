// Package yamux 提供基于 go-yamux 的多路复用引擎与连接升级
//
// Config 同时实现入站（服务端模式）与出站（客户端模式）升级，
// 协议名称为 /yamux/1.0.0，输出 *muxer.Multiplexer。
package yamux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"time"

	"github.com/libp2p/go-yamux/v5"

	"github.com/dep2p/go-p2pcore/internal/core/muxer"
	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
	"github.com/dep2p/go-p2pcore/pkg/lib/log"
)

var logger = log.Logger("core/muxer/yamux")

// ID 协议名称
const ID = "/yamux/1.0.0"

// Config yamux 升级配置
type Config struct {
	// MaxStreamWindowSize 最大流窗口
	MaxStreamWindowSize uint32

	// KeepAliveInterval 心跳间隔，0 表示关闭心跳
	KeepAliveInterval time.Duration

	// Muxer 轮询适配层配置
	Muxer muxer.Config
}

var _ muxer.ConnUpgrade = (*Config)(nil)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		// 16MiB 窗口：100ms 延迟下可达 160MB/s 吞吐量
		MaxStreamWindowSize: 16 * 1024 * 1024,
		KeepAliveInterval:   30 * time.Second,
		Muxer:               muxer.DefaultConfig(),
	}
}

// yamuxConfig 转换为 go-yamux 配置
func (c *Config) yamuxConfig() *yamux.Config {
	cfg := yamux.DefaultConfig()
	if c.MaxStreamWindowSize > 0 {
		cfg.MaxStreamWindowSize = c.MaxStreamWindowSize
	}
	cfg.EnableKeepAlive = c.KeepAliveInterval > 0
	if c.KeepAliveInterval > 0 {
		cfg.KeepAliveInterval = c.KeepAliveInterval
	}
	cfg.LogOutput = io.Discard
	cfg.ReadBufSize = 0
	// 入站流数量由 Multiplexer 的 MaxPendingInbound 控制
	cfg.MaxIncomingStreams = math.MaxUint32
	return cfg
}

// ProtocolNames 实现 UpgradeInfo
func (c *Config) ProtocolNames() []pkgif.ProtocolName {
	return []pkgif.ProtocolName{{Name: ID, ID: ID}}
}

// UpgradeInbound 以服务端模式建立会话
func (c *Config) UpgradeInbound(_ context.Context, conn net.Conn, _ any) (*muxer.Multiplexer, error) {
	sess, err := yamux.Server(conn, c.yamuxConfig(), nil)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("yamux: server session: %w", err)
	}
	logger.Debug("yamux 会话已建立", "role", "server", "remote", conn.RemoteAddr())
	return muxer.New(&engine{session: sess}, c.Muxer), nil
}

// UpgradeOutbound 以客户端模式建立会话
func (c *Config) UpgradeOutbound(_ context.Context, conn net.Conn, _ any) (*muxer.Multiplexer, error) {
	sess, err := yamux.Client(conn, c.yamuxConfig(), nil)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("yamux: client session: %w", err)
	}
	logger.Debug("yamux 会话已建立", "role", "client", "remote", conn.RemoteAddr())
	return muxer.New(&engine{session: sess}, c.Muxer), nil
}

// ============================================================================
//                              引擎
// ============================================================================

// engine 包装 yamux.Session，实现 muxer.Engine
type engine struct {
	session *yamux.Session
}

func (e *engine) OpenStream(ctx context.Context) (muxer.EngineStream, error) {
	s, err := e.session.OpenStream(ctx)
	if err != nil {
		return nil, parseError(err)
	}
	return &stream{s: s}, nil
}

func (e *engine) AcceptStream() (muxer.EngineStream, error) {
	s, err := e.session.AcceptStream()
	if err != nil {
		return nil, parseError(muxer.PeerClosed(err))
	}
	return &stream{s: s}, nil
}

func (e *engine) Close() error {
	return parseError(e.session.Close())
}

func (e *engine) IsClosed() bool {
	return e.session.IsClosed()
}

// stream 包装 yamux.Stream，实现 muxer.EngineStream
type stream struct {
	s *yamux.Stream
}

func (s *stream) Read(p []byte) (int, error) {
	n, err := s.s.Read(p)
	return n, parseError(err)
}

func (s *stream) Write(p []byte) (int, error) {
	n, err := s.s.Write(p)
	return n, parseError(err)
}

func (s *stream) Close() error      { return parseError(s.s.Close()) }
func (s *stream) CloseWrite() error { return parseError(s.s.CloseWrite()) }
func (s *stream) CloseRead() error  { return parseError(s.s.CloseRead()) }
func (s *stream) Reset() error      { return parseError(s.s.Reset()) }

// parseError 转换 yamux 错误为 muxer 错误
func parseError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, yamux.ErrStreamReset):
		return fmt.Errorf("%w: %v", muxer.ErrStreamReset, err)
	case errors.Is(err, yamux.ErrSessionShutdown):
		return muxer.ErrConnClosed
	default:
		return err
	}
}
