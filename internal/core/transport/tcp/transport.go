// Package tcp 提供基于 TCP 的传输层实现
//
// 地址使用 go-multiaddr 表示，套接字操作经由 go-multiaddr/net（manet）。
// TCP 不提供多路复用，需要配合 transport.WithUpgrader 使用。
package tcp

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	"go.uber.org/multierr"

	"github.com/dep2p/go-p2pcore/internal/core/transport"
	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
	"github.com/dep2p/go-p2pcore/pkg/lib/async"
	"github.com/dep2p/go-p2pcore/pkg/lib/log"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

var logger = log.Logger("core/transport/tcp")

// ============================================================================
//                              配置
// ============================================================================

// Config TCP 传输配置
type Config struct {
	// DialTimeout 单次拨号超时
	DialTimeout time.Duration

	// KeepAlive TCP keepalive 周期，0 使用系统默认
	KeepAlive time.Duration

	// AcceptBacklog 尚未被轮询取走的入站连接上限，超出时新连接被关闭
	AcceptBacklog int
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		DialTimeout:   10 * time.Second,
		KeepAlive:     15 * time.Second,
		AcceptBacklog: 128,
	}
}

// ============================================================================
//                              Transport 实现
// ============================================================================

// Transport TCP 传输层实现
type Transport struct {
	cfg Config

	mu        sync.Mutex
	listeners map[*listener]struct{}

	closed atomic.Bool
}

var _ pkgif.Transport[net.Conn] = (*Transport)(nil)

// New 创建 TCP 传输层
func New(cfg Config) *Transport {
	if cfg.AcceptBacklog <= 0 {
		cfg.AcceptBacklog = DefaultConfig().AcceptBacklog
	}
	return &Transport{
		cfg:       cfg,
		listeners: make(map[*listener]struct{}),
	}
}

// CanDial 检查地址格式：/ip4|ip6|dns4|dns6/<host>/tcp/<port>
func CanDial(addr types.Multiaddr) bool {
	if addr == nil {
		return false
	}
	ps := addr.Protocols()
	if len(ps) != 2 || ps[1].Code != ma.P_TCP {
		return false
	}
	switch ps[0].Code {
	case ma.P_IP4, ma.P_IP6, ma.P_DNS4, ma.P_DNS6:
		return true
	}
	return false
}

// canListen 监听只接受 IP 地址
func canListen(addr types.Multiaddr) bool {
	if !CanDial(addr) {
		return false
	}
	code := addr.Protocols()[0].Code
	return code == ma.P_IP4 || code == ma.P_IP6
}

// Listen 监听入站连接
func (t *Transport) Listen(addr types.Multiaddr) (pkgif.ListenerStream[net.Conn], types.Multiaddr, error) {
	if t.closed.Load() {
		return nil, nil, &transport.Error{Op: "listen", Addr: addr, Err: transport.ErrTransportClosed}
	}
	if !canListen(addr) {
		return nil, nil, &transport.Error{Op: "listen", Addr: addr, Err: transport.ErrInvalidAddress}
	}

	ml, err := manet.Listen(addr)
	if err != nil {
		return nil, nil, &transport.Error{Op: "listen", Addr: addr, Err: err}
	}

	l := newListener(ml, t.cfg.AcceptBacklog, t.removeListener)
	t.mu.Lock()
	t.listeners[l] = struct{}{}
	t.mu.Unlock()

	logger.Info("开始监听", "addr", l.Addr())
	return l, l.Addr(), nil
}

// Dial 建立出站连接
//
// 地址检查同步完成，拨号在后台执行。
func (t *Transport) Dial(ctx context.Context, addr types.Multiaddr) (pkgif.PendingUpgrade[net.Conn], error) {
	if t.closed.Load() {
		return nil, &transport.Error{Op: "dial", Addr: addr, Err: transport.ErrTransportClosed}
	}
	if !CanDial(addr) {
		return nil, &transport.Error{Op: "dial", Addr: addr, Err: transport.ErrInvalidAddress}
	}

	d := manet.Dialer{Dialer: net.Dialer{Timeout: t.cfg.DialTimeout, KeepAlive: t.cfg.KeepAlive}}
	return async.Go(ctx, nil, func(ctx context.Context) (net.Conn, error) {
		c, err := d.DialContext(ctx, addr)
		if err != nil {
			logger.Debug("拨号失败", "addr", addr, "error", err)
			return nil, &transport.Error{Op: "dial", Addr: addr, Err: err}
		}
		logger.Debug("拨号成功", "addr", addr, "local", c.LocalMultiaddr())
		return c, nil
	}), nil
}

// NatTraversal 观测 IP + 监听端口
func (t *Transport) NatTraversal(server, observed types.Multiaddr) (types.Multiaddr, bool) {
	if !canListen(server) {
		return nil, false
	}
	return transport.AddressTranslation(server, observed)
}

// Close 关闭传输层及全部监听器
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	t.mu.Lock()
	ls := make([]*listener, 0, len(t.listeners))
	for l := range t.listeners {
		ls = append(ls, l)
	}
	t.mu.Unlock()

	var err error
	for _, l := range ls {
		err = multierr.Append(err, l.Close())
	}
	return err
}

// ListenerCount 返回监听器数量
func (t *Transport) ListenerCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.listeners)
}

func (t *Transport) removeListener(l *listener) {
	t.mu.Lock()
	delete(t.listeners, l)
	t.mu.Unlock()
}
