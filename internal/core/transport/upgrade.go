package transport

import (
	"context"
	"net"
	"sync"

	"github.com/dep2p/go-p2pcore/internal/core/upgrade"
	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
	"github.com/dep2p/go-p2pcore/pkg/lib/async"
	"github.com/dep2p/go-p2pcore/pkg/lib/log"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

var logger = log.Logger("core/transport")

// ConnUpgrader 把原始连接升级为 O
//
// *upgrader.Upgrader 实现了该接口。
type ConnUpgrader[O any] interface {
	Inbound(ctx context.Context, conn net.Conn) (O, error)
	Outbound(ctx context.Context, conn net.Conn) (O, error)
}

// negotiated 用单次协议协商执行升级
type negotiated[O any] struct {
	up pkgif.Upgrade[net.Conn, O]
}

func (n negotiated[O]) Inbound(ctx context.Context, conn net.Conn) (O, error) {
	return upgrade.ApplyInbound[net.Conn, O](ctx, conn, n.up)
}

func (n negotiated[O]) Outbound(ctx context.Context, conn net.Conn) (O, error) {
	return upgrade.ApplyOutbound[net.Conn, O](ctx, conn, n.up)
}

// WithUpgrade 对接受的连接执行入站升级，对拨出的连接执行出站升级
//
// 升级前先协商协议名称；升级失败通过 PendingUpgrade 返回。
func WithUpgrade[O any](inner pkgif.Transport[net.Conn], up pkgif.Upgrade[net.Conn, O]) *Upgraded[O] {
	return WithUpgrader[O](inner, negotiated[O]{up: up})
}

// WithUpgrader 用 ConnUpgrader 升级连接
func WithUpgrader[O any](inner pkgif.Transport[net.Conn], u ConnUpgrader[O]) *Upgraded[O] {
	return &Upgraded[O]{inner: inner, up: u}
}

// ============================================================================
//                              Upgraded
// ============================================================================

// Upgraded 带升级的传输
type Upgraded[O any] struct {
	inner pkgif.Transport[net.Conn]
	up    ConnUpgrader[O]
}

var _ pkgif.Transport[struct{}] = (*Upgraded[struct{}])(nil)

// Listen 实现 Transport
func (t *Upgraded[O]) Listen(addr types.Multiaddr) (pkgif.ListenerStream[O], types.Multiaddr, error) {
	ln, bound, err := t.inner.Listen(addr)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	ul := &upgradedListener[O]{
		inner:  ln,
		up:     t.up,
		ctx:    ctx,
		cancel: cancel,
		wakers: make(map[uint64]async.Waker),
	}
	ul.unsub = ln.Subscribe(async.WakerFunc(ul.wake))
	return ul, bound, nil
}

// Dial 实现 Transport
//
// ctx 约束整个拨号与升级过程。
func (t *Upgraded[O]) Dial(ctx context.Context, addr types.Multiaddr) (pkgif.PendingUpgrade[O], error) {
	pending, err := t.inner.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	return async.Go(ctx, nil, func(ctx context.Context) (O, error) {
		conn, err := Await(ctx, pending)
		if err != nil {
			var zero O
			return zero, err
		}
		out, err := t.up.Outbound(ctx, conn)
		if err != nil {
			logger.Debug("出站升级失败", "addr", addr, "error", err)
		}
		return out, err
	}), nil
}

// NatTraversal 实现 Transport
func (t *Upgraded[O]) NatTraversal(server, observed types.Multiaddr) (types.Multiaddr, bool) {
	return t.inner.NatTraversal(server, observed)
}

// ============================================================================
//                              upgradedListener
// ============================================================================

type upgradedListener[O any] struct {
	inner pkgif.ListenerStream[net.Conn]
	up    ConnUpgrader[O]
	unsub func()

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	wakers    map[uint64]async.Waker
	nextWaker uint64
}

func (l *upgradedListener[O]) wake() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, w := range l.wakers {
		w.Wake()
	}
}

// Poll 实现 ListenerStream
//
// 入站升级在后台执行，完成时唤醒订阅者。
func (l *upgradedListener[O]) Poll() types.Poll[pkgif.ListenerEvent[O]] {
	p := l.inner.Poll()
	if !p.IsReady() {
		return types.Poll[pkgif.ListenerEvent[O]]{State: p.State}
	}
	ev := p.Value
	rawUpgrade := ev.Upgrade
	fut := async.Go(l.ctx, async.WakerFunc(l.wake), func(ctx context.Context) (O, error) {
		conn, err := Await(ctx, rawUpgrade)
		if err != nil {
			var zero O
			return zero, err
		}
		out, err := l.up.Inbound(ctx, conn)
		if err != nil {
			logger.Debug("入站升级失败", "remote", ev.RemoteAddr, "error", err)
		}
		return out, err
	})
	return types.Ready(pkgif.ListenerEvent[O]{
		Upgrade:    fut,
		ListenAddr: ev.ListenAddr,
		RemoteAddr: ev.RemoteAddr,
	})
}

// Subscribe 实现 ListenerStream
func (l *upgradedListener[O]) Subscribe(w async.Waker) func() {
	l.mu.Lock()
	key := l.nextWaker
	l.nextWaker++
	l.wakers[key] = w
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.wakers, key)
		l.mu.Unlock()
	}
}

// Addr 实现 ListenerStream
func (l *upgradedListener[O]) Addr() types.Multiaddr {
	return l.inner.Addr()
}

// Close 停止监听并取消进行中的入站升级
func (l *upgradedListener[O]) Close() error {
	l.cancel()
	l.unsub()
	return l.inner.Close()
}

// ============================================================================
//                              辅助函数
// ============================================================================

// Await 阻塞等待 PendingUpgrade 完成
//
// ctx 结束时取消升级并返回 ctx 的错误。
func Await[O any](ctx context.Context, p pkgif.PendingUpgrade[O]) (O, error) {
	select {
	case <-p.Done():
	case <-ctx.Done():
		p.Cancel()
		var zero O
		return zero, ctx.Err()
	}
	r, err := p.Poll()
	if err != nil {
		var zero O
		return zero, err
	}
	return r.Value, nil
}
