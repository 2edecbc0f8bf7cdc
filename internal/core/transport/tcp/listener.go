package tcp

import (
	"net"
	"sync"

	tec "github.com/jbenet/go-temp-err-catcher"
	manet "github.com/multiformats/go-multiaddr/net"
	"go.uber.org/multierr"

	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
	"github.com/dep2p/go-p2pcore/pkg/lib/async"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

// ============================================================================
//                              Listener 实现
// ============================================================================

// listener TCP 监听器
//
// 后台接受循环把连接按接受顺序放入队列，Poll 依次取出。
type listener struct {
	ln       manet.Listener
	addr     types.Multiaddr
	backlog  int
	onClosed func(*listener)
	// catcher 对临时性接受错误（如 EMFILE）退避重试
	catcher tec.TempErrCatcher

	mu        sync.Mutex
	queue     []manet.Conn
	ended     bool
	closed    bool
	wakers    map[uint64]async.Waker
	nextWaker uint64
}

var _ pkgif.ListenerStream[net.Conn] = (*listener)(nil)

func newListener(ln manet.Listener, backlog int, onClosed func(*listener)) *listener {
	l := &listener{
		ln:       ln,
		addr:     ln.Multiaddr(),
		backlog:  backlog,
		onClosed: onClosed,
		wakers:   make(map[uint64]async.Waker),
	}
	go l.acceptLoop()
	return l
}

func (l *listener) acceptLoop() {
	for {
		c, err := l.ln.Accept()
		if err != nil && !l.isClosed() && l.catcher.IsTemporary(err) {
			logger.Debug("临时性接受错误，稍后重试", "addr", l.addr, "error", err)
			continue
		}

		l.mu.Lock()
		if err != nil {
			if !l.closed {
				logger.Warn("监听器停止接受连接", "addr", l.addr, "error", err)
			}
			l.ended = true
			l.notifyLocked()
			l.mu.Unlock()
			return
		}
		l.catcher.Reset()
		if l.closed || len(l.queue) >= l.backlog {
			l.mu.Unlock()
			logger.Debug("入站连接队列已满，关闭新连接", "addr", l.addr, "remote", c.RemoteMultiaddr())
			_ = c.Close()
			continue
		}
		l.queue = append(l.queue, c)
		l.notifyLocked()
		l.mu.Unlock()
	}
}

func (l *listener) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *listener) notifyLocked() {
	for _, w := range l.wakers {
		w.Wake()
	}
}

// Poll 实现 ListenerStream
func (l *listener) Poll() types.Poll[pkgif.ListenerEvent[net.Conn]] {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) > 0 {
		c := l.queue[0]
		l.queue = l.queue[1:]
		return types.Ready(pkgif.ListenerEvent[net.Conn]{
			Upgrade:    async.Resolved[net.Conn](c),
			ListenAddr: l.addr,
			RemoteAddr: c.RemoteMultiaddr(),
		})
	}
	if l.ended {
		return types.Ended[pkgif.ListenerEvent[net.Conn]]()
	}
	return types.Pending[pkgif.ListenerEvent[net.Conn]]()
}

// Subscribe 实现 ListenerStream
func (l *listener) Subscribe(w async.Waker) func() {
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

// Addr 返回实际监听地址
func (l *listener) Addr() types.Multiaddr {
	return l.addr
}

// Close 关闭监听器，未取走的连接一并关闭
func (l *listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.ended = true
	pending := l.queue
	l.queue = nil
	l.notifyLocked()
	l.mu.Unlock()

	err := l.ln.Close()
	for _, c := range pending {
		err = multierr.Append(err, c.Close())
	}
	if l.onClosed != nil {
		l.onClosed(l)
	}
	logger.Info("监听器已关闭", "addr", l.addr)
	return err
}
