package swarm

import (
	"github.com/dep2p/go-p2pcore/internal/core/upgrader"
	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

// listener 一个活跃的监听
type listener struct {
	stream pkgif.ListenerStream[*upgrader.UpgradedConn]
	addr   types.Multiaddr
	unsub  func()
}

// Listen 监听指定地址，返回实际绑定的地址
//
// 建立失败同步返回传输层错误（其中携带原地址）。
func (s *Swarm[Out]) Listen(addr types.Multiaddr) (types.Multiaddr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSwarmClosed
	}

	ln, bound, err := s.transport.Listen(addr)
	if err != nil {
		logger.Warn("监听地址失败", "addr", addr, "error", err)
		return nil, err
	}
	l := &listener{stream: ln, addr: bound}
	l.unsub = ln.Subscribe(s.signal)
	s.listeners = append(s.listeners, l)

	s.events.Push(Event[Out]{Kind: EventNewListenAddr, Addr: bound})
	s.signal.Wake()
	logger.Info("开始监听", "addr", bound)
	return bound, nil
}

// ListenAddrs 返回全部监听地址
func (s *Swarm[Out]) ListenAddrs() []types.Multiaddr {
	s.mu.Lock()
	defer s.mu.Unlock()

	addrs := make([]types.Multiaddr, 0, len(s.listeners))
	for _, l := range s.listeners {
		addrs = append(addrs, l.addr)
	}
	return addrs
}

// RemoveListener 停止在 addr 上的监听
//
// 监听结束的事件在之后的 Poll 中交付。
func (s *Swarm[Out]) RemoveListener(addr types.Multiaddr) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.listeners {
		if l.addr.Equal(addr) {
			s.signal.Wake()
			return l.stream.Close()
		}
	}
	return ErrNoAddresses
}

// pollListenersLocked 取出所有就绪的入站连接
func (s *Swarm[Out]) pollListenersLocked() {
	for i := 0; i < len(s.listeners); {
		l := s.listeners[i]
		p := l.stream.Poll()
		switch {
		case p.IsReady():
			s.acceptLocked(p.Value)
		case p.IsEnded():
			l.unsub()
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			s.events.Push(Event[Out]{Kind: EventListenerClosed, Addr: l.addr})
			logger.Info("监听已结束", "addr", l.addr)
		default:
			i++
		}
	}
}

// acceptLocked 登记入站连接的升级
func (s *Swarm[Out]) acceptLocked(ev pkgif.ListenerEvent[*upgrader.UpgradedConn]) {
	if len(s.pending) >= s.cfg.MaxPendingUpgrades {
		ev.Upgrade.Cancel()
		s.metrics.upgradeFailed(stageInboundConn)
		logger.Warn("进行中的升级过多，拒绝入站连接", "remote", ev.RemoteAddr, "limit", s.cfg.MaxPendingUpgrades)
		return
	}
	point := types.Listener(s.newConnIDLocked(), ev.ListenAddr, ev.RemoteAddr)
	s.addPendingLocked(&pendingConn{upgrade: ev.Upgrade, point: point})
	logger.Debug("接受入站连接", "conn", point.ID, "remote", ev.RemoteAddr)
}
