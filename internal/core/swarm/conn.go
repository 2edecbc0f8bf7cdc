package swarm

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/dep2p/go-p2pcore/internal/core/muxing"
	"github.com/dep2p/go-p2pcore/internal/core/upgrade"
	"github.com/dep2p/go-p2pcore/internal/core/upgrader"
	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
	"github.com/dep2p/go-p2pcore/pkg/lib/async"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

// conn 一条活跃连接
type conn struct {
	id       types.ConnectionID
	peer     types.PeerID
	point    types.ConnectedPoint
	security string
	muxerID  string

	shared *muxing.SharedMuxer
	unsub  func()

	// ctx 约束连接上所有子流的打开与协商
	ctx    context.Context
	cancel context.CancelFunc

	inbound  []*async.Future[any]
	outbound []outboundSubstream
}

// outboundSubstream 一次进行中的出站子流打开，info 原样交回 Behaviour
type outboundSubstream struct {
	fut  *async.Future[any]
	info any
}

// ConnInfo 连接信息
type ConnInfo struct {
	ID       types.ConnectionID
	Peer     types.PeerID
	Point    types.ConnectedPoint
	Security string
	Muxer    string

	// Substreams 多路复用器上未销毁的子流数量
	Substreams int
}

// ============================================================================
//                              查询
// ============================================================================

// Connections 返回全部活跃连接，按连接 ID 排序
func (s *Swarm[Out]) Connections() []ConnInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ConnInfo, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c.info())
	}
	slices.SortFunc(out, func(a, b ConnInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Peers 返回所有已连接的节点 ID
func (s *Swarm[Out]) Peers() []types.PeerID {
	s.mu.Lock()
	defer s.mu.Unlock()

	peers := make([]types.PeerID, 0, len(s.conns))
	for _, c := range s.conns {
		if !slices.Contains(peers, c.peer) {
			peers = append(peers, c.peer)
		}
	}
	slices.Sort(peers)
	return peers
}

// IsConnected 是否与 peer 有活跃连接
func (s *Swarm[Out]) IsConnected(peer types.PeerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isConnectedLocked(peer)
}

func (s *Swarm[Out]) isConnectedLocked(peer types.PeerID) bool {
	for _, c := range s.conns {
		if c.peer == peer {
			return true
		}
	}
	return false
}

// CloseConnection 关闭一条连接
func (s *Swarm[Out]) CloseConnection(id types.ConnectionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conns[id]
	if !ok {
		return ErrNoConnection
	}
	s.removeConnLocked(c, nil)
	s.signal.Wake()
	return nil
}

// DisconnectPeer 关闭到 peer 的所有连接
func (s *Swarm[Out]) DisconnectPeer(peer types.PeerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for _, c := range s.conns {
		if c.peer == peer {
			s.removeConnLocked(c, nil)
			found = true
		}
	}
	if !found {
		return ErrNoConnection
	}
	s.signal.Wake()
	return nil
}

func (c *conn) info() ConnInfo {
	n := 0
	if m, ok := c.shared.Muxer().(interface{ NumSubstreams() int }); ok {
		n = m.NumSubstreams()
	}
	return ConnInfo{
		ID:         c.id,
		Peer:       c.peer,
		Point:      c.point,
		Security:   c.security,
		Muxer:      c.muxerID,
		Substreams: n,
	}
}

// ============================================================================
//                              建立与拆除
// ============================================================================

// establishLocked 把升级完成的连接加入连接表并通知 Behaviour
func (s *Swarm[Out]) establishLocked(p *pendingConn, uc *upgrader.UpgradedConn) {
	var reject error
	switch {
	case uc.RemotePeer == s.local:
		reject = ErrDialToSelf
	case !p.expected.IsEmpty() && uc.RemotePeer != p.expected:
		reject = fmt.Errorf("%w: want %s, got %s", ErrPeerMismatch, p.expected.ShortString(), uc.RemotePeer.ShortString())
	}
	if reject != nil {
		_ = uc.Close()
		s.pendingFailedLocked(p, reject)
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	c := &conn{
		id:       p.point.ID,
		peer:     uc.RemotePeer,
		point:    p.point,
		security: uc.Security,
		muxerID:  uc.MuxerID,
		shared:   muxing.Share(uc.Muxer),
		ctx:      ctx,
		cancel:   cancel,
	}
	c.unsub = uc.Muxer.Subscribe(s.signal)
	s.conns[c.id] = c
	s.metrics.connOpened()

	logger.Info("连接已建立",
		"peer", c.peer.ShortString(),
		"conn", c.id,
		"direction", c.point.Direction,
		"remote", c.point.RemoteAddr(),
		"muxer", c.muxerID)

	s.behaviour.InjectConnected(c.peer, c.point)
	s.events.Push(Event[Out]{Kind: EventConnectionEstablished, Peer: c.peer, Point: c.point})
}

// removeConnLocked 从连接表移除连接，在后台释放多路复用器
//
// 进行中的子流升级被取消，Behaviour 收到 InjectDisconnected。
func (s *Swarm[Out]) removeConnLocked(c *conn, reason error) {
	if _, ok := s.conns[c.id]; !ok {
		return
	}
	delete(s.conns, c.id)
	c.cancel()
	c.unsub()
	for _, f := range c.inbound {
		f.Cancel()
	}
	for _, o := range c.outbound {
		o.fut.Cancel()
	}
	c.inbound, c.outbound = nil, nil

	shared := c.shared
	s.teardown.Go(func() error {
		return shared.Release()
	})
	s.metrics.connClosed()

	logger.Info("连接已关闭", "peer", c.peer.ShortString(), "conn", c.id, "reason", reason)
	s.behaviour.InjectDisconnected(c.peer, c.point)
	s.events.Push(Event[Out]{Kind: EventConnectionClosed, Peer: c.peer, Point: c.point, Err: reason})
}

// ============================================================================
//                              子流
// ============================================================================

// pollConnsLocked 推进每条连接的入站接受和子流升级
func (s *Swarm[Out]) pollConnsLocked() {
	for _, c := range s.conns {
		if done, err := s.pollConnLocked(c); done {
			s.removeConnLocked(c, err)
		}
	}
}

// pollConnLocked 推进一条连接；连接结束时返回 done
func (s *Swarm[Out]) pollConnLocked(c *conn) (bool, error) {
	m := c.shared.Muxer()
	for {
		p, err := m.PollInbound()
		if err != nil {
			return true, err
		}
		if p.IsEnded() {
			return true, nil
		}
		if p.IsPending() {
			break
		}
		s.acceptSubstreamLocked(c, p.Value)
	}

	inbound := c.inbound[:0]
	for _, f := range c.inbound {
		r, err := f.Poll()
		switch {
		case err != nil:
			s.metrics.upgradeFailed(stageInboundSubstream)
			logger.Debug("入站子流升级失败", "peer", c.peer.ShortString(), "conn", c.id, "error", err)
		case r.IsReady():
			s.metrics.substreamNegotiated(types.DirInbound.String())
			s.behaviour.InjectFullyNegotiatedInbound(c.peer, c.id, r.Value)
		default:
			inbound = append(inbound, f)
		}
	}
	c.inbound = inbound

	outbound := c.outbound[:0]
	for _, o := range c.outbound {
		r, err := o.fut.Poll()
		switch {
		case err != nil:
			s.metrics.upgradeFailed(stageOutboundSubstream)
			logger.Debug("出站子流升级失败", "peer", c.peer.ShortString(), "conn", c.id, "error", err)
			s.behaviour.InjectDialUpgradeError(c.peer, c.id, o.info, err)
		case r.IsReady():
			s.metrics.substreamNegotiated(types.DirOutbound.String())
			s.behaviour.InjectFullyNegotiatedOutbound(c.peer, c.id, r.Value, o.info)
		default:
			outbound = append(outbound, o)
		}
	}
	c.outbound = outbound
	return false, nil
}

// acceptSubstreamLocked 用 Behaviour 为该连接给出的升级协商入站子流
func (s *Swarm[Out]) acceptSubstreamLocked(c *conn, id types.SubstreamID) {
	ref := muxing.NewSubstreamRef(c.shared, id)
	up := s.behaviour.ListenProtocol(c.peer, c.id)

	ctx, cancel := context.WithTimeout(c.ctx, s.cfg.SubstreamTimeout)
	fut := async.Go(ctx, s.signal, func(ctx context.Context) (any, error) {
		defer cancel()
		return upgrade.ApplyInbound[pkgif.Substream, any](ctx, ref, up)
	})
	c.inbound = append(c.inbound, fut)
	logger.Debug("接受入站子流", "peer", c.peer.ShortString(), "conn", c.id, "substream", id)
}

// openSubstreamLocked 执行 OpenSubstream：打开出站子流并执行其升级
//
// 连接不存在时立即以 ErrNoConnection 通知 Behaviour。
func (s *Swarm[Out]) openSubstreamLocked(a pkgif.OpenSubstream) {
	c, ok := s.conns[a.Conn]
	if !ok || c.peer != a.Peer {
		s.metrics.upgradeFailed(stageOutboundSubstream)
		s.behaviour.InjectDialUpgradeError(a.Peer, a.Conn, a.Info, ErrNoConnection)
		return
	}

	shared := c.shared
	up := a.Upgrade
	ctx, cancel := context.WithTimeout(c.ctx, s.cfg.SubstreamTimeout)
	fut := async.Go(ctx, s.signal, func(ctx context.Context) (any, error) {
		defer cancel()
		ref, err := muxing.OutboundFromRef(ctx, shared)
		if err != nil {
			return nil, err
		}
		return upgrade.ApplyOutbound[pkgif.Substream, any](ctx, ref, up)
	})
	c.outbound = append(c.outbound, outboundSubstream{fut: fut, info: a.Info})
	logger.Debug("打开出站子流", "peer", c.peer.ShortString(), "conn", c.id)
}
