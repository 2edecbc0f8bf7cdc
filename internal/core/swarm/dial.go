package swarm

import (
	"context"
	"fmt"

	"github.com/dep2p/go-p2pcore/internal/core/upgrader"
	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

// pendingConn 一次进行中的连接升级
type pendingConn struct {
	upgrade pkgif.PendingUpgrade[*upgrader.UpgradedConn]
	point   types.ConnectedPoint
	cancel  context.CancelFunc

	// 以下字段只用于 DialPeer
	expected  types.PeerID
	remaining []types.Multiaddr
	errs      []error
}

func (p *pendingConn) abort() {
	p.upgrade.Cancel()
	if p.cancel != nil {
		p.cancel()
	}
}

// Dial 向 addr 发起一次拨号
//
// 建立失败同步返回；升级结果通过事件交付。
func (s *Swarm[Out]) Dial(addr types.Multiaddr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dialLocked(addr, types.EmptyPeerID, nil, nil)
}

// DialPeer 按记录的地址依次拨号节点，直到有一个成功
//
// 全部地址失败时交付 EventDialError，错误为 *DialError。
func (s *Swarm[Out]) DialPeer(peer types.PeerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dialKnownPeerLocked(peer)
}

func (s *Swarm[Out]) dialKnownPeerLocked(peer types.PeerID) error {
	if peer == s.local {
		return ErrDialToSelf
	}
	addrs := s.addrBook[peer]
	if len(addrs) == 0 {
		return fmt.Errorf("%w for %s", ErrNoAddresses, peer.ShortString())
	}
	return s.dialPeerLocked(peer, addrs, nil)
}

// dialPeerLocked 拨号第一个能建立的地址，其余地址留作后备
func (s *Swarm[Out]) dialPeerLocked(peer types.PeerID, addrs []types.Multiaddr, errs []error) error {
	for len(addrs) > 0 {
		addr := addrs[0]
		addrs = addrs[1:]
		err := s.dialLocked(addr, peer, addrs, errs)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return &DialError{Peer: peer, Errors: errs}
}

func (s *Swarm[Out]) dialLocked(addr types.Multiaddr, expected types.PeerID, remaining []types.Multiaddr, errs []error) error {
	if s.closed {
		return ErrSwarmClosed
	}
	if len(s.pending) >= s.cfg.MaxPendingUpgrades {
		return ErrTooManyPending
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.DialTimeout)
	up, err := s.transport.Dial(ctx, addr)
	if err != nil {
		cancel()
		logger.Debug("拨号建立失败", "addr", addr, "error", err)
		return err
	}
	point := types.Dialer(s.newConnIDLocked(), addr)
	s.addPendingLocked(&pendingConn{
		upgrade:   up,
		point:     point,
		cancel:    cancel,
		expected:  expected,
		remaining: remaining,
		errs:      errs,
	})
	logger.Debug("发起拨号", "conn", point.ID, "addr", addr, "peer", expected.ShortString())
	return nil
}

func (s *Swarm[Out]) newConnIDLocked() types.ConnectionID {
	s.nextConn++
	return s.nextConn
}

// addPendingLocked 登记升级，完成时唤醒 Swarm
func (s *Swarm[Out]) addPendingLocked(p *pendingConn) {
	s.nextPending++
	s.pending[s.nextPending] = p

	done := p.upgrade.Done()
	go func() {
		select {
		case <-done:
			s.signal.Wake()
		case <-s.ctx.Done():
		}
	}()
}

// pollPendingLocked 收取已完成的升级
func (s *Swarm[Out]) pollPendingLocked() {
	for key, p := range s.pending {
		r, err := p.upgrade.Poll()
		if err == nil && r.IsPending() {
			continue
		}
		delete(s.pending, key)
		if p.cancel != nil {
			p.cancel()
		}
		switch {
		case err != nil:
			s.pendingFailedLocked(p, err)
		case r.IsEnded():
			s.pendingFailedLocked(p, ErrUpgradeEnded)
		default:
			s.establishLocked(p, r.Value)
		}
	}
}

// pendingFailedLocked 处理升级失败；DialPeer 还有后备地址时继续拨号
func (s *Swarm[Out]) pendingFailedLocked(p *pendingConn, err error) {
	if !p.point.IsDialer() {
		s.metrics.upgradeFailed(stageInboundConn)
		logger.Debug("入站连接升级失败", "conn", p.point.ID, "remote", p.point.SendBackAddr, "error", err)
		s.events.Push(Event[Out]{
			Kind:  EventIncomingConnectionError,
			Point: p.point,
			Addr:  p.point.SendBackAddr,
			Err:   err,
		})
		return
	}

	s.metrics.upgradeFailed(stageOutboundConn)
	logger.Debug("出站连接失败", "conn", p.point.ID, "addr", p.point.Address, "error", err)
	if !p.expected.IsEmpty() {
		errs := append(p.errs, err)
		if len(p.remaining) > 0 && !s.closed {
			derr := s.dialPeerLocked(p.expected, p.remaining, errs)
			if derr == nil {
				return
			}
			err = derr
		} else {
			err = &DialError{Peer: p.expected, Errors: errs}
		}
		logger.Warn("拨号节点失败", "peer", p.expected.ShortString(), "error", err)
	}
	s.events.Push(Event[Out]{
		Kind:  EventDialError,
		Peer:  p.expected,
		Point: p.point,
		Addr:  p.point.Address,
		Err:   err,
	})
}
