package behaviour

import (
	"errors"

	"github.com/dep2p/go-p2pcore/internal/core/upgrade"
	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
	"github.com/dep2p/go-p2pcore/pkg/lib/async"
	"github.com/dep2p/go-p2pcore/pkg/lib/log"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

var logger = log.Logger("core/behaviour")

// ErrUnknownConnection 连接没有对应的 Handler
var ErrUnknownConnection = errors.New("behaviour: unknown connection")

// NewHandlerFunc 为新连接创建 Handler
type NewHandlerFunc[In, Out any] func(peer types.PeerID, point types.ConnectedPoint) pkgif.ProtocolsHandler[In, Out]

// ConnKey 连接在 HandlerSet 中的键
type ConnKey struct {
	Peer types.PeerID
	Conn types.ConnectionID
}

// HandlerOutput HandlerSet 轮询的结果
//
// Event 与 Err 至多一个非空；Closed 表示 Handler 已结束并被移除。
type HandlerOutput[Out any] struct {
	ConnKey
	Event  pkgif.HandlerEvent[Out]
	Err    error
	Closed bool
}

type handlerEntry[In, Out any] struct {
	key     ConnKey
	point   types.ConnectedPoint
	handler pkgif.ProtocolsHandler[In, Out]
}

// ============================================================================
//                              HandlerSet
// ============================================================================

// HandlerSet 按（节点，连接）持有 Handler
type HandlerSet[In, Out any] struct {
	newHandler NewHandlerFunc[In, Out]
	waker      async.Waker

	entries map[ConnKey]*handlerEntry[In, Out]
	order   []ConnKey
	next    int
}

// NewHandlerSet 创建 HandlerSet
func NewHandlerSet[In, Out any](fn NewHandlerFunc[In, Out]) *HandlerSet[In, Out] {
	return &HandlerSet[In, Out]{
		newHandler: fn,
		entries:    make(map[ConnKey]*handlerEntry[In, Out]),
	}
}

// SetWaker 设置唤醒器，并传给实现了 WakerSetter 的 Handler
func (s *HandlerSet[In, Out]) SetWaker(w async.Waker) {
	s.waker = w
	for _, e := range s.entries {
		if ws, ok := e.handler.(pkgif.WakerSetter); ok {
			ws.SetWaker(w)
		}
	}
}

// Add 为新连接创建 Handler，同一连接重复添加时忽略
func (s *HandlerSet[In, Out]) Add(peer types.PeerID, point types.ConnectedPoint) {
	key := ConnKey{Peer: peer, Conn: point.ID}
	if _, ok := s.entries[key]; ok {
		logger.Debug("连接已有 Handler", "peer", peer.ShortString(), "conn", point.ID)
		return
	}
	h := s.newHandler(peer, point)
	if ws, ok := h.(pkgif.WakerSetter); ok && s.waker != nil {
		ws.SetWaker(s.waker)
	}
	s.entries[key] = &handlerEntry[In, Out]{key: key, point: point, handler: h}
	s.order = append(s.order, key)
}

// Remove 移除连接的 Handler 并请求其结束
func (s *HandlerSet[In, Out]) Remove(peer types.PeerID, conn types.ConnectionID) bool {
	key := ConnKey{Peer: peer, Conn: conn}
	e, ok := s.entries[key]
	if !ok {
		return false
	}
	e.handler.Shutdown()
	s.drop(key)
	return true
}

func (s *HandlerSet[In, Out]) drop(key ConnKey) {
	delete(s.entries, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			if s.next > i {
				s.next--
			}
			break
		}
	}
	if s.next >= len(s.order) {
		s.next = 0
	}
}

// Len Handler 数量
func (s *HandlerSet[In, Out]) Len() int {
	return len(s.entries)
}

// Connections 节点当前的连接
func (s *HandlerSet[In, Out]) Connections(peer types.PeerID) []types.ConnectionID {
	var out []types.ConnectionID
	for _, k := range s.order {
		if k.Peer == peer {
			out = append(out, k.Conn)
		}
	}
	return out
}

// Point 返回连接的端点信息
func (s *HandlerSet[In, Out]) Point(peer types.PeerID, conn types.ConnectionID) (types.ConnectedPoint, bool) {
	e, ok := s.entries[ConnKey{Peer: peer, Conn: conn}]
	if !ok {
		return types.ConnectedPoint{}, false
	}
	return e.point, true
}

func (s *HandlerSet[In, Out]) get(peer types.PeerID, conn types.ConnectionID) (pkgif.ProtocolsHandler[In, Out], error) {
	e, ok := s.entries[ConnKey{Peer: peer, Conn: conn}]
	if !ok {
		return nil, ErrUnknownConnection
	}
	return e.handler, nil
}

// ============================================================================
//                              通知转发
// ============================================================================

// ListenProtocol 连接上入站子流使用的升级，未知连接拒绝所有协议
func (s *HandlerSet[In, Out]) ListenProtocol(peer types.PeerID, conn types.ConnectionID) pkgif.SubstreamInbound {
	h, err := s.get(peer, conn)
	if err != nil {
		return upgrade.Denied[pkgif.Substream, any]()
	}
	return h.ListenProtocol()
}

// InjectFullyNegotiatedInbound 转发已升级的入站子流
func (s *HandlerSet[In, Out]) InjectFullyNegotiatedInbound(peer types.PeerID, conn types.ConnectionID, out any) error {
	h, err := s.get(peer, conn)
	if err != nil {
		return err
	}
	h.InjectFullyNegotiatedInbound(out)
	return nil
}

// InjectFullyNegotiatedOutbound 转发已升级的出站子流
func (s *HandlerSet[In, Out]) InjectFullyNegotiatedOutbound(peer types.PeerID, conn types.ConnectionID, out, info any) error {
	h, err := s.get(peer, conn)
	if err != nil {
		return err
	}
	h.InjectFullyNegotiatedOutbound(out, info)
	return nil
}

// InjectDialUpgradeError 转发出站子流失败
func (s *HandlerSet[In, Out]) InjectDialUpgradeError(peer types.PeerID, conn types.ConnectionID, info any, cause error) error {
	h, err := s.get(peer, conn)
	if err != nil {
		return err
	}
	h.InjectDialUpgradeError(info, cause)
	return nil
}

// InjectInboundClosed 连接不会再有入站子流
func (s *HandlerSet[In, Out]) InjectInboundClosed(peer types.PeerID, conn types.ConnectionID) error {
	h, err := s.get(peer, conn)
	if err != nil {
		return err
	}
	h.InjectInboundClosed()
	return nil
}

// InjectEvent 向一条连接的 Handler 注入事件
func (s *HandlerSet[In, Out]) InjectEvent(peer types.PeerID, conn types.ConnectionID, ev In) error {
	h, err := s.get(peer, conn)
	if err != nil {
		return err
	}
	h.InjectEvent(ev)
	return nil
}

// InjectEventAll 向节点所有连接的 Handler 注入事件，返回注入的个数
func (s *HandlerSet[In, Out]) InjectEventAll(peer types.PeerID, ev In) int {
	n := 0
	for _, k := range s.order {
		if k.Peer == peer {
			s.entries[k].handler.InjectEvent(ev)
			n++
		}
	}
	return n
}

// ============================================================================
//                              轮询
// ============================================================================

// Poll 从上次停下的位置开始轮转推进各个 Handler
//
// 返回第一个非 Pending 的结果。Handler 返回错误、Ended 或 HandlerShutdown
// 时被移除，对应结果的 Closed 为 true。
func (s *HandlerSet[In, Out]) Poll() types.Poll[HandlerOutput[Out]] {
	n := len(s.order)
	for i := 0; i < n; i++ {
		idx := (s.next + i) % n
		key := s.order[idx]
		e := s.entries[key]

		p, err := e.handler.Poll()
		switch {
		case err != nil:
			logger.Warn("Handler 出错，移除", "peer", key.Peer.ShortString(), "conn", key.Conn, "error", err)
			s.drop(key)
			return types.Ready(HandlerOutput[Out]{ConnKey: key, Err: err, Closed: true})
		case p.IsEnded():
			s.drop(key)
			return types.Ready(HandlerOutput[Out]{ConnKey: key, Closed: true})
		case p.IsPending():
			continue
		}

		s.next = (idx + 1) % n
		if _, ok := p.Value.(pkgif.HandlerShutdown); ok {
			s.drop(key)
			return types.Ready(HandlerOutput[Out]{ConnKey: key, Event: p.Value, Closed: true})
		}
		return types.Ready(HandlerOutput[Out]{ConnKey: key, Event: p.Value})
	}
	return types.Pending[HandlerOutput[Out]]()
}
