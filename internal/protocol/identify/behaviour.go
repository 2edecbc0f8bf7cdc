package identify

import (
	"fmt"
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dep2p/go-p2pcore/internal/core/behaviour"
	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
	"github.com/dep2p/go-p2pcore/pkg/lib/async"
	"github.com/dep2p/go-p2pcore/pkg/lib/log"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

var logger = log.Logger("protocol/identify")

// DefaultCacheSize 默认缓存的节点数
const DefaultCacheSize = 1024

// ============================================================================
//                              Behaviour 事件
// ============================================================================

// EventKind 事件类型
type EventKind int

const (
	// EventIdentified 成功取得对端信息
	EventIdentified EventKind = iota
	// EventError 身份请求失败
	EventError
)

// String 返回类型名
func (k EventKind) String() string {
	switch k {
	case EventIdentified:
		return "identified"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event PeriodicIdentifyBehaviour 交给应用的事件
type Event struct {
	Kind EventKind
	Peer types.PeerID

	// Info 与 ObservedAddr 仅在 EventIdentified 时有效
	Info         Info
	ObservedAddr types.Multiaddr

	// Err 仅在 EventError 时有效
	Err error
}

// ============================================================================
//                              PeriodicIdentifyBehaviour
// ============================================================================

// BehaviourConfig Behaviour 配置
type BehaviourConfig struct {
	// Local 本端宣告的信息（监听地址由 SetListenAddrs 更新）
	Local Info

	// MaxMessageSize 消息上限
	MaxMessageSize int

	// Timeout 单次读写超时
	Timeout time.Duration

	// CacheSize 缓存的节点数
	CacheSize int

	// Handler 每条连接的定时参数
	Handler HandlerConfig
}

// PeriodicIdentifyBehaviour 周期性身份交换的编排器
//
// 为每条连接创建一个 PeriodicIdentification，把它们的事件转换为
// 先进先出的 Event 队列，并缓存每个节点最近一次成功取得的信息。
type PeriodicIdentifyBehaviour struct {
	protocol *Protocol
	cfg      BehaviourConfig

	handlers *behaviour.HandlerSet[struct{}, HandlerEvent]
	queue    *behaviour.Queue[pkgif.BehaviourAction[Event]]
	cache    *lru.Cache[types.PeerID, RemoteInfo]

	mu    sync.RWMutex
	local Info
}

var _ pkgif.NetworkBehaviour[HandlerEvent, Event] = (*PeriodicIdentifyBehaviour)(nil)

// NewBehaviour 创建编排器
func NewBehaviour(cfg BehaviourConfig) (*PeriodicIdentifyBehaviour, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	cache, err := lru.New[types.PeerID, RemoteInfo](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("identify: create cache: %w", err)
	}
	b := &PeriodicIdentifyBehaviour{
		protocol: NewProtocol(cfg.MaxMessageSize, cfg.Timeout),
		cfg:      cfg,
		queue:    behaviour.NewQueue[pkgif.BehaviourAction[Event]](),
		cache:    cache,
		local:    cfg.Local,
	}
	b.handlers = behaviour.NewHandlerSet[struct{}, HandlerEvent](b.newHandler)
	return b, nil
}

func (b *PeriodicIdentifyBehaviour) newHandler(_ types.PeerID, point types.ConnectedPoint) pkgif.ProtocolsHandler[struct{}, HandlerEvent] {
	return NewPeriodicIdentification(b.protocol, b.LocalInfo, point.RemoteAddr(), b.cfg.Handler)
}

// SetWaker 定时器到期或应答完成时唤醒驱动方
func (b *PeriodicIdentifyBehaviour) SetWaker(w async.Waker) {
	b.handlers.SetWaker(w)
}

// LocalInfo 返回本端信息的副本
func (b *PeriodicIdentifyBehaviour) LocalInfo() Info {
	b.mu.RLock()
	defer b.mu.RUnlock()
	info := b.local
	info.PublicKey = slices.Clone(info.PublicKey)
	info.ListenAddrs = slices.Clone(info.ListenAddrs)
	info.Protocols = slices.Clone(info.Protocols)
	return info
}

// SetListenAddrs 更新宣告的监听地址
func (b *PeriodicIdentifyBehaviour) SetListenAddrs(addrs []types.Multiaddr) {
	b.mu.Lock()
	b.local.ListenAddrs = slices.Clone(addrs)
	b.mu.Unlock()
}

// SetProtocols 更新宣告的协议列表
func (b *PeriodicIdentifyBehaviour) SetProtocols(protocols []string) {
	b.mu.Lock()
	b.local.Protocols = slices.Clone(protocols)
	b.mu.Unlock()
}

// Info 返回节点最近一次成功取得的信息
func (b *PeriodicIdentifyBehaviour) Info(peer types.PeerID) (RemoteInfo, bool) {
	return b.cache.Get(peer)
}

// Peers 缓存中的节点
func (b *PeriodicIdentifyBehaviour) Peers() []types.PeerID {
	return b.cache.Keys()
}

// ============================================================================
//                              NetworkBehaviour 实现
// ============================================================================

// InjectConnected 为新连接创建 Handler
func (b *PeriodicIdentifyBehaviour) InjectConnected(peer types.PeerID, point types.ConnectedPoint) {
	b.handlers.Add(peer, point)
	logger.Debug("连接加入身份交换", "peer", peer.ShortString(), "point", point)
}

// InjectDisconnected 移除连接的 Handler
func (b *PeriodicIdentifyBehaviour) InjectDisconnected(peer types.PeerID, point types.ConnectedPoint) {
	b.handlers.Remove(peer, point.ID)
}

// InjectNodeEvent 把 Handler 事件转换为排队的 Behaviour 事件
//
// 每种已知事件都显式处理；未知类型只记录日志后忽略，
// 新增 Handler 事件不会影响这里的已有逻辑。
func (b *PeriodicIdentifyBehaviour) InjectNodeEvent(peer types.PeerID, ev HandlerEvent) {
	switch e := ev.(type) {
	case Identified:
		b.cache.Add(peer, e.Remote)
		b.queue.Push(pkgif.GenerateEvent[Event]{Event: Event{
			Kind:         EventIdentified,
			Peer:         peer,
			Info:         e.Remote.Info,
			ObservedAddr: e.Remote.ObservedAddr,
		}})
	case IdentificationError:
		b.queue.Push(pkgif.GenerateEvent[Event]{Event: Event{
			Kind: EventError,
			Peer: peer,
			Err:  e.Err,
		}})
	default:
		logger.Debug("忽略未处理的 Handler 事件", "peer", peer.ShortString(), "type", typeName(ev))
	}
}

// ListenProtocol 实现 NetworkBehaviour
func (b *PeriodicIdentifyBehaviour) ListenProtocol(peer types.PeerID, conn types.ConnectionID) pkgif.SubstreamInbound {
	return b.handlers.ListenProtocol(peer, conn)
}

// InjectFullyNegotiatedInbound 实现 NetworkBehaviour
func (b *PeriodicIdentifyBehaviour) InjectFullyNegotiatedInbound(peer types.PeerID, conn types.ConnectionID, out any) {
	if err := b.handlers.InjectFullyNegotiatedInbound(peer, conn, out); err != nil {
		logger.Debug("入站子流没有对应连接", "peer", peer.ShortString(), "conn", conn)
		if c, ok := out.(interface{ Close() error }); ok {
			_ = c.Close()
		}
	}
}

// InjectFullyNegotiatedOutbound 实现 NetworkBehaviour
func (b *PeriodicIdentifyBehaviour) InjectFullyNegotiatedOutbound(peer types.PeerID, conn types.ConnectionID, out any, info any) {
	if err := b.handlers.InjectFullyNegotiatedOutbound(peer, conn, out, info); err != nil {
		logger.Debug("出站子流没有对应连接", "peer", peer.ShortString(), "conn", conn)
	}
}

// InjectDialUpgradeError 实现 NetworkBehaviour
func (b *PeriodicIdentifyBehaviour) InjectDialUpgradeError(peer types.PeerID, conn types.ConnectionID, info any, err error) {
	if herr := b.handlers.InjectDialUpgradeError(peer, conn, info, err); herr != nil {
		logger.Debug("出站失败没有对应连接", "peer", peer.ShortString(), "conn", conn, "error", err)
	}
}

// Poll 每次至多返回一个动作
//
// 队列为空时推进各个 Handler，直到产生动作或全部 Pending。
func (b *PeriodicIdentifyBehaviour) Poll() types.Poll[pkgif.BehaviourAction[Event]] {
	for b.queue.Len() == 0 {
		p := b.handlers.Poll()
		if p.IsPending() {
			return types.Pending[pkgif.BehaviourAction[Event]]()
		}
		out := p.Value
		switch ev := out.Event.(type) {
		case pkgif.HandlerCustom[HandlerEvent]:
			b.InjectNodeEvent(out.Peer, ev.Event)
		case pkgif.HandlerOutboundRequest:
			b.queue.Push(pkgif.OpenSubstream{
				Peer:    out.Peer,
				Conn:    out.Conn,
				Upgrade: ev.Upgrade,
				Info:    ev.Info,
			})
		case nil:
			// Handler 已结束
		default:
			logger.Debug("忽略未处理的 Handler 动作", "peer", out.Peer.ShortString(), "type", typeName(out.Event))
		}
	}
	return b.queue.PollPop()
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
