package swarm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-p2pcore/internal/core/behaviour"
	"github.com/dep2p/go-p2pcore/internal/core/upgrader"
	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
	"github.com/dep2p/go-p2pcore/pkg/lib/async"
	"github.com/dep2p/go-p2pcore/pkg/lib/log"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

var logger = log.Logger("core/swarm")

// ============================================================================
//                              Behaviour
// ============================================================================

// Behaviour Swarm 驱动的编排器
//
// 任何 pkgif.NetworkBehaviour[HOut, Out] 都满足该接口；
// 实现 pkgif.WakerSetter 时，Swarm 把自己的唤醒信号交给它。
type Behaviour[Out any] interface {
	InjectConnected(peer types.PeerID, point types.ConnectedPoint)
	InjectDisconnected(peer types.PeerID, point types.ConnectedPoint)
	ListenProtocol(peer types.PeerID, conn types.ConnectionID) pkgif.SubstreamInbound
	InjectFullyNegotiatedInbound(peer types.PeerID, conn types.ConnectionID, out any)
	InjectFullyNegotiatedOutbound(peer types.PeerID, conn types.ConnectionID, out any, info any)
	InjectDialUpgradeError(peer types.PeerID, conn types.ConnectionID, info any, err error)
	Poll() types.Poll[pkgif.BehaviourAction[Out]]
}

// ============================================================================
//                              Event
// ============================================================================

// EventKind Swarm 事件类型
type EventKind int

const (
	// EventBehaviour Behaviour 产生的事件（GenerateEvent）
	EventBehaviour EventKind = iota
	// EventConnectionEstablished 连接升级完成
	EventConnectionEstablished
	// EventConnectionClosed 连接关闭
	EventConnectionClosed
	// EventIncomingConnectionError 入站连接升级失败
	EventIncomingConnectionError
	// EventDialError 拨号或出站升级失败
	EventDialError
	// EventNewListenAddr 开始监听
	EventNewListenAddr
	// EventListenerClosed 监听结束
	EventListenerClosed
)

// String 返回事件类型名称
func (k EventKind) String() string {
	switch k {
	case EventBehaviour:
		return "behaviour"
	case EventConnectionEstablished:
		return "connection-established"
	case EventConnectionClosed:
		return "connection-closed"
	case EventIncomingConnectionError:
		return "incoming-connection-error"
	case EventDialError:
		return "dial-error"
	case EventNewListenAddr:
		return "new-listen-addr"
	case EventListenerClosed:
		return "listener-closed"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Event Swarm 事件
//
// 字段是否有效取决于 Kind：Behaviour 只在 EventBehaviour 时有效，
// Point 在连接相关事件中有效，Addr 在监听和拨号事件中有效。
type Event[Out any] struct {
	Kind      EventKind
	Peer      types.PeerID
	Point     types.ConnectedPoint
	Addr      types.Multiaddr
	Err       error
	Behaviour Out
}

// ============================================================================
//                              Swarm
// ============================================================================

// Swarm 连接群驱动
//
// 持有监听器、进行中的连接升级、活跃连接和 Behaviour。
// Poll 推进全部状态一次；所有方法都可以并发调用。
type Swarm[Out any] struct {
	local     types.PeerID
	transport pkgif.Transport[*upgrader.UpgradedConn]
	behaviour Behaviour[Out]
	cfg       *Config
	metrics   *Metrics

	signal *async.Signal
	ctx    context.Context
	cancel context.CancelFunc

	// teardown 在后台释放连接，Close 等待其完成
	teardown errgroup.Group

	mu          sync.Mutex
	listeners   []*listener
	pending     map[uint64]*pendingConn
	nextPending uint64
	conns       map[types.ConnectionID]*conn
	nextConn    types.ConnectionID
	addrBook    map[types.PeerID][]types.Multiaddr
	events      *behaviour.Queue[Event[Out]]
	closed      bool
}

// New 创建 Swarm
func New[Out any](local types.PeerID, tpt pkgif.Transport[*upgrader.UpgradedConn], b Behaviour[Out], opts ...Option) (*Swarm[Out], error) {
	if local.IsEmpty() {
		return nil, fmt.Errorf("local peer cannot be empty")
	}
	if tpt == nil || b == nil {
		return nil, ErrInvalidConfig
	}

	st := settings{config: DefaultConfig()}
	for _, opt := range opts {
		if err := opt(&st); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Swarm[Out]{
		local:     local,
		transport: tpt,
		behaviour: b,
		cfg:       st.config,
		metrics:   NewMetrics(st.registerer),
		signal:    async.NewSignal(),
		ctx:       ctx,
		cancel:    cancel,
		pending:   make(map[uint64]*pendingConn),
		conns:     make(map[types.ConnectionID]*conn),
		addrBook:  make(map[types.PeerID][]types.Multiaddr),
		events:    behaviour.NewQueue[Event[Out]](),
	}
	for peer, addrs := range st.peers {
		s.addrBook[peer] = append([]types.Multiaddr(nil), addrs...)
	}
	if ws, ok := b.(pkgif.WakerSetter); ok {
		ws.SetWaker(s.signal)
	}
	return s, nil
}

// LocalPeer 返回本地节点 ID
func (s *Swarm[Out]) LocalPeer() types.PeerID {
	return s.local
}

// Behaviour 返回被驱动的编排器
func (s *Swarm[Out]) Behaviour() Behaviour[Out] {
	return s.behaviour
}

// Waker 返回 Swarm 的唤醒信号，外部状态变化后调用 Wake 让 Next 立即轮询
func (s *Swarm[Out]) Waker() async.Waker {
	return s.signal
}

// ============================================================================
//                              轮询
// ============================================================================

// Poll 推进监听、升级、连接和 Behaviour 一次
//
// 有排队事件时立即返回其中最早的一个；Close 之后排队事件取完返回 Ended。
func (s *Swarm[Out]) Poll() types.Poll[Event[Out]] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev := s.events.PollPop(); ev.IsReady() {
		return ev
	}
	if s.closed {
		return types.Ended[Event[Out]]()
	}

	s.pollListenersLocked()
	s.pollPendingLocked()
	s.pollConnsLocked()
	s.pollBehaviourLocked()

	return s.events.PollPop()
}

// Next 阻塞直到下一个事件
//
// 等待唤醒信号，同时按 PollInterval 兜底轮询。Swarm 关闭后返回 ErrSwarmClosed。
func (s *Swarm[Out]) Next(ctx context.Context) (Event[Out], error) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		p := s.Poll()
		switch {
		case p.IsReady():
			return p.Value, nil
		case p.IsEnded():
			var zero Event[Out]
			return zero, ErrSwarmClosed
		}
		select {
		case <-s.signal.C():
		case <-ticker.C:
		case <-ctx.Done():
			var zero Event[Out]
			return zero, ctx.Err()
		}
	}
}

// Run 持续取事件交给 fn，直到 ctx 结束或 Swarm 关闭
//
// Swarm 关闭时返回 nil。
func (s *Swarm[Out]) Run(ctx context.Context, fn func(Event[Out])) error {
	for {
		ev, err := s.Next(ctx)
		if errors.Is(err, ErrSwarmClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		fn(ev)
	}
}

// pollBehaviourLocked 执行 Behaviour 产生的全部动作
func (s *Swarm[Out]) pollBehaviourLocked() {
	for {
		p := s.behaviour.Poll()
		if !p.IsReady() {
			return
		}
		switch a := p.Value.(type) {
		case pkgif.GenerateEvent[Out]:
			s.events.Push(Event[Out]{Kind: EventBehaviour, Behaviour: a.Event})

		case pkgif.DialAddress:
			if err := s.dialLocked(a.Addr, types.EmptyPeerID, nil, nil); err != nil {
				s.events.Push(Event[Out]{Kind: EventDialError, Addr: a.Addr, Err: err})
			}

		case pkgif.DialPeer:
			if s.isConnectedLocked(a.Peer) {
				logger.Debug("已连接，忽略拨号请求", "peer", a.Peer.ShortString())
				continue
			}
			if err := s.dialKnownPeerLocked(a.Peer); err != nil {
				s.events.Push(Event[Out]{Kind: EventDialError, Peer: a.Peer, Err: err})
			}

		case pkgif.OpenSubstream:
			s.openSubstreamLocked(a)

		default:
			logger.Warn("忽略未知的 Behaviour 动作", "type", fmt.Sprintf("%T", a))
		}
	}
}

// ============================================================================
//                              地址
// ============================================================================

// ExternalAddrs 根据对端观测到的地址推导本端可被拨号的外部地址
func (s *Swarm[Out]) ExternalAddrs(observed types.Multiaddr) []types.Multiaddr {
	if observed == nil {
		return nil
	}
	listen := s.ListenAddrs()

	seen := make(map[string]struct{}, len(listen))
	var out []types.Multiaddr
	for _, l := range listen {
		a, ok := s.transport.NatTraversal(l, observed)
		if !ok {
			continue
		}
		if _, dup := seen[a.String()]; dup {
			continue
		}
		seen[a.String()] = struct{}{}
		out = append(out, a)
	}
	return out
}

// AddPeerAddrs 记录节点地址，供 DialPeer 使用
func (s *Swarm[Out]) AddPeerAddrs(peer types.PeerID, addrs ...types.Multiaddr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addrBook[peer] = append(s.addrBook[peer], addrs...)
}

// PeerAddrs 返回记录的节点地址
func (s *Swarm[Out]) PeerAddrs(peer types.PeerID) []types.Multiaddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Multiaddr(nil), s.addrBook[peer]...)
}

// ============================================================================
//                              关闭
// ============================================================================

// Close 关闭所有监听器和连接
//
// 进行中的升级被取消，Behaviour 对每条连接收到 InjectDisconnected。
// 关闭后 Poll 先交付剩余事件，之后返回 Ended。
func (s *Swarm[Out]) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true

	var err error
	for _, l := range s.listeners {
		l.unsub()
		err = multierr.Append(err, l.stream.Close())
	}
	s.listeners = nil

	for key, p := range s.pending {
		p.abort()
		delete(s.pending, key)
	}
	for _, c := range s.conns {
		s.removeConnLocked(c, ErrSwarmClosed)
	}
	s.cancel()
	s.mu.Unlock()

	s.signal.Wake()
	err = multierr.Append(err, s.teardown.Wait())
	logger.Info("Swarm 已关闭")
	return err
}
