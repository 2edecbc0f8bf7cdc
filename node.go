package p2pcore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-p2pcore/internal/core/identity"
	"github.com/dep2p/go-p2pcore/internal/core/swarm"
	"github.com/dep2p/go-p2pcore/internal/protocol/identify"
	"github.com/dep2p/go-p2pcore/pkg/lib/log"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

var logger = log.Logger("p2pcore")

// ════════════════════════════════════════════════════════════════════════════
//                              节点状态
// ════════════════════════════════════════════════════════════════════════════

// NodeState 节点状态
type NodeState int

const (
	// StateIdle 空闲状态（已创建，未启动）
	StateIdle NodeState = iota

	// StateStarting 启动中（Fx App 启动、开始监听）
	StateStarting

	// StateRunning 运行中
	StateRunning

	// StateStopping 停止中
	StateStopping

	// StateStopped 已停止，不可重新启动
	StateStopped
)

// String 返回状态的字符串表示
func (s NodeState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// 超时配置
const (
	// initializeTimeout Fx App 启动超时
	initializeTimeout = 30 * time.Second

	// shutdownTimeout 关闭超时
	shutdownTimeout = 30 * time.Second
)

// ════════════════════════════════════════════════════════════════════════════
//                              Node
// ════════════════════════════════════════════════════════════════════════════

// Node p2pcore 节点
//
// 聚合 TCP 传输、连接升级、多路复用、周期性身份交换和 Swarm 驱动。
// Start 之后节点在后台驱动 Swarm，把事件投递到 Events 通道。
//
// 使用示例：
//
//	node, err := p2pcore.New(
//	    p2pcore.WithPreset(p2pcore.PresetLocal),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer node.Close()
//
//	if err := node.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	for ev := range node.Events() {
//	    fmt.Println(ev.Kind, ev.Peer)
//	}
type Node struct {
	config *nodeConfig
	app    *fx.App

	// ────────────────────────────────────────────────────────────────────────
	// 组件（Fx 注入）
	// ────────────────────────────────────────────────────────────────────────

	identity *identity.Identity
	swarm    *swarm.Swarm[identify.Event]
	identify *identify.PeriodicIdentifyBehaviour

	// ────────────────────────────────────────────────────────────────────────
	// 运行时
	// ────────────────────────────────────────────────────────────────────────

	events     chan Event
	runCancel  context.CancelFunc
	group      *errgroup.Group
	metricsSrv *http.Server

	mu      sync.Mutex
	state   NodeState
	started bool
	closed  bool

	// external 由对端观测地址推导出的外部地址
	addrMu   sync.RWMutex
	external []types.Multiaddr
}

// New 创建节点
//
// 只装配组件，不监听也不拨号；调用 Start 开始运行。
//
// 示例：
//
//	node, err := p2pcore.New(
//	    p2pcore.WithListenAddrs("/ip4/0.0.0.0/tcp/4001"),
//	    p2pcore.WithKnownPeer(peerID, "/ip4/10.0.0.2/tcp/4001"),
//	)
func New(opts ...Option) (*Node, error) {
	cfg := newNodeConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if cfg.registry == nil && cfg.config.Metrics.Enable {
		cfg.registry = prometheus.NewRegistry()
		cfg.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	node := &Node{
		config: cfg,
		events: make(chan Event, cfg.config.Swarm.EventBuffer),
	}

	var err error
	node.app, err = buildFxApp(cfg, node)
	if err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	return node, nil
}

// Start 快捷启动函数
//
// 等价于 New() + Start()。
func Start(ctx context.Context, opts ...Option) (*Node, error) {
	node, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := node.Start(ctx); err != nil {
		_ = node.Close()
		return nil, fmt.Errorf("start node: %w", err)
	}
	return node, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              基本信息
// ════════════════════════════════════════════════════════════════════════════

// ID 返回节点 ID
func (n *Node) ID() PeerID {
	return n.identity.PeerID()
}

// State 返回节点状态
func (n *Node) State() NodeState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Events 返回事件通道
//
// 通道在节点关闭后被关闭。消费过慢时新事件被丢弃并记录日志。
func (n *Node) Events() <-chan Event {
	return n.events
}

// ListenAddrs 返回实际监听的地址
func (n *Node) ListenAddrs() []Multiaddr {
	return n.swarm.ListenAddrs()
}

// ExternalAddrs 返回由对端观测地址推导出的外部地址
func (n *Node) ExternalAddrs() []Multiaddr {
	n.addrMu.RLock()
	defer n.addrMu.RUnlock()
	return slices.Clone(n.external)
}

// FullAddrs 返回带 /p2p/<id> 后缀的监听地址，可直接分享给其他节点
func (n *Node) FullAddrs() []string {
	addrs := n.ListenAddrs()
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String()+"/p2p/"+n.ID().String())
	}
	return out
}

// Peers 返回已连接的节点
func (n *Node) Peers() []PeerID {
	return n.swarm.Peers()
}

// Connections 返回全部活跃连接
func (n *Node) Connections() []ConnInfo {
	return n.swarm.Connections()
}

// PeerInfo 返回对端最近一次宣告的信息
func (n *Node) PeerInfo(peer PeerID) (PeerInfo, bool) {
	return n.identify.Info(peer)
}

// IdentifiedPeers 返回已取得身份信息的节点
func (n *Node) IdentifiedPeers() []PeerID {
	return n.identify.Peers()
}

// ════════════════════════════════════════════════════════════════════════════
//                              连接
// ════════════════════════════════════════════════════════════════════════════

// Dial 拨号一个地址
//
// 结果通过 Events 以 EventConnectionEstablished 或 EventDialError 报告。
func (n *Node) Dial(addr string) error {
	if err := n.checkRunning(); err != nil {
		return err
	}
	a, err := types.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	return n.swarm.Dial(a)
}

// Connect 记录节点地址并拨号，依次尝试各个地址直到一个成功
func (n *Node) Connect(peer PeerID, addrs ...string) error {
	if err := n.checkRunning(); err != nil {
		return err
	}
	ms := types.StringsToMultiaddrs(addrs)
	if len(ms) != len(addrs) {
		return fmt.Errorf("%w: invalid address in %v", ErrInvalidOption, addrs)
	}
	n.swarm.AddPeerAddrs(peer, ms...)
	return n.swarm.DialPeer(peer)
}

// Disconnect 断开到节点的所有连接
func (n *Node) Disconnect(peer PeerID) error {
	if err := n.checkRunning(); err != nil {
		return err
	}
	return n.swarm.DisconnectPeer(peer)
}

func (n *Node) checkRunning() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch {
	case n.closed:
		return ErrNodeClosed
	case !n.started:
		return ErrNotStarted
	}
	return nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期
// ════════════════════════════════════════════════════════════════════════════

// Start 启动节点
//
// 执行流程：
//  1. 启动 Fx 应用
//  2. 在配置的地址上监听，并把监听地址交给身份交换
//  3. 启动指标导出（如启用）
//  4. 在后台驱动 Swarm
//  5. 拨号已知节点
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return ErrNodeClosed
	}
	if n.started {
		return ErrAlreadyStarted
	}

	n.state = StateStarting
	logger.Info("正在启动节点", "peer", n.ID().ShortString())

	initCtx, initCancel := context.WithTimeout(ctx, initializeTimeout)
	defer initCancel()
	if err := n.app.Start(initCtx); err != nil {
		n.state = StateIdle
		logger.Error("节点初始化失败", "error", err)
		return fmt.Errorf("initialize failed: %w", err)
	}

	cfg := n.config.config
	for _, s := range cfg.Transport.ListenAddrs {
		addr, err := types.NewMultiaddr(s)
		if err != nil {
			return n.abortStart(fmt.Errorf("listen address %q: %w", s, err))
		}
		bound, err := n.swarm.Listen(addr)
		if err != nil {
			return n.abortStart(fmt.Errorf("listen on %s: %w", s, err))
		}
		logger.Info("开始监听", "addr", bound)
	}
	n.identify.SetListenAddrs(n.swarm.ListenAddrs())

	if cfg.Metrics.Enable {
		if err := n.startMetricsServer(cfg.Metrics.Addr); err != nil {
			return n.abortStart(err)
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	n.runCancel = cancel
	n.group, runCtx = errgroup.WithContext(runCtx)
	n.group.Go(func() error {
		return n.swarm.Run(runCtx, n.handleEvent)
	})

	for _, kp := range cfg.KnownPeers {
		peer, err := types.ParsePeerID(kp.PeerID)
		if err != nil {
			continue
		}
		if err := n.swarm.DialPeer(peer); err != nil {
			logger.Warn("拨号已知节点失败", "peer", peer.ShortString(), "error", err)
		}
	}

	n.started = true
	n.state = StateRunning
	logger.Info("节点已启动", "peer", n.ID().String(), "listen", types.MultiaddrsToStrings(n.swarm.ListenAddrs()))
	return nil
}

// abortStart 启动中途失败时停止 Fx 应用
func (n *Node) abortStart(err error) error {
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := n.app.Stop(stopCtx); serr != nil {
		logger.Warn("停止 Fx 应用失败", "error", serr)
	}
	n.state = StateStopped
	n.closed = true
	close(n.events)
	logger.Error("节点启动失败", "error", err)
	return err
}

// startMetricsServer 启动 Prometheus HTTP 导出
func (n *Node) startMetricsServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(n.config.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen on %s: %w", addr, err)
	}
	n.metricsSrv = srv
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("指标服务退出", "error", err)
		}
	}()
	logger.Info("指标导出已启动", "addr", ln.Addr().String())
	return nil
}

// Close 关闭节点并释放所有资源
//
// 关闭后 Events 通道被关闭，节点不可重新启动。
func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}
	logger.Info("正在关闭节点")

	var err error
	if n.started {
		n.state = StateStopping
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if n.metricsSrv != nil {
			err = multierr.Append(err, n.metricsSrv.Shutdown(ctx))
		}
		// Swarm 在 OnStop 中关闭，Run 随之返回
		if serr := n.app.Stop(ctx); serr != nil {
			err = multierr.Append(err, fmt.Errorf("stop fx app: %w", serr))
		}
		n.runCancel()
		if werr := n.group.Wait(); werr != nil && !errors.Is(werr, context.Canceled) {
			err = multierr.Append(err, werr)
		}
	}

	close(n.events)
	n.state = StateStopped
	n.started = false
	n.closed = true
	logger.Info("节点已关闭")
	return err
}

// ════════════════════════════════════════════════════════════════════════════
//                              事件处理
// ════════════════════════════════════════════════════════════════════════════

// handleEvent 处理一个 Swarm 事件并投递给 Events
func (n *Node) handleEvent(ev Event) {
	switch ev.Kind {
	case EventNewListenAddr, EventListenerClosed:
		n.identify.SetListenAddrs(n.swarm.ListenAddrs())

	case EventBehaviour:
		n.handleIdentifyEvent(ev.Behaviour)

	case EventDialError, EventIncomingConnectionError:
		logger.Debug("连接失败", "kind", ev.Kind, "peer", ev.Peer.ShortString(), "addr", ev.Addr, "error", ev.Err)
	}

	select {
	case n.events <- ev:
	default:
		logger.Debug("事件通道已满，丢弃事件", "kind", ev.Kind)
	}
}

// handleIdentifyEvent 根据对端观测到的地址更新外部地址
func (n *Node) handleIdentifyEvent(ev identify.Event) {
	if ev.Kind != identify.EventIdentified {
		logger.Debug("身份交换失败", "peer", ev.Peer.ShortString(), "error", ev.Err)
		return
	}
	logger.Info("已识别节点",
		"peer", ev.Peer.ShortString(),
		"agent", ev.Info.AgentVersion,
		"observed", ev.ObservedAddr)

	derived := n.swarm.ExternalAddrs(ev.ObservedAddr)
	if len(derived) == 0 {
		return
	}

	n.addrMu.Lock()
	defer n.addrMu.Unlock()
	for _, a := range derived {
		if !slices.ContainsFunc(n.external, a.Equal) {
			n.external = append(n.external, a)
			logger.Info("发现外部地址", "addr", a)
		}
	}
}
