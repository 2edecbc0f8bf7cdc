package identify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-p2pcore/internal/core/upgrade"
	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
	"github.com/dep2p/go-p2pcore/pkg/lib/async"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

// ============================================================================
//                              Handler 事件
// ============================================================================

// HandlerEvent PeriodicIdentification 向外发出的事件
//
// 取值为 Identified 或 IdentificationError。
type HandlerEvent interface {
	isIdentifyEvent()
}

// Identified 成功取得对端信息
type Identified struct {
	Remote RemoteInfo
}

// IdentificationError 出站身份请求失败
type IdentificationError struct {
	Err error
}

func (Identified) isIdentifyEvent()          {}
func (IdentificationError) isIdentifyEvent() {}

// ============================================================================
//                              配置
// ============================================================================

// HandlerConfig 定时参数
type HandlerConfig struct {
	// InitialDelay 连接建立后首次请求的延迟
	InitialDelay time.Duration

	// Interval 成功后下一次请求的间隔
	Interval time.Duration

	// ErrorInterval 失败后下一次请求的间隔
	ErrorInterval time.Duration

	// Clock 时钟，测试中使用 clock.NewMock()
	Clock clock.Clock
}

// DefaultHandlerConfig 默认定时参数
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		InitialDelay:  500 * time.Millisecond,
		Interval:      5 * time.Minute,
		ErrorInterval: time.Hour,
		Clock:         clock.New(),
	}
}

// ============================================================================
//                              PeriodicIdentification
// ============================================================================

type handlerState int

const (
	// stateWaiting 等待定时器
	stateWaiting handlerState = iota
	// stateRequested 已请求打开出站子流，等待结果
	stateRequested
	// stateDone 已关闭
	stateDone
)

// PeriodicIdentification 单条连接上的周期性身份交换
//
// 状态在 waiting 与 requested 之间往复，Shutdown 后进入 done。
// 除 SetWaker 外所有方法只由一个驱动方调用。
type PeriodicIdentification struct {
	cfg      HandlerConfig
	protocol *Protocol
	local    func() Info
	observed types.Multiaddr

	ctx    context.Context
	cancel context.CancelFunc

	state  handlerState
	timer  *clock.Timer
	gen    atomic.Uint64
	fired  atomic.Bool
	events []HandlerEvent
	sends  []*async.Future[struct{}]

	wmu   sync.Mutex
	waker async.Waker
}

var (
	_ pkgif.ProtocolsHandler[struct{}, HandlerEvent] = (*PeriodicIdentification)(nil)
	_ pkgif.WakerSetter                              = (*PeriodicIdentification)(nil)
)

// NewPeriodicIdentification 创建 Handler 并启动首个定时器
//
// local 在每次应答时调用以取得本端最新信息；observed 是这条连接上
// 对端的地址，随应答发回给对端。
func NewPeriodicIdentification(protocol *Protocol, local func() Info, observed types.Multiaddr, cfg HandlerConfig) *PeriodicIdentification {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &PeriodicIdentification{
		cfg:      cfg,
		protocol: protocol,
		local:    local,
		observed: observed,
		ctx:      ctx,
		cancel:   cancel,
	}
	h.schedule(cfg.InitialDelay)
	return h
}

// SetWaker 实现 WakerSetter
func (h *PeriodicIdentification) SetWaker(w async.Waker) {
	h.wmu.Lock()
	h.waker = w
	h.wmu.Unlock()
}

func (h *PeriodicIdentification) wake() {
	h.wmu.Lock()
	w := h.waker
	h.wmu.Unlock()
	if w != nil {
		w.Wake()
	}
}

// schedule 在 d 之后允许下一次请求
func (h *PeriodicIdentification) schedule(d time.Duration) {
	if h.timer != nil {
		h.timer.Stop()
	}
	g := h.gen.Add(1)
	h.fired.Store(false)
	h.state = stateWaiting
	h.timer = h.cfg.Clock.AfterFunc(d, func() {
		if h.gen.Load() == g {
			h.fired.Store(true)
			h.wake()
		}
	})
}

// ListenProtocol 实现 ProtocolsHandler
func (h *PeriodicIdentification) ListenProtocol() pkgif.SubstreamInbound {
	return upgrade.EraseInbound[pkgif.Substream, *Sender](h.protocol)
}

// InjectFullyNegotiatedInbound 在后台应答对端的身份请求
func (h *PeriodicIdentification) InjectFullyNegotiatedInbound(out any) {
	sender, ok := out.(*Sender)
	if !ok {
		logger.Warn("入站输出类型不匹配", "type", typeName(out))
		return
	}
	if h.state == stateDone {
		_ = sender.Close()
		return
	}
	info := h.local()
	fut := async.Go(h.ctx, async.WakerFunc(h.wake), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, sender.Send(ctx, info, h.observed)
	})
	h.sends = append(h.sends, fut)
}

// InjectFullyNegotiatedOutbound 取得对端信息，安排下一次请求
func (h *PeriodicIdentification) InjectFullyNegotiatedOutbound(out any, _ any) {
	remote, ok := out.(RemoteInfo)
	if !ok {
		logger.Warn("出站输出类型不匹配", "type", typeName(out))
		return
	}
	if h.state == stateDone {
		return
	}
	h.events = append(h.events, Identified{Remote: remote})
	h.schedule(h.cfg.Interval)
}

// InjectEvent 没有来自 Behaviour 的事件
func (h *PeriodicIdentification) InjectEvent(struct{}) {}

// InjectDialUpgradeError 出站请求失败，按错误间隔重试
func (h *PeriodicIdentification) InjectDialUpgradeError(_ any, err error) {
	if h.state == stateDone {
		return
	}
	h.events = append(h.events, IdentificationError{Err: err})
	h.schedule(h.cfg.ErrorInterval)
}

// InjectInboundClosed 实现 ProtocolsHandler
func (h *PeriodicIdentification) InjectInboundClosed() {}

// Shutdown 停止定时器并取消进行中的应答
func (h *PeriodicIdentification) Shutdown() {
	if h.state == stateDone {
		return
	}
	h.state = stateDone
	h.gen.Add(1)
	if h.timer != nil {
		h.timer.Stop()
	}
	h.cancel()
}

// Poll 实现 ProtocolsHandler
func (h *PeriodicIdentification) Poll() (types.Poll[pkgif.HandlerEvent[HandlerEvent]], error) {
	if len(h.events) > 0 {
		ev := h.events[0]
		h.events = h.events[1:]
		return types.Ready[pkgif.HandlerEvent[HandlerEvent]](pkgif.HandlerCustom[HandlerEvent]{Event: ev}), nil
	}

	h.reapSends()

	switch h.state {
	case stateDone:
		if len(h.sends) == 0 {
			return types.Ended[pkgif.HandlerEvent[HandlerEvent]](), nil
		}
	case stateWaiting:
		if h.fired.Load() {
			h.state = stateRequested
			return types.Ready[pkgif.HandlerEvent[HandlerEvent]](pkgif.HandlerOutboundRequest{
				Upgrade: upgrade.EraseOutbound[pkgif.Substream, RemoteInfo](h.protocol),
			}), nil
		}
	}
	return types.Pending[pkgif.HandlerEvent[HandlerEvent]](), nil
}

// reapSends 回收已完成的应答
func (h *PeriodicIdentification) reapSends() {
	kept := h.sends[:0]
	for _, f := range h.sends {
		select {
		case <-f.Done():
			if _, err := f.Poll(); err != nil {
				logger.Debug("身份应答失败", "error", err)
			}
		default:
			kept = append(kept, f)
		}
	}
	clear(h.sends[len(kept):])
	h.sends = kept
}
