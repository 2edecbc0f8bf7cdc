package interfaces

import (
	"github.com/dep2p/go-p2pcore/pkg/lib/async"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

// ============================================================================
//                              HandlerEvent
// ============================================================================

// HandlerEvent Handler 轮询产生的动作
//
// 取值为 HandlerCustom、HandlerOutboundRequest 或 HandlerShutdown。
type HandlerEvent[Out any] interface {
	isHandlerEvent()
}

// HandlerCustom 向外发出的协议事件
type HandlerCustom[Out any] struct {
	Event Out
}

// HandlerOutboundRequest 请求打开一个新的出站子流
//
// 子流打开并升级完成后，Info 原样随 InjectFullyNegotiatedOutbound
// 或 InjectDialUpgradeError 传回。
type HandlerOutboundRequest struct {
	Upgrade SubstreamOutbound
	Info    any
}

// HandlerShutdown Handler 已完成，连接可以关闭
type HandlerShutdown struct{}

func (HandlerCustom[Out]) isHandlerEvent()    {}
func (HandlerOutboundRequest) isHandlerEvent() {}
func (HandlerShutdown) isHandlerEvent()        {}

// ============================================================================
//                              ProtocolsHandler
// ============================================================================

// ProtocolsHandler 每连接、每协议族的状态机
//
// Handler 只知道自己绑定的那一条连接，没有跨节点视图。
// 同一时间只有一个驱动方调用它的方法，内部不做同步。
type ProtocolsHandler[In, Out any] interface {
	// ListenProtocol 入站子流使用的升级
	ListenProtocol() SubstreamInbound

	// InjectFullyNegotiatedInbound 注入已升级的入站子流输出
	InjectFullyNegotiatedInbound(out any)

	// InjectFullyNegotiatedOutbound 注入已升级的出站子流输出，info 与请求对应
	InjectFullyNegotiatedOutbound(out any, info any)

	// InjectEvent 注入来自 Behaviour 的事件
	InjectEvent(ev In)

	// InjectDialUpgradeError 出站子流打开或升级失败
	InjectDialUpgradeError(info any, err error)

	// InjectInboundClosed 连接不会再产生入站子流
	InjectInboundClosed()

	// Shutdown 请求 Handler 结束
	Shutdown()

	// Poll 推进状态机
	//
	// 从不阻塞；没有待处理工作时返回 Pending。Shutdown 完成后返回 Ended。
	// 返回的错误对这条连接是致命的。
	Poll() (types.Poll[HandlerEvent[Out]], error)
}

// WakerSetter 可选接口：状态机内部定时器到期时主动唤醒驱动方
type WakerSetter interface {
	SetWaker(w async.Waker)
}
