package interfaces

import (
	"github.com/dep2p/go-p2pcore/pkg/types"
)

// ============================================================================
//                              BehaviourAction
// ============================================================================

// BehaviourAction Behaviour 轮询产生的动作
//
// 取值为 GenerateEvent、DialAddress、DialPeer 或 OpenSubstream。
type BehaviourAction[Out any] interface {
	isBehaviourAction()
}

// GenerateEvent 交给应用的事件
type GenerateEvent[Out any] struct {
	Event Out
}

// DialAddress 请求拨号某个地址
type DialAddress struct {
	Addr types.Multiaddr
}

// DialPeer 请求连接某个节点（地址由驱动方解析）
type DialPeer struct {
	Peer types.PeerID
}

// OpenSubstream 请求在指定连接上打开出站子流
type OpenSubstream struct {
	Peer    types.PeerID
	Conn    types.ConnectionID
	Upgrade SubstreamOutbound
	Info    any
}

func (GenerateEvent[Out]) isBehaviourAction() {}
func (DialAddress) isBehaviourAction()        {}
func (DialPeer) isBehaviourAction()           {}
func (OpenSubstream) isBehaviourAction()      {}

// ============================================================================
//                              NetworkBehaviour
// ============================================================================

// NetworkBehaviour 节点维度的编排器
//
// 为每条活跃连接持有一个 ProtocolsHandler，转发连接与子流生命周期通知，
// 汇集 Handler 的输出。状态只由驱动方的轮询/注入调用序列修改。
type NetworkBehaviour[HOut, Out any] interface {
	// InjectConnected 新连接建立
	InjectConnected(peer types.PeerID, point types.ConnectedPoint)

	// InjectDisconnected 连接断开
	InjectDisconnected(peer types.PeerID, point types.ConnectedPoint)

	// InjectNodeEvent 处理某个节点的 Handler 产生的事件
	InjectNodeEvent(peer types.PeerID, ev HOut)

	// ListenProtocol 指定连接上入站子流使用的升级
	ListenProtocol(peer types.PeerID, conn types.ConnectionID) SubstreamInbound

	// InjectFullyNegotiatedInbound 把已升级的入站子流交给对应 Handler
	InjectFullyNegotiatedInbound(peer types.PeerID, conn types.ConnectionID, out any)

	// InjectFullyNegotiatedOutbound 把已升级的出站子流交给对应 Handler
	InjectFullyNegotiatedOutbound(peer types.PeerID, conn types.ConnectionID, out any, info any)

	// InjectDialUpgradeError 出站子流失败
	InjectDialUpgradeError(peer types.PeerID, conn types.ConnectionID, info any, err error)

	// Poll 每次至多取出一个排队的动作（先进先出），没有时返回 Pending
	Poll() types.Poll[BehaviourAction[Out]]
}
