package interfaces

import (
	"context"

	"github.com/dep2p/go-p2pcore/pkg/lib/async"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

// ============================================================================
//                              PendingUpgrade
// ============================================================================

// PendingUpgrade 尚未完成的连接升级
//
// 已接受或已拨出的连接上发生的失败通过 Poll 的错误返回，而不是 panic。
// *async.Future 实现了该接口。
type PendingUpgrade[O any] interface {
	// Poll 非阻塞地检查结果
	Poll() (types.Poll[O], error)

	// Done 完成（成功、失败或取消）时关闭
	Done() <-chan struct{}

	// Cancel 放弃升级
	Cancel()
}

// ============================================================================
//                              Listener
// ============================================================================

// ListenerEvent 一个入站连接
type ListenerEvent[O any] struct {
	// Upgrade 入站连接的升级
	Upgrade PendingUpgrade[O]

	// ListenAddr 接受该连接的本地监听地址
	ListenAddr types.Multiaddr

	// RemoteAddr 产生该连接的对端地址
	RemoteAddr types.Multiaddr
}

// ListenerStream 单次遍历的入站连接序列
//
// Poll 在没有就绪连接时返回 Pending；监听关闭或底层耗尽后返回 Ended，
// 之后持续返回 Ended。Poll 从不返回错误。
type ListenerStream[O any] interface {
	Poll() types.Poll[ListenerEvent[O]]

	// Subscribe 注册唤醒器，有新连接或序列结束时调用
	Subscribe(w async.Waker) (cancel func())

	// Addr 实际绑定的地址
	Addr() types.Multiaddr

	// Close 停止监听
	Close() error
}

// ============================================================================
//                              Transport
// ============================================================================

// Transport 传输层
//
// Listen/Dial 的建立失败（地址无法解析、端口被占用）同步返回，
// 错误中携带原地址，调用方可以换一个传输重试。
type Transport[O any] interface {
	// Listen 在 addr 上监听，返回入站序列和实际绑定地址
	Listen(addr types.Multiaddr) (ListenerStream[O], types.Multiaddr, error)

	// Dial 向 addr 发起一次出站尝试
	Dial(ctx context.Context, addr types.Multiaddr) (PendingUpgrade[O], error)

	// NatTraversal 把对端观测到的地址转换为可拨号的外部地址
	//
	// 纯函数；无法推导时返回 false。
	NatTraversal(server, observed types.Multiaddr) (types.Multiaddr, bool)
}
