package interfaces

import (
	"github.com/dep2p/go-p2pcore/pkg/lib/async"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

// ============================================================================
//                              Shutdown 模式
// ============================================================================

// Shutdown 关闭模式
type Shutdown int

const (
	// ShutdownRead 只关闭读方向
	ShutdownRead Shutdown = iota
	// ShutdownWrite 只关闭写方向（半关闭，对端读到 EOF）
	ShutdownWrite
	// ShutdownAll 关闭双向
	ShutdownAll
)

// String 返回模式字符串
func (s Shutdown) String() string {
	switch s {
	case ShutdownRead:
		return "read"
	case ShutdownWrite:
		return "write"
	case ShutdownAll:
		return "all"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              StreamMuxer 接口
// ============================================================================

// StreamMuxer 流多路复用器
//
// StreamMuxer 独占一条物理连接，把它拆分为多个可独立读写的逻辑子流。
// 所有方法都针对共享（非独占）引用定义：多个子流驱动方可以同时调用，
// 任何需要的互斥都由实现内部完成。
//
// 每个可挂起的操作都返回 types.Poll：
//   - Pending：尚未就绪，状态变化时会唤醒通过 Subscribe 注册的 Waker
//   - Ready：完成，Value 有效
//   - Ended：序列结束（例如对端有序关闭连接），不是错误
//
// 连接级错误是粘滞的：一旦出现，之后的每个操作都返回同一个错误。
type StreamMuxer interface {
	// PollInbound 推进下一个入站子流的接受
	//
	// 入站子流按对端打开的顺序交付；连接有序关闭后持续返回 Ended。
	PollInbound() (types.Poll[types.SubstreamID], error)

	// OpenOutbound 发起出站子流打开，立即返回代表该请求的句柄
	OpenOutbound() types.OutboundID

	// PollOutbound 推进 OpenOutbound 发起的打开
	PollOutbound(id types.OutboundID) (types.Poll[types.SubstreamID], error)

	// DestroyOutbound 释放被放弃的出站打开请求
	//
	// 总是安全的，对同一句柄重复调用没有副作用。
	DestroyOutbound(id types.OutboundID)

	// ReadSubstream 非阻塞读取；对端关闭写方向后返回 Ended
	ReadSubstream(id types.SubstreamID, buf []byte) (types.Poll[int], error)

	// WriteSubstream 非阻塞写入，允许部分写入
	WriteSubstream(id types.SubstreamID, buf []byte) (types.Poll[int], error)

	// FlushSubstream 等待子流已写入数据全部交给底层引擎
	FlushSubstream(id types.SubstreamID) (types.Poll[struct{}], error)

	// ShutdownSubstream 半关闭或全关闭子流
	ShutdownSubstream(id types.SubstreamID, mode Shutdown) (types.Poll[struct{}], error)

	// DestroySubstream 释放子流的全部本地状态
	//
	// 每个子流必须恰好调用一次；重复调用返回前置条件错误。
	DestroySubstream(id types.SubstreamID) error

	// Shutdown 关闭整个连接
	//
	// 即使仍有子流打开也可以调用，这些子流下一次轮询时观察到结束或错误。
	Shutdown(mode Shutdown) (types.Poll[struct{}], error)

	// FlushAll 等待所有子流的待写数据全部交给底层引擎
	FlushAll() (types.Poll[struct{}], error)

	// Subscribe 注册唤醒器，状态变化时调用；返回取消函数
	Subscribe(w async.Waker) (cancel func())

	// Close 关闭连接并等待拆除完成
	Close() error
}
