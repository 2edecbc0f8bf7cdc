// Package types 定义 p2pcore 的基础类型
//
// 这是整个系统的最底层包，不依赖任何其他 p2pcore 内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 文件组织
//
//   - poll.go       - Poll 三态结果（未就绪 / 就绪 / 结束）
//   - ids.go        - PeerID, ConnectionID, SubstreamID, OutboundID
//   - multiaddr.go  - Multiaddr 多地址类型（go-multiaddr）
//   - connection.go - Direction, ConnectedPoint
//
// # 轮询语义
//
// 核心层所有可挂起的操作都返回 Poll：
//
//	p, err := m.PollInbound()
//	switch {
//	case err != nil:      // 连接错误（粘滞）
//	case p.IsPending():   // 稍后再次轮询
//	case p.IsEnded():     // 序列结束（有序关闭，不是错误）
//	default:              // p.Value 可用
//	}
package types
