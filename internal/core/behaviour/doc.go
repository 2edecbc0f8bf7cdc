// Package behaviour 提供编排器的通用构件
//
// NetworkBehaviour 的实现通常由两部分组成：
//
//   - HandlerSet：按（节点，连接）持有 ProtocolsHandler，转发连接与子流通知，
//     轮询时以轮转顺序推进各个 Handler，避免某条连接饿死其他连接
//   - Queue：编排器自己的先进先出动作队列，每次 Poll 取出一个
//
// 两者都不做内部同步，只由驱动方（swarm）单线程调用。
package behaviour
