// Package interfaces 定义 p2pcore 的公共接口
//
// 一个接口文件对应一个核心组件：
//   - muxing.go     - 流多路复用器（StreamMuxer，轮询契约）
//   - upgrade.go    - 连接/子流升级（协议名称 + 入站/出站变体）
//   - transport.go  - 传输层（监听、拨号、NAT 地址转换）
//   - handler.go    - ProtocolsHandler（每连接、每协议族状态机）
//   - behaviour.go  - NetworkBehaviour（按节点聚合 Handler 的编排器）
//
// # 调度模型
//
// 所有组件都暴露非阻塞的轮询操作，由上层调度器反复调用直到就绪。
// 多路复用器可以被多个子流驱动方并发轮询（内部同步）；
// Handler 与 Behaviour 是单所有者状态机，同一时间只有一个驱动方。
//
// # 依赖方向
//
//	behaviour → handler → upgrade → muxing → types
//
// 禁止反向依赖。
package interfaces
