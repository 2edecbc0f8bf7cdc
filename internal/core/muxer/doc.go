// Package muxer 实现流多路复用器的轮询适配层
//
// Multiplexer 把一个阻塞式多路复用会话（Engine，例如 go-yamux 或 smux）
// 包装为 pkgif.StreamMuxer 的非阻塞轮询契约：
//
//   - 接受循环 goroutine 把入站流按到达顺序放入有界队列
//   - 出站打开在独立 goroutine 中执行，以 OutboundID 跟踪
//   - 每个子流有一个读泵和一个写泵，读写只操作内存缓冲，从不阻塞调用方
//   - 状态变化时唤醒通过 Subscribe 注册的 Waker
//
// # 终止语义
//
// 对端有序关闭连接：PollInbound 在交付完已排队的子流后持续返回 Ended。
// 连接错误：记录为粘滞错误，之后所有操作都返回同一个错误。
// 已销毁或未知的子流标识返回 ErrUnknownSubstream（前置条件错误）。
//
// # 快速开始
//
//	m := muxer.New(engine, muxer.DefaultConfig())
//	oid := m.OpenOutbound()
//	for {
//	    p, err := m.PollOutbound(oid)
//	    ...
//	}
//
// 具体引擎见子包 yamux 与 smux，它们同时提供连接升级。
package muxer
