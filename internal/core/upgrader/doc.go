// Package upgrader 实现连接升级器
//
// # 概述
//
// upgrader 把原始网络连接升级为带身份、可多路复用的连接。
// 两个阶段都通过 multistream-select 协商协议名称。
//
// # 升级流程
//
//  1. 安全协议协商
//     - 双方提议：[/plaintext/2.0.0]
//
//  2. 身份交换
//     - 交换 Ed25519 公钥
//     - 校验 PeerID = Base58(SHA256(公钥))
//
//  3. 多路复用器协商
//     - 拨号方按偏好顺序提议：[/yamux/1.0.0, /smux/1.0.0]
//     - 监听方选择第一个支持的名称
//
//  4. 建立多路复用会话，得到 *muxer.Multiplexer
//
// 整个流程受 HandshakeTimeout 限制，任何一步失败都会关闭原始连接。
//
// # 使用示例
//
//	id, _ := identity.Generate()
//	u, err := upgrader.New(plaintext.New(id), []muxer.ConnUpgrade{yamux.DefaultConfig()}, upgrader.NewConfig())
//
//	// 拨号方
//	conn, err := u.Outbound(ctx, raw)
//	stream, err := muxing.OutboundFromRef(ctx, muxing.Share(conn.Muxer))
package upgrader
