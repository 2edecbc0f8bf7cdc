// Package security 组装连接的安全握手层
//
// 当前只提供 /plaintext/2.0.0：双方交换 Ed25519 公钥与 PeerID，
// 校验 PeerID = Base58(SHA256(公钥))，不加密后续数据。
//
// # 使用示例
//
//	id, _ := identity.Generate()
//	sec := plaintext.New(id)
//
//	// 监听方
//	conn, _ := upgrade.ApplyInbound[net.Conn, pkgif.SecureConn](ctx, raw, sec)
//
// # Fx 模块
//
//	app := fx.New(
//	    identity.Module(),
//	    security.Module(),
//	)
//
// # 相关模块
//
//   - internal/core/identity: 提供密钥和 PeerID
//   - internal/core/upgrader: 安全握手之后协商多路复用器
package security
