// Package identity 实现节点身份
//
// 本包提供 Ed25519 密钥对管理与 PeerID 派生。
//
// # 核心功能
//
// 1. 密钥对管理：
//   - Ed25519 密钥生成
//   - 由 32 字节种子确定性恢复
//   - PEM 格式持久化（原子写）
//
// 2. PeerID 派生：
//   - PeerID = Base58(SHA256(公钥))
//   - 安全握手阶段用于校验对端声称的身份
//
// # 快速开始
//
//	id, _ := identity.Generate()
//	peer := id.PeerID()
//
//	sig := id.Sign(data)
//	ok := identity.Verify(id.PublicKeyBytes(), data, sig)
package identity
