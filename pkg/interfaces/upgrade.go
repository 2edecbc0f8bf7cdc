package interfaces

import (
	"context"
	"io"
	"net"

	"github.com/dep2p/go-p2pcore/pkg/types"
)

// ============================================================================
//                              协议名称
// ============================================================================

// ProtocolName 升级声明支持的一个协议名称
//
// ID 是不透明的标识，协商选中 Name 后原样传回升级实现，
// 用于区分映射到同一实现的多个名称。
type ProtocolName struct {
	Name string
	ID   any
}

// UpgradeInfo 声明升级实现了哪些协议名称
//
// 顺序即偏好顺序：拨号方按此顺序逐个提议。
type UpgradeInfo interface {
	ProtocolNames() []ProtocolName
}

// ============================================================================
//                              升级接口
// ============================================================================

// InboundUpgrade 入站升级（监听方使用）
//
// UpgradeInbound 把已协商的连接 C 转换为协议对象 O。
// 可以阻塞直到完成或 ctx 取消；失败时除消耗 conn 外不得有其他副作用。
type InboundUpgrade[C, O any] interface {
	UpgradeInfo
	UpgradeInbound(ctx context.Context, conn C, id any) (O, error)
}

// OutboundUpgrade 出站升级（拨号方使用）
type OutboundUpgrade[C, O any] interface {
	UpgradeInfo
	UpgradeOutbound(ctx context.Context, conn C, id any) (O, error)
}

// Upgrade 同时支持两个方向的升级
//
// 对称协议的两个方向行为相同，但仍然分开声明。
type Upgrade[C, O any] interface {
	InboundUpgrade[C, O]
	OutboundUpgrade[C, O]
}

// ============================================================================
//                              子流升级
// ============================================================================

// Substream 已建立的逻辑子流
type Substream interface {
	io.ReadWriteCloser

	// CloseWrite 半关闭写方向
	CloseWrite() error
}

// SubstreamInbound 输出类型已擦除的入站子流升级
//
// Handler 与 Swarm 之间以此形式传递升级，输出由 Handler 自行断言回具体类型。
type SubstreamInbound = InboundUpgrade[Substream, any]

// SubstreamOutbound 输出类型已擦除的出站子流升级
type SubstreamOutbound = OutboundUpgrade[Substream, any]

// ============================================================================
//                              安全连接
// ============================================================================

// SecureConn 完成安全握手的连接
//
// 两端身份在握手中交换并校验，之后连接可直接交给多路复用升级。
type SecureConn interface {
	net.Conn

	// LocalPeer 本端节点 ID
	LocalPeer() types.PeerID

	// RemotePeer 对端节点 ID（已校验与公钥一致）
	RemotePeer() types.PeerID

	// RemotePublicKey 对端公钥原始字节
	RemotePublicKey() []byte
}

// SecureUpgrade 安全握手升级
type SecureUpgrade = Upgrade[net.Conn, SecureConn]
