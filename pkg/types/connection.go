package types

import "fmt"

// ============================================================================
//                              Direction - 连接方向
// ============================================================================

// Direction 连接或子流方向
type Direction int

const (
	// DirUnknown 未知方向
	DirUnknown Direction = iota
	// DirInbound 入站（对端发起）
	DirInbound
	// DirOutbound 出站（本端发起）
	DirOutbound
)

// String 返回方向字符串
func (d Direction) String() string {
	switch d {
	case DirInbound:
		return "inbound"
	case DirOutbound:
		return "outbound"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              ConnectedPoint - 连接端点
// ============================================================================

// ConnectedPoint 描述一条连接是如何建立的
//
// 拨号方只关心远端地址；监听方记录本地监听地址和对端回连地址。
type ConnectedPoint struct {
	// ID 连接标识
	ID ConnectionID

	// Direction 连接方向（DirOutbound 表示本端是拨号方）
	Direction Direction

	// Address 拨号方：拨出的远端地址
	Address Multiaddr

	// ListenAddr 监听方：接受连接的本地监听地址
	ListenAddr Multiaddr

	// SendBackAddr 监听方：观测到的对端地址
	SendBackAddr Multiaddr
}

// Dialer 构造拨号方端点
func Dialer(id ConnectionID, addr Multiaddr) ConnectedPoint {
	return ConnectedPoint{ID: id, Direction: DirOutbound, Address: addr}
}

// Listener 构造监听方端点
func Listener(id ConnectionID, listenAddr, sendBack Multiaddr) ConnectedPoint {
	return ConnectedPoint{ID: id, Direction: DirInbound, ListenAddr: listenAddr, SendBackAddr: sendBack}
}

// IsDialer 本端是否为拨号方
func (c ConnectedPoint) IsDialer() bool {
	return c.Direction == DirOutbound
}

// RemoteAddr 返回对端地址（拨号地址或回连地址）
func (c ConnectedPoint) RemoteAddr() Multiaddr {
	if c.IsDialer() {
		return c.Address
	}
	return c.SendBackAddr
}

// String 返回字符串表示
func (c ConnectedPoint) String() string {
	if c.IsDialer() {
		return fmt.Sprintf("%s dialer(%v)", c.ID, c.Address)
	}
	return fmt.Sprintf("%s listener(%v <- %v)", c.ID, c.ListenAddr, c.SendBackAddr)
}
