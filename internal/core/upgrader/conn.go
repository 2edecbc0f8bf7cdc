package upgrader

import (
	"github.com/dep2p/go-p2pcore/internal/core/muxer"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

// UpgradedConn 升级后的连接
type UpgradedConn struct {
	// Muxer 连接上的多路复用器，所有权归调用方
	Muxer *muxer.Multiplexer

	// LocalPeer 本地节点 ID
	LocalPeer types.PeerID

	// RemotePeer 远端节点 ID
	RemotePeer types.PeerID

	// Security 协商的安全协议
	Security string

	// MuxerID 协商的多路复用器
	MuxerID string
}

// Close 关闭多路复用器及底层连接
func (c *UpgradedConn) Close() error {
	return c.Muxer.Close()
}
