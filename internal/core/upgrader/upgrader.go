// Package upgrader 实现连接升级器
package upgrader

import (
	"context"
	"fmt"
	"net"

	"github.com/dep2p/go-p2pcore/internal/core/muxer"
	"github.com/dep2p/go-p2pcore/internal/core/upgrade"
	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
	"github.com/dep2p/go-p2pcore/pkg/lib/log"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

var logger = log.Logger("core/upgrader")

// Upgrader 连接升级器
type Upgrader struct {
	security pkgif.SecureUpgrade
	muxers   *muxerSet
	cfg      Config
}

// New 创建连接升级器
func New(security pkgif.SecureUpgrade, muxers []muxer.ConnUpgrade, cfg Config) (*Upgrader, error) {
	if security == nil {
		return nil, ErrNoSecurityTransport
	}
	if len(muxers) == 0 {
		return nil, ErrNoStreamMuxer
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = NewConfig().HandshakeTimeout
	}
	return &Upgrader{
		security: security,
		muxers:   newMuxerSet(muxers, cfg.MuxerPreference),
		cfg:      cfg,
	}, nil
}

// MuxerProtocols 按偏好顺序返回多路复用协议名称
func (u *Upgrader) MuxerProtocols() []string {
	names := u.muxers.ProtocolNames()
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n.Name
	}
	return out
}

// Inbound 升级被接受的连接
func (u *Upgrader) Inbound(ctx context.Context, conn net.Conn) (*UpgradedConn, error) {
	return u.upgrade(ctx, conn, types.DirInbound, types.EmptyPeerID)
}

// Outbound 升级拨出的连接，不限定对端身份
func (u *Upgrader) Outbound(ctx context.Context, conn net.Conn) (*UpgradedConn, error) {
	return u.upgrade(ctx, conn, types.DirOutbound, types.EmptyPeerID)
}

// OutboundTo 升级拨出的连接，要求对端为 expected
func (u *Upgrader) OutboundTo(ctx context.Context, conn net.Conn, expected types.PeerID) (*UpgradedConn, error) {
	return u.upgrade(ctx, conn, types.DirOutbound, expected)
}

// upgrade 升级连接
//
// 升级流程：
//  1. 协商安全协议并交换身份（multistream-select）
//  2. 校验期望的远端 PeerID
//  3. 协商多路复用器并建立会话（multistream-select）
func (u *Upgrader) upgrade(ctx context.Context, conn net.Conn, dir types.Direction, expected types.PeerID) (*UpgradedConn, error) {
	ctx, cancel := context.WithTimeout(ctx, u.cfg.HandshakeTimeout)
	defer cancel()

	inbound := dir == types.DirInbound

	// 1. 安全握手
	logger.Debug("协商安全协议", "direction", dir, "remote", conn.RemoteAddr())
	var secConn pkgif.SecureConn
	var err error
	if inbound {
		secConn, err = upgrade.ApplyInbound[net.Conn, pkgif.SecureConn](ctx, conn, u.security)
	} else {
		secConn, err = upgrade.ApplyOutbound[net.Conn, pkgif.SecureConn](ctx, conn, u.security)
	}
	if err != nil {
		logger.Warn("安全握手失败", "direction", dir, "error", err)
		return nil, fmt.Errorf("security handshake: %w", err)
	}
	security := u.security.ProtocolNames()[0].Name

	// 2. 身份校验
	if expected != types.EmptyPeerID && secConn.RemotePeer() != expected {
		_ = secConn.Close()
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrPeerIDMismatch, expected.ShortString(), secConn.RemotePeer().ShortString())
	}

	// 3. 多路复用
	var nm negotiatedMuxer
	if inbound {
		nm, err = upgrade.ApplyInbound[net.Conn, negotiatedMuxer](ctx, secConn, u.muxers)
	} else {
		nm, err = upgrade.ApplyOutbound[net.Conn, negotiatedMuxer](ctx, secConn, u.muxers)
	}
	if err != nil {
		logger.Warn("多路复用器协商失败", "direction", dir, "error", err)
		return nil, fmt.Errorf("muxer negotiation: %w", err)
	}

	logger.Info("连接升级成功", "remotePeer", secConn.RemotePeer().ShortString(), "security", security, "muxer", nm.name)
	return &UpgradedConn{
		Muxer:      nm.mux,
		LocalPeer:  secConn.LocalPeer(),
		RemotePeer: secConn.RemotePeer(),
		Security:   security,
		MuxerID:    nm.name,
	}, nil
}
