// Package plaintext 实现 /plaintext/2.0.0 身份交换
//
// 握手时双方同时发送一条 Exchange 消息（varint 长度前缀 + protobuf），
// 读取对端消息后校验 PeerID 与公钥一致。握手之后连接上的数据不加密。
package plaintext

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-p2pcore/internal/core/identity"
	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
	"github.com/dep2p/go-p2pcore/pkg/lib/log"
	"github.com/dep2p/go-p2pcore/pkg/lib/proto"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

// ID 协议名称
const ID = "/plaintext/2.0.0"

// maxExchangeSize Exchange 消息上限
const maxExchangeSize = 4 << 10

var logger = log.Logger("core/security/plaintext")

var (
	// ErrPeerIDMismatch 对端 PeerID 与期望不符
	ErrPeerIDMismatch = errors.New("plaintext: peer id mismatch")

	// ErrInvalidExchange 对端 Exchange 消息无效
	ErrInvalidExchange = errors.New("plaintext: invalid exchange message")
)

// Transport 明文身份交换
type Transport struct {
	id *identity.Identity
}

var _ pkgif.SecureUpgrade = (*Transport)(nil)

// New 创建明文身份交换
func New(id *identity.Identity) *Transport {
	return &Transport{id: id}
}

// ProtocolNames 实现 UpgradeInfo
func (t *Transport) ProtocolNames() []pkgif.ProtocolName {
	return []pkgif.ProtocolName{{Name: ID, ID: ID}}
}

// UpgradeInbound 监听方握手，接受任意对端
func (t *Transport) UpgradeInbound(ctx context.Context, conn net.Conn, _ any) (pkgif.SecureConn, error) {
	return t.handshake(ctx, conn, types.EmptyPeerID)
}

// UpgradeOutbound 拨号方握手，不限定对端
func (t *Transport) UpgradeOutbound(ctx context.Context, conn net.Conn, _ any) (pkgif.SecureConn, error) {
	return t.handshake(ctx, conn, types.EmptyPeerID)
}

// SecureOutbound 拨号方握手并要求对端为 expected
func (t *Transport) SecureOutbound(ctx context.Context, conn net.Conn, expected types.PeerID) (pkgif.SecureConn, error) {
	return t.handshake(ctx, conn, expected)
}

// handshake 同时发送本端消息、读取对端消息
func (t *Transport) handshake(ctx context.Context, conn net.Conn, expected types.PeerID) (pkgif.SecureConn, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{}) // 清除超时
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	local, err := localExchange(t.id)
	if err != nil {
		return nil, err
	}

	var remote exchange
	var g errgroup.Group
	g.Go(func() error {
		return proto.WriteDelimited(conn, local.marshal())
	})
	g.Go(func() error {
		msg, err := proto.ReadDelimited(conn, maxExchangeSize)
		if err != nil {
			return err
		}
		return remote.unmarshal(msg)
	})
	if err := g.Wait(); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			err = cerr
		} else if errors.Is(err, os.ErrDeadlineExceeded) {
			err = context.DeadlineExceeded
		}
		return nil, fmt.Errorf("plaintext handshake: %w", err)
	}

	remotePeer, err := remote.verify()
	if err != nil {
		return nil, err
	}
	if expected != types.EmptyPeerID && expected != remotePeer {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrPeerIDMismatch, expected.ShortString(), remotePeer.ShortString())
	}

	logger.Debug("身份交换完成", "local", t.id.PeerID().ShortString(), "remote", remotePeer.ShortString())
	return &secureConn{
		Conn:      conn,
		local:     t.id.PeerID(),
		remote:    remotePeer,
		remotePub: remote.pubKey,
	}, nil
}

// ============================================================================
//                              secureConn
// ============================================================================

// secureConn 完成身份交换的连接
type secureConn struct {
	net.Conn

	local     types.PeerID
	remote    types.PeerID
	remotePub []byte
}

var _ pkgif.SecureConn = (*secureConn)(nil)

func (c *secureConn) LocalPeer() types.PeerID  { return c.local }
func (c *secureConn) RemotePeer() types.PeerID { return c.remote }

func (c *secureConn) RemotePublicKey() []byte {
	out := make([]byte, len(c.remotePub))
	copy(out, c.remotePub)
	return out
}
