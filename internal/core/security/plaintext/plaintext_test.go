package plaintext

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-p2pcore/internal/core/identity"
	"github.com/dep2p/go-p2pcore/internal/core/upgrade"
	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
	"github.com/dep2p/go-p2pcore/pkg/lib/proto"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

func newIdentity(t *testing.T) *identity.Identity {
	t.Helper()
	id, err := identity.Generate()
	require.NoError(t, err)
	return id
}

func TestHandshake_ExchangesPeerIDs(t *testing.T) {
	a, b := newIdentity(t), newIdentity(t)
	ca, cb := net.Pipe()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		conn pkgif.SecureConn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := upgrade.ApplyInbound[net.Conn, pkgif.SecureConn](ctx, cb, New(b))
		ch <- result{c, err}
	}()

	out, err := upgrade.ApplyOutbound[net.Conn, pkgif.SecureConn](ctx, ca, New(a))
	require.NoError(t, err)
	in := <-ch
	require.NoError(t, in.err)

	assert.Equal(t, a.PeerID(), out.LocalPeer())
	assert.Equal(t, b.PeerID(), out.RemotePeer())
	assert.Equal(t, b.PublicKeyBytes(), out.RemotePublicKey())
	assert.Equal(t, a.PeerID(), in.conn.RemotePeer())

	// 握手后数据原样透传
	go func() { _, _ = out.Write([]byte("ping")) }()
	buf := make([]byte, 4)
	_, err = in.conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))
}

func TestSecureOutbound_ExpectedPeerMismatch(t *testing.T) {
	a, b, other := newIdentity(t), newIdentity(t), newIdentity(t)
	ca, cb := net.Pipe()
	defer ca.Close()
	defer cb.Close()

	go func() { _, _ = New(b).UpgradeInbound(context.Background(), cb, ID) }()

	_, err := New(a).SecureOutbound(context.Background(), ca, other.PeerID())
	assert.ErrorIs(t, err, ErrPeerIDMismatch)
}

func TestHandshake_ForgedPeerIDRejected(t *testing.T) {
	a, b, other := newIdentity(t), newIdentity(t), newIdentity(t)
	ca, cb := net.Pipe()
	defer ca.Close()
	defer cb.Close()

	// 对端声称 other 的 PeerID，但发送自己的公钥
	go func() {
		forged, _ := localExchange(b)
		claimed, _ := localExchange(other)
		forged.id = claimed.id
		_ = proto.WriteDelimited(cb, forged.marshal())
		_, _ = proto.ReadDelimited(cb, maxExchangeSize)
	}()

	_, err := New(a).UpgradeOutbound(context.Background(), ca, ID)
	assert.ErrorIs(t, err, ErrPeerIDMismatch)
}

func TestHandshake_ContextDeadline(t *testing.T) {
	a := newIdentity(t)
	ca, cb := net.Pipe()
	defer cb.Close()

	// 对端只读不写
	go func() { _, _ = proto.ReadDelimited(cb, maxExchangeSize) }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := New(a).UpgradeOutbound(ctx, ca, ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExchange_UnknownFieldsSkipped(t *testing.T) {
	id := newIdentity(t)
	e, err := localExchange(id)
	require.NoError(t, err)

	msg := e.marshal()
	msg = append(msg, 0x18, 0x2a) // field 3 varint 42

	var got exchange
	require.NoError(t, got.unmarshal(msg))
	peer, err := got.verify()
	require.NoError(t, err)
	assert.Equal(t, id.PeerID(), peer)
	assert.NotEqual(t, types.EmptyPeerID, peer)
}
