package tcp

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-p2pcore/internal/core/transport"
	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
	"github.com/dep2p/go-p2pcore/pkg/lib/async"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

func waitEvent(t *testing.T, ln pkgif.ListenerStream[net.Conn]) types.Poll[pkgif.ListenerEvent[net.Conn]] {
	t.Helper()
	sig := async.NewSignal()
	cancel := ln.Subscribe(sig)
	defer cancel()

	deadline := time.After(5 * time.Second)
	for {
		p := ln.Poll()
		if !p.IsPending() {
			return p
		}
		select {
		case <-sig.C():
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatal("等待入站连接超时")
		}
	}
}

func TestCanDial(t *testing.T) {
	assert.True(t, CanDial(types.MustMultiaddr("/ip4/127.0.0.1/tcp/4001")))
	assert.True(t, CanDial(types.MustMultiaddr("/dns4/example.com/tcp/4001")))
	assert.False(t, CanDial(types.MustMultiaddr("/ip4/127.0.0.1/udp/4001")))
	assert.False(t, CanDial(nil))
}

func TestListen_Errors(t *testing.T) {
	tr := New(DefaultConfig())
	defer tr.Close()

	udp := types.MustMultiaddr("/ip4/127.0.0.1/udp/0")
	_, _, err := tr.Listen(udp)
	var terr *transport.Error
	require.ErrorAs(t, err, &terr)
	assert.True(t, terr.Addr.Equal(udp))
	assert.ErrorIs(t, err, transport.ErrInvalidAddress)

	ln, addr, err := tr.Listen(types.MustMultiaddr("/ip4/127.0.0.1/tcp/0"))
	require.NoError(t, err)
	defer ln.Close()

	// 端口已被占用
	_, _, err = tr.Listen(addr)
	require.ErrorAs(t, err, &terr)
	assert.True(t, terr.Addr.Equal(addr))
}

func TestListenDial_Accept(t *testing.T) {
	tr := New(DefaultConfig())
	defer tr.Close()

	ln, addr, err := tr.Listen(types.MustMultiaddr("/ip4/127.0.0.1/tcp/0"))
	require.NoError(t, err)
	assert.True(t, ln.Poll().IsPending())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pending, err := tr.Dial(ctx, addr)
	require.NoError(t, err)
	client, err := transport.Await(ctx, pending)
	require.NoError(t, err)
	defer client.Close()

	p := waitEvent(t, ln)
	require.True(t, p.IsReady())
	assert.True(t, p.Value.ListenAddr.Equal(addr))
	server, err := transport.Await(ctx, p.Value.Upgrade)
	require.NoError(t, err)
	defer server.Close()

	_, err = client.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(server, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))

	require.NoError(t, ln.Close())
	assert.True(t, ln.Poll().IsEnded())
	assert.True(t, ln.Poll().IsEnded())
}

func TestDial_Refused(t *testing.T) {
	tr := New(DefaultConfig())
	defer tr.Close()

	ln, addr, err := tr.Listen(types.MustMultiaddr("/ip4/127.0.0.1/tcp/0"))
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pending, err := tr.Dial(ctx, addr)
	require.NoError(t, err)
	_, err = transport.Await(ctx, pending)
	var terr *transport.Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "dial", terr.Op)
}

func TestClose_ClosesListeners(t *testing.T) {
	tr := New(DefaultConfig())
	ln, _, err := tr.Listen(types.MustMultiaddr("/ip4/127.0.0.1/tcp/0"))
	require.NoError(t, err)
	assert.Equal(t, 1, tr.ListenerCount())

	require.NoError(t, tr.Close())
	assert.True(t, ln.Poll().IsEnded())
	assert.Equal(t, 0, tr.ListenerCount())

	_, _, err = tr.Listen(types.MustMultiaddr("/ip4/127.0.0.1/tcp/0"))
	assert.ErrorIs(t, err, transport.ErrTransportClosed)
}

func TestNatTraversal(t *testing.T) {
	tr := New(DefaultConfig())
	got, ok := tr.NatTraversal(
		types.MustMultiaddr("/ip4/0.0.0.0/tcp/4001"),
		types.MustMultiaddr("/ip4/8.8.8.8/tcp/50000"),
	)
	require.True(t, ok)
	assert.Equal(t, "/ip4/8.8.8.8/tcp/4001", got.String())

	_, ok = tr.NatTraversal(types.MustMultiaddr("/ip4/0.0.0.0/udp/4001"), types.MustMultiaddr("/ip4/8.8.8.8/tcp/1"))
	assert.False(t, ok)
}
