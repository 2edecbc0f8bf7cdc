package smux

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-p2pcore/internal/core/muxer"
	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
	"github.com/dep2p/go-p2pcore/pkg/lib/async"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

func wait[T any](t *testing.T, m *muxer.Multiplexer, f func() (types.Poll[T], error)) types.Poll[T] {
	t.Helper()
	sig := async.NewSignal()
	cancel := m.Subscribe(sig)
	defer cancel()

	deadline := time.After(5 * time.Second)
	for {
		p, err := f()
		require.NoError(t, err)
		if !p.IsPending() {
			return p
		}
		select {
		case <-sig.C():
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatal("轮询超时")
		}
	}
}

func TestConfig_Invalid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFrameSize = 70000

	a, b := net.Pipe()
	defer b.Close()
	_, err := cfg.UpgradeOutbound(context.Background(), a, ID)
	assert.Error(t, err)
}

func TestSmux_HelloWorld(t *testing.T) {
	a, b := net.Pipe()
	cfg := DefaultConfig()

	client, err := cfg.UpgradeOutbound(context.Background(), a, ID)
	require.NoError(t, err)
	defer client.Close()
	server, err := cfg.UpgradeInbound(context.Background(), b, ID)
	require.NoError(t, err)
	defer server.Close()

	oid := client.OpenOutbound()
	out := wait(t, client, func() (types.Poll[types.SubstreamID], error) { return client.PollOutbound(oid) })
	require.True(t, out.IsReady())

	msg := []byte("hello world")
	n := wait(t, client, func() (types.Poll[int], error) { return client.WriteSubstream(out.Value, msg) })
	require.Equal(t, len(msg), n.Value)
	wait(t, client, func() (types.Poll[struct{}], error) {
		return client.ShutdownSubstream(out.Value, pkgif.ShutdownWrite)
	})

	in := wait(t, server, server.PollInbound)
	require.True(t, in.IsReady())

	var got []byte
	buf := make([]byte, 32)
	for {
		p := wait(t, server, func() (types.Poll[int], error) { return server.ReadSubstream(in.Value, buf) })
		if p.IsEnded() {
			break
		}
		got = append(got, buf[:p.Value]...)
	}
	assert.Equal(t, "hello world", string(got))
}
