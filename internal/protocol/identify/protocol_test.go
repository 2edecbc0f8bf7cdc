package identify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-p2pcore/internal/core/upgrade"
	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

func TestProtocol_Names(t *testing.T) {
	names := NewProtocol(0, 0).ProtocolNames()
	require.Len(t, names, 1)
	assert.Equal(t, "/ipfs/id/1.0.0", names[0].Name)
}

// 拨号方经协商读取监听方的信息
func TestProtocol_NegotiatedExchange(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p := NewProtocol(0, time.Second)
	dialer, listener := substreamPair(t)
	observed := types.MustMultiaddr("/ip4/5.6.7.8/tcp/9000")

	errc := make(chan error, 1)
	go func() {
		sender, err := upgrade.ApplyInbound[pkgif.Substream, *Sender](ctx, listener, p)
		if err != nil {
			errc <- err
			return
		}
		errc <- sender.Send(ctx, sampleInfo(), observed)
	}()

	remote, err := upgrade.ApplyOutbound[pkgif.Substream, RemoteInfo](ctx, dialer, p)
	require.NoError(t, err)
	require.NoError(t, <-errc)

	assert.Equal(t, sampleInfo().AgentVersion, remote.Info.AgentVersion)
	assert.True(t, observed.Equal(remote.ObservedAddr))
}

func TestProtocol_OutboundTimeout(t *testing.T) {
	p := NewProtocol(0, 50*time.Millisecond)
	dialer, _ := substreamPair(t)

	start := time.Now()
	_, err := p.UpgradeOutbound(context.Background(), dialer, ProtocolID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestProtocol_OutboundMessageTooLarge(t *testing.T) {
	p := NewProtocol(8, time.Second)
	dialer, listener := substreamPair(t)

	go func() {
		s := &Sender{stream: listener}
		_ = s.Send(context.Background(), sampleInfo(), types.MustMultiaddr("/ip4/1.2.3.4/tcp/1"))
	}()

	_, err := p.UpgradeOutbound(context.Background(), dialer, ProtocolID)
	assert.Error(t, err)
}
