package behaviour

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-p2pcore/internal/core/upgrade"
	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
	"github.com/dep2p/go-p2pcore/pkg/lib/async"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

// fakeHandler 每次 Poll 取出一个预置事件
type fakeHandler struct {
	events   []pkgif.HandlerEvent[string]
	err      error
	ended    bool
	injected []string
	inbound  []any
	shutdown bool
	waker    async.Waker
}

func (h *fakeHandler) ListenProtocol() pkgif.SubstreamInbound {
	return upgrade.Denied[pkgif.Substream, any]()
}
func (h *fakeHandler) InjectFullyNegotiatedInbound(out any)     { h.inbound = append(h.inbound, out) }
func (h *fakeHandler) InjectFullyNegotiatedOutbound(out, _ any) {}
func (h *fakeHandler) InjectEvent(ev string)                    { h.injected = append(h.injected, ev) }
func (h *fakeHandler) InjectDialUpgradeError(any, error)        {}
func (h *fakeHandler) InjectInboundClosed()                     {}
func (h *fakeHandler) Shutdown()                                { h.shutdown = true }
func (h *fakeHandler) SetWaker(w async.Waker)                   { h.waker = w }

func (h *fakeHandler) Poll() (types.Poll[pkgif.HandlerEvent[string]], error) {
	if h.err != nil {
		return types.Pending[pkgif.HandlerEvent[string]](), h.err
	}
	if len(h.events) > 0 {
		ev := h.events[0]
		h.events = h.events[1:]
		return types.Ready(ev), nil
	}
	if h.ended {
		return types.Ended[pkgif.HandlerEvent[string]](), nil
	}
	return types.Pending[pkgif.HandlerEvent[string]](), nil
}

type fakeFactory struct {
	handlers map[types.ConnectionID]*fakeHandler
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{handlers: make(map[types.ConnectionID]*fakeHandler)}
}

func (f *fakeFactory) new(_ types.PeerID, point types.ConnectedPoint) pkgif.ProtocolsHandler[string, string] {
	h := &fakeHandler{}
	f.handlers[point.ID] = h
	return h
}

var testAddr = types.MustMultiaddr("/ip4/127.0.0.1/tcp/4001")

func custom(s string) pkgif.HandlerEvent[string] {
	return pkgif.HandlerCustom[string]{Event: s}
}

func TestHandlerSet_RoundRobin(t *testing.T) {
	f := newFakeFactory()
	set := NewHandlerSet[string, string](f.new)
	set.Add("peerA", types.Dialer(1, testAddr))
	set.Add("peerB", types.Dialer(2, testAddr))

	f.handlers[1].events = []pkgif.HandlerEvent[string]{custom("a1"), custom("a2")}
	f.handlers[2].events = []pkgif.HandlerEvent[string]{custom("b1"), custom("b2")}

	var got []string
	for {
		p := set.Poll()
		if p.IsPending() {
			break
		}
		got = append(got, p.Value.Event.(pkgif.HandlerCustom[string]).Event)
	}
	assert.Equal(t, []string{"a1", "b1", "a2", "b2"}, got)
}

func TestHandlerSet_AddIsIdempotent(t *testing.T) {
	f := newFakeFactory()
	set := NewHandlerSet[string, string](f.new)
	set.Add("peerA", types.Dialer(1, testAddr))
	first := f.handlers[1]
	set.Add("peerA", types.Dialer(1, testAddr))

	assert.Equal(t, 1, set.Len())
	assert.Same(t, first, f.handlers[1])
}

func TestHandlerSet_RoutesByConnection(t *testing.T) {
	f := newFakeFactory()
	set := NewHandlerSet[string, string](f.new)
	set.Add("peerA", types.Dialer(1, testAddr))
	set.Add("peerA", types.Listener(2, testAddr, testAddr))

	require.NoError(t, set.InjectEvent("peerA", 2, "only-2"))
	assert.Empty(t, f.handlers[1].injected)
	assert.Equal(t, []string{"only-2"}, f.handlers[2].injected)

	assert.Equal(t, 2, set.InjectEventAll("peerA", "all"))
	assert.Equal(t, []string{"all"}, f.handlers[1].injected)

	require.NoError(t, set.InjectFullyNegotiatedInbound("peerA", 1, "sub"))
	assert.Equal(t, []any{"sub"}, f.handlers[1].inbound)

	assert.ErrorIs(t, set.InjectEvent("peerB", 1, "x"), ErrUnknownConnection)
	assert.Equal(t, []types.ConnectionID{1, 2}, set.Connections("peerA"))

	point, ok := set.Point("peerA", 2)
	require.True(t, ok)
	assert.False(t, point.IsDialer())
}

func TestHandlerSet_UnknownConnectionDeniesInbound(t *testing.T) {
	set := NewHandlerSet[string, string](newFakeFactory().new)
	assert.Empty(t, set.ListenProtocol("nobody", 9).ProtocolNames())
}

func TestHandlerSet_RemoveShutsDown(t *testing.T) {
	f := newFakeFactory()
	set := NewHandlerSet[string, string](f.new)
	set.Add("peerA", types.Dialer(1, testAddr))
	h := f.handlers[1]
	h.events = []pkgif.HandlerEvent[string]{custom("lost")}

	assert.True(t, set.Remove("peerA", 1))
	assert.True(t, h.shutdown)
	assert.False(t, set.Remove("peerA", 1))
	assert.True(t, set.Poll().IsPending())
}

func TestHandlerSet_ErrorAndEndRemoveHandler(t *testing.T) {
	f := newFakeFactory()
	set := NewHandlerSet[string, string](f.new)
	set.Add("peerA", types.Dialer(1, testAddr))
	set.Add("peerB", types.Dialer(2, testAddr))
	f.handlers[1].err = errors.New("boom")
	f.handlers[2].ended = true

	p := set.Poll()
	require.True(t, p.IsReady())
	assert.EqualError(t, p.Value.Err, "boom")
	assert.True(t, p.Value.Closed)

	p = set.Poll()
	require.True(t, p.IsReady())
	assert.NoError(t, p.Value.Err)
	assert.True(t, p.Value.Closed)
	assert.Equal(t, types.PeerID("peerB"), p.Value.Peer)

	assert.Equal(t, 0, set.Len())
	assert.True(t, set.Poll().IsPending())
}

func TestHandlerSet_ShutdownEventRemovesHandler(t *testing.T) {
	f := newFakeFactory()
	set := NewHandlerSet[string, string](f.new)
	set.Add("peerA", types.Dialer(1, testAddr))
	f.handlers[1].events = []pkgif.HandlerEvent[string]{pkgif.HandlerShutdown{}}

	p := set.Poll()
	require.True(t, p.IsReady())
	assert.IsType(t, pkgif.HandlerShutdown{}, p.Value.Event)
	assert.True(t, p.Value.Closed)
	assert.Equal(t, 0, set.Len())
}

func TestHandlerSet_WakerPropagates(t *testing.T) {
	f := newFakeFactory()
	set := NewHandlerSet[string, string](f.new)
	set.Add("peerA", types.Dialer(1, testAddr))

	sig := async.NewSignal()
	set.SetWaker(sig)
	assert.Same(t, sig, f.handlers[1].waker)

	set.Add("peerB", types.Dialer(2, testAddr))
	assert.Same(t, sig, f.handlers[2].waker)
}
