package swarm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	ma "github.com/multiformats/go-multiaddr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-p2pcore/internal/core/identity"
	"github.com/dep2p/go-p2pcore/internal/core/muxer/yamux"
	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

// testPeer 一个运行中的测试节点
type testPeer struct {
	swarm     *Swarm[string]
	id        *identity.Identity
	behaviour *recordingBehaviour
	events    <-chan Event[string]
}

func startPeer(t *testing.T, opts ...Option) *testPeer {
	t.Helper()
	b := newRecordingBehaviour()
	s, id := newTestSwarm[string](t, b, opts...)
	return &testPeer{swarm: s, id: id, behaviour: b, events: runSwarm(t, s)}
}

// connectPeers b 拨号 a，返回两端的连接建立事件
func connectPeers(t *testing.T, a, b *testPeer) (Event[string], Event[string]) {
	t.Helper()
	addr := listenLocal(t, a.swarm)
	require.NoError(t, b.swarm.Dial(addr))

	evB := waitEvent(t, b.events, EventConnectionEstablished)
	evA := waitEvent(t, a.events, EventConnectionEstablished)
	return evA, evB
}

// refusedAddr 返回一个没有监听者的本地 TCP 地址
func refusedAddr(t *testing.T) types.Multiaddr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	addr, err := types.NewMultiaddr(fmt.Sprintf("/ip4/127.0.0.1/tcp/%d", port))
	require.NoError(t, err)
	return addr
}

// ============================================================================
//                              构造
// ============================================================================

func TestNew_Errors(t *testing.T) {
	b := newRecordingBehaviour()
	s, id := newTestSwarm[string](t, b)

	_, err := New[string](types.EmptyPeerID, s.transport, b)
	assert.Error(t, err)

	_, err = New[string](id.PeerID(), nil, b)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	bad := DefaultConfig()
	bad.PollInterval = 0
	_, err = New[string](id.PeerID(), s.transport, b, WithConfig(bad))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New[string](id.PeerID(), s.transport, b, WithPeerAddrs(id.PeerID()))
	assert.ErrorIs(t, err, ErrNoAddresses)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	for name, mutate := range map[string]func(*Config){
		"dial timeout":      func(c *Config) { c.DialTimeout = 0 },
		"substream timeout": func(c *Config) { c.SubstreamTimeout = -1 },
		"poll interval":     func(c *Config) { c.PollInterval = 0 },
		"max pending":       func(c *Config) { c.MaxPendingUpgrades = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

// ============================================================================
//                              Behaviour 动作
// ============================================================================

func TestPoll_GenerateEventsInOrder(t *testing.T) {
	b := newRecordingBehaviour()
	s, _ := newTestSwarm[string](t, b)

	b.push(pkgif.GenerateEvent[string]{Event: "first"})
	b.push(pkgif.GenerateEvent[string]{Event: "second"})

	p := s.Poll()
	require.True(t, p.IsReady())
	assert.Equal(t, EventBehaviour, p.Value.Kind)
	assert.Equal(t, "first", p.Value.Behaviour)

	p = s.Poll()
	require.True(t, p.IsReady())
	assert.Equal(t, "second", p.Value.Behaviour)

	assert.True(t, s.Poll().IsPending())
}

func TestPoll_OpenSubstreamUnknownConnection(t *testing.T) {
	b := newRecordingBehaviour()
	s, _ := newTestSwarm[string](t, b)

	other, err := identity.Generate()
	require.NoError(t, err)
	b.push(pkgif.OpenSubstream{Peer: other.PeerID(), Conn: 99, Upgrade: streamUpgrade{}, Info: "req"})

	assert.True(t, s.Poll().IsPending())

	rec := b.snapshot()
	require.Len(t, rec.dialErrors, 1)
	assert.Equal(t, types.ConnectionID(99), rec.dialErrors[0].conn)
	assert.Equal(t, "req", rec.dialErrors[0].info)
	assert.ErrorIs(t, rec.dialErrors[0].err, ErrNoConnection)
}

func TestPoll_DialAddressFailureIsEvent(t *testing.T) {
	b := newRecordingBehaviour()
	s, _ := newTestSwarm[string](t, b)

	udp, err := types.NewMultiaddr("/ip4/127.0.0.1/udp/1234")
	require.NoError(t, err)
	b.push(pkgif.DialAddress{Addr: udp})

	p := s.Poll()
	require.True(t, p.IsReady())
	assert.Equal(t, EventDialError, p.Value.Kind)
	assert.True(t, p.Value.Addr.Equal(udp))
	assert.Error(t, p.Value.Err)
}

// ============================================================================
//                              连接
// ============================================================================

func TestSwarm_ConnectAndDisconnect(t *testing.T) {
	a := startPeer(t)
	b := startPeer(t)

	evA, evB := connectPeers(t, a, b)

	assert.Equal(t, b.id.PeerID(), evA.Peer)
	assert.False(t, evA.Point.IsDialer())
	assert.Equal(t, a.id.PeerID(), evB.Peer)
	assert.True(t, evB.Point.IsDialer())

	assert.True(t, b.swarm.IsConnected(a.id.PeerID()))
	assert.Equal(t, []types.PeerID{a.id.PeerID()}, b.swarm.Peers())

	conns := b.swarm.Connections()
	require.Len(t, conns, 1)
	assert.Equal(t, evB.Point.ID, conns[0].ID)
	assert.Equal(t, yamux.ID, conns[0].Muxer)

	require.Len(t, b.behaviour.snapshot().connected, 1)

	require.NoError(t, b.swarm.DisconnectPeer(a.id.PeerID()))
	closedB := waitEvent(t, b.events, EventConnectionClosed)
	assert.Equal(t, evB.Point.ID, closedB.Point.ID)
	closedA := waitEvent(t, a.events, EventConnectionClosed)
	assert.Equal(t, evA.Point.ID, closedA.Point.ID)

	assert.False(t, b.swarm.IsConnected(a.id.PeerID()))
	assert.Len(t, b.behaviour.snapshot().disconnected, 1)
	assert.Len(t, a.behaviour.snapshot().disconnected, 1)

	assert.ErrorIs(t, b.swarm.DisconnectPeer(a.id.PeerID()), ErrNoConnection)
	assert.ErrorIs(t, b.swarm.CloseConnection(evB.Point.ID), ErrNoConnection)
}

func TestSwarm_OpenSubstreamRoutesBothEnds(t *testing.T) {
	a := startPeer(t)
	b := startPeer(t)
	_, evB := connectPeers(t, a, b)

	b.behaviour.push(pkgif.OpenSubstream{
		Peer:    a.id.PeerID(),
		Conn:    evB.Point.ID,
		Upgrade: streamUpgrade{},
		Info:    "req-1",
	})
	b.swarm.Waker().Wake()

	require.Eventually(t, func() bool {
		return len(b.behaviour.snapshot().outbound) == 1 && len(a.behaviour.snapshot().inbound) == 1
	}, 5*time.Second, 10*time.Millisecond)

	out := b.behaviour.snapshot().outbound[0]
	assert.Equal(t, "req-1", out.info)
	w, ok := out.out.(pkgif.Substream)
	require.True(t, ok)
	r, ok := a.behaviour.snapshot().inbound[0].(pkgif.Substream)
	require.True(t, ok)

	_, err := w.Write([]byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, w.CloseWrite())

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))

	_ = w.Close()
	_ = r.Close()
}

func TestSwarm_DeniedInboundNeverReachesBehaviour(t *testing.T) {
	a := startPeer(t)
	a.behaviour.mu.Lock()
	a.behaviour.listen = nil
	a.behaviour.mu.Unlock()

	b := startPeer(t)
	_, evB := connectPeers(t, a, b)

	b.behaviour.push(pkgif.OpenSubstream{Peer: a.id.PeerID(), Conn: evB.Point.ID, Upgrade: streamUpgrade{}, Info: "denied"})
	b.swarm.Waker().Wake()

	require.Eventually(t, func() bool {
		return len(b.behaviour.snapshot().dialErrors) == 1
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, "denied", b.behaviour.snapshot().dialErrors[0].info)
	assert.Empty(t, a.behaviour.snapshot().inbound)
}

// ============================================================================
//                              拨号
// ============================================================================

func TestSwarm_DialPeerFallsBackToNextAddress(t *testing.T) {
	a := startPeer(t)
	good := listenLocal(t, a.swarm)

	b := startPeer(t, WithPeerAddrs(a.id.PeerID(), refusedAddr(t), good))
	require.NoError(t, b.swarm.DialPeer(a.id.PeerID()))

	ev := waitEvent(t, b.events, EventConnectionEstablished)
	assert.Equal(t, a.id.PeerID(), ev.Peer)
	assert.True(t, ev.Point.Address.Equal(good))
}

func TestSwarm_DialPeerAllAddressesFail(t *testing.T) {
	other, err := identity.Generate()
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	b := startPeer(t, WithRegisterer(reg), WithPeerAddrs(other.PeerID(), refusedAddr(t), refusedAddr(t)))
	require.NoError(t, b.swarm.DialPeer(other.PeerID()))

	ev := waitEvent(t, b.events, EventDialError)
	assert.Equal(t, other.PeerID(), ev.Peer)

	var de *DialError
	require.True(t, errors.As(ev.Err, &de))
	assert.Len(t, de.Errors, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(b.swarm.metrics.upgradeFailures.WithLabelValues(stageOutboundConn)))
}

func TestSwarm_DialPeerRejectsWrongPeer(t *testing.T) {
	a := startPeer(t)
	addr := listenLocal(t, a.swarm)

	impostor, err := identity.Generate()
	require.NoError(t, err)

	b := startPeer(t)
	b.swarm.AddPeerAddrs(impostor.PeerID(), addr)
	require.NoError(t, b.swarm.DialPeer(impostor.PeerID()))

	ev := waitEvent(t, b.events, EventDialError)
	assert.ErrorIs(t, ev.Err, ErrPeerMismatch)
	assert.False(t, b.swarm.IsConnected(a.id.PeerID()))
}

func TestSwarm_DialPeerErrors(t *testing.T) {
	b := newRecordingBehaviour()
	s, id := newTestSwarm[string](t, b)

	assert.ErrorIs(t, s.DialPeer(id.PeerID()), ErrDialToSelf)

	other, err := identity.Generate()
	require.NoError(t, err)
	assert.ErrorIs(t, s.DialPeer(other.PeerID()), ErrNoAddresses)
	assert.Empty(t, s.PeerAddrs(other.PeerID()))
}

// ============================================================================
//                              监听与地址
// ============================================================================

func TestSwarm_ListenEvents(t *testing.T) {
	b := newRecordingBehaviour()
	s, _ := newTestSwarm[string](t, b)

	addr := listenLocal(t, s)
	assert.Equal(t, []types.Multiaddr{addr}, s.ListenAddrs())

	p := s.Poll()
	require.True(t, p.IsReady())
	assert.Equal(t, EventNewListenAddr, p.Value.Kind)
	assert.True(t, p.Value.Addr.Equal(addr))

	require.NoError(t, s.RemoveListener(addr))
	require.Eventually(t, func() bool {
		p := s.Poll()
		return p.IsReady() && p.Value.Kind == EventListenerClosed
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, s.ListenAddrs())
}

func TestSwarm_ListenSetupError(t *testing.T) {
	b := newRecordingBehaviour()
	s, _ := newTestSwarm[string](t, b)

	udp, err := types.NewMultiaddr("/ip4/127.0.0.1/udp/0")
	require.NoError(t, err)
	_, err = s.Listen(udp)
	assert.Error(t, err)
	assert.Empty(t, s.ListenAddrs())
}

func TestSwarm_ExternalAddrs(t *testing.T) {
	b := newRecordingBehaviour()
	s, _ := newTestSwarm[string](t, b)
	addr := listenLocal(t, s)

	port, err := addr.ValueForProtocol(ma.P_TCP)
	require.NoError(t, err)

	observed, err := types.NewMultiaddr("/ip4/1.2.3.4/tcp/5555")
	require.NoError(t, err)
	ext := s.ExternalAddrs(observed)
	require.Len(t, ext, 1)
	assert.Equal(t, "/ip4/1.2.3.4/tcp/"+port, ext[0].String())

	v6, err := types.NewMultiaddr("/ip6/::1/tcp/5555")
	require.NoError(t, err)
	assert.Empty(t, s.ExternalAddrs(v6))
	assert.Empty(t, s.ExternalAddrs(nil))
}

// ============================================================================
//                              关闭与指标
// ============================================================================

func TestSwarm_CloseDrainsThenEnds(t *testing.T) {
	a := startPeer(t)
	rb := newRecordingBehaviour()
	s, _ := newTestSwarm[string](t, rb)

	addr := listenLocal(t, a.swarm)
	require.NoError(t, s.Dial(addr))
	require.Eventually(t, func() bool {
		p := s.Poll()
		return p.IsReady() && p.Value.Kind == EventConnectionEstablished
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	p := s.Poll()
	require.True(t, p.IsReady())
	assert.Equal(t, EventConnectionClosed, p.Value.Kind)
	assert.ErrorIs(t, p.Value.Err, ErrSwarmClosed)
	assert.True(t, s.Poll().IsEnded())
	assert.Len(t, rb.snapshot().disconnected, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := s.Next(ctx)
	assert.ErrorIs(t, err, ErrSwarmClosed)
	assert.NoError(t, s.Run(ctx, func(Event[string]) {}))

	_, err = s.Listen(addr)
	assert.ErrorIs(t, err, ErrSwarmClosed)
	assert.ErrorIs(t, s.Dial(addr), ErrSwarmClosed)

	waitEvent(t, a.events, EventConnectionClosed)
}

func TestSwarm_NextHonoursContext(t *testing.T) {
	b := newRecordingBehaviour()
	s, _ := newTestSwarm[string](t, b)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := s.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSwarm_ConnectionGauge(t *testing.T) {
	regA := prometheus.NewRegistry()
	a := startPeer(t, WithRegisterer(regA))
	b := startPeer(t)
	_, evB := connectPeers(t, a, b)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.swarm.metrics.connections))

	require.NoError(t, b.swarm.CloseConnection(evB.Point.ID))
	waitEvent(t, a.events, EventConnectionClosed)
	assert.Equal(t, 0.0, testutil.ToFloat64(a.swarm.metrics.connections))
}

func TestNewMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m1 := NewMetrics(reg)
	m2 := NewMetrics(reg)

	m1.connOpened()
	m2.connOpened()
	assert.Equal(t, 2.0, testutil.ToFloat64(m1.connections))

	m1.upgradeFailed(stageInboundSubstream)
	assert.Equal(t, 1.0, testutil.ToFloat64(m2.upgradeFailures.WithLabelValues(stageInboundSubstream)))

	// 未注册的指标也可以使用
	m3 := NewMetrics(nil)
	m3.substreamNegotiated("inbound")
	assert.Equal(t, 1.0, testutil.ToFloat64(m3.substreams.WithLabelValues("inbound")))
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "connection-established", EventConnectionEstablished.String())
	assert.Equal(t, "dial-error", EventDialError.String())
	assert.Equal(t, "unknown(42)", EventKind(42).String())
}
