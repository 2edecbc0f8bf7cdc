package p2pcore

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-p2pcore/config"
)

// newLocalNode 创建一个本机节点，首次身份交换延迟很短
func newLocalNode(t *testing.T, agent string, opts ...Option) *Node {
	t.Helper()
	cfg, err := GetPresetConfig(PresetLocal)
	require.NoError(t, err)
	cfg.Identify.InitialDelay = config.Duration(10 * time.Millisecond)
	cfg.Identify.AgentVersion = agent

	node, err := New(append([]Option{WithConfig(cfg)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = node.Close() })
	return node
}

func startNode(t *testing.T, n *Node) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, n.Start(ctx))
}

// drain 持续消费事件，避免通道写满
func drain(n *Node) {
	go func() {
		for range n.Events() {
		}
	}()
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(WithListenAddrs("not-a-multiaddr"))
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = New(WithConfig(nil))
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = New(WithPreset("unknown"))
	assert.Error(t, err)

	_, err = New(WithKnownPeer("bad-id", "/ip4/127.0.0.1/tcp/1"))
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = New(WithMetrics(""))
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = New(WithIdentitySeed([]byte("short")))
	assert.Error(t, err)
}

func TestNode_Lifecycle(t *testing.T) {
	n := newLocalNode(t, "lifecycle")
	assert.Equal(t, StateIdle, n.State())
	assert.False(t, n.ID().IsEmpty())

	assert.ErrorIs(t, n.Dial("/ip4/127.0.0.1/tcp/1"), ErrNotStarted)

	startNode(t, n)
	assert.Equal(t, StateRunning, n.State())
	require.Len(t, n.ListenAddrs(), 1)
	assert.Contains(t, n.FullAddrs()[0], "/p2p/"+n.ID().String())
	assert.ErrorIs(t, n.Start(context.Background()), ErrAlreadyStarted)

	require.NoError(t, n.Close())
	assert.Equal(t, StateStopped, n.State())
	assert.NoError(t, n.Close())
	assert.ErrorIs(t, n.Start(context.Background()), ErrNodeClosed)
	assert.ErrorIs(t, n.Dial("/ip4/127.0.0.1/tcp/1"), ErrNodeClosed)

	// Close 之后事件通道被关闭
	for range n.Events() {
	}
}

func TestNode_SeedGivesStableID(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	a := newLocalNode(t, "a", WithIdentitySeed(seed))
	b := newLocalNode(t, "b", WithIdentitySeed(seed))
	assert.Equal(t, a.ID(), b.ID())
}

// 两个节点连接后互相取得对方的身份信息
func TestNode_IdentifyBetweenNodes(t *testing.T) {
	a := newLocalNode(t, "node-a")
	startNode(t, a)
	drain(a)

	b := newLocalNode(t, "node-b")
	startNode(t, b)
	drain(b)

	require.NoError(t, b.Connect(a.ID(), a.ListenAddrs()[0].String()))

	require.Eventually(t, func() bool {
		_, okA := a.PeerInfo(b.ID())
		_, okB := b.PeerInfo(a.ID())
		return okA && okB
	}, 5*time.Second, 10*time.Millisecond)

	infoA, _ := b.PeerInfo(a.ID())
	assert.Equal(t, "node-a", infoA.Info.AgentVersion)
	require.Len(t, infoA.Info.ListenAddrs, 1)
	assert.True(t, a.ListenAddrs()[0].Equal(infoA.Info.ListenAddrs[0]))

	assert.Equal(t, []PeerID{b.ID()}, a.Peers())
	assert.Equal(t, []PeerID{a.ID()}, b.Peers())
	assert.Contains(t, a.IdentifiedPeers(), b.ID())

	// A 观测到的 B 的地址加上 B 的监听端口即为 B 的外部地址
	require.Eventually(t, func() bool {
		return slices.ContainsFunc(b.ExternalAddrs(), b.ListenAddrs()[0].Equal)
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, b.Disconnect(a.ID()))
	require.Eventually(t, func() bool {
		return len(a.Peers()) == 0 && len(b.Peers()) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestNode_KnownPeerDialedOnStart(t *testing.T) {
	a := newLocalNode(t, "node-a")
	startNode(t, a)
	drain(a)

	b := newLocalNode(t, "node-b", WithKnownPeer(a.ID().String(), a.ListenAddrs()[0].String()))
	startNode(t, b)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-b.Events():
			if ev.Kind == EventConnectionEstablished {
				assert.Equal(t, a.ID(), ev.Peer)
				return
			}
		case <-deadline:
			t.Fatal("known peer was not dialed")
		}
	}
}

func TestNode_RegistryCollectsSwarmMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	n := newLocalNode(t, "metrics", WithRegistry(reg))
	startNode(t, n)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "p2pcore_swarm_connections")
}

func TestNodeState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "unknown", NodeState(99).String())
}

func TestIsValidPreset(t *testing.T) {
	assert.True(t, IsValidPreset(PresetLocal))
	assert.True(t, IsValidPreset(PresetServer))
	assert.False(t, IsValidPreset("mobile"))
}

func TestVersionInfo(t *testing.T) {
	assert.Contains(t, VersionInfo(), Version)
}
