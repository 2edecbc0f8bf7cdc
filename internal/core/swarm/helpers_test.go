package swarm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-p2pcore/internal/core/behaviour"
	"github.com/dep2p/go-p2pcore/internal/core/identity"
	"github.com/dep2p/go-p2pcore/internal/core/muxer"
	"github.com/dep2p/go-p2pcore/internal/core/muxer/yamux"
	"github.com/dep2p/go-p2pcore/internal/core/security/plaintext"
	"github.com/dep2p/go-p2pcore/internal/core/transport"
	"github.com/dep2p/go-p2pcore/internal/core/transport/tcp"
	"github.com/dep2p/go-p2pcore/internal/core/upgrade"
	"github.com/dep2p/go-p2pcore/internal/core/upgrader"
	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

const testProtocol = "/p2pcore/test/1.0.0"

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.DialTimeout = 5 * time.Second
	cfg.SubstreamTimeout = 5 * time.Second
	cfg.PollInterval = 10 * time.Millisecond
	return cfg
}

// newTestSwarm 创建基于 TCP + plaintext + yamux 的 Swarm
func newTestSwarm[Out any](t *testing.T, b Behaviour[Out], opts ...Option) (*Swarm[Out], *identity.Identity) {
	t.Helper()
	id, err := identity.Generate()
	require.NoError(t, err)

	u, err := upgrader.New(plaintext.New(id), []muxer.ConnUpgrade{yamux.DefaultConfig()}, upgrader.NewConfig())
	require.NoError(t, err)
	raw := tcp.New(tcp.DefaultConfig())
	tpt := transport.WithUpgrader[*upgrader.UpgradedConn](raw, u)

	s, err := New[Out](id.PeerID(), tpt, b, append([]Option{WithConfig(testConfig())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
		_ = raw.Close()
	})
	return s, id
}

func listenLocal[Out any](t *testing.T, s *Swarm[Out]) types.Multiaddr {
	t.Helper()
	addr, err := types.NewMultiaddr("/ip4/127.0.0.1/tcp/0")
	require.NoError(t, err)
	bound, err := s.Listen(addr)
	require.NoError(t, err)
	return bound
}

// runSwarm 在后台运行 Swarm，事件写入返回的通道
func runSwarm[Out any](t *testing.T, s *Swarm[Out]) <-chan Event[Out] {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan Event[Out], 256)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx, func(ev Event[Out]) {
			select {
			case ch <- ev:
			case <-ctx.Done():
			}
		})
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ch
}

// waitEvent 等待指定类型的事件，跳过其他事件
func waitEvent[Out any](t *testing.T, ch <-chan Event[Out], kind EventKind) Event[Out] {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			require.FailNow(t, "timed out waiting for event", "kind %s", kind)
		}
	}
}

// ============================================================================
//                              测试用升级与 Behaviour
// ============================================================================

// streamUpgrade 协商 testProtocol 后原样返回子流
type streamUpgrade struct{}

func (streamUpgrade) ProtocolNames() []pkgif.ProtocolName {
	return []pkgif.ProtocolName{{Name: testProtocol}}
}

func (streamUpgrade) UpgradeInbound(_ context.Context, s pkgif.Substream, _ any) (any, error) {
	return s, nil
}

func (streamUpgrade) UpgradeOutbound(_ context.Context, s pkgif.Substream, _ any) (any, error) {
	return s, nil
}

type outboundResult struct {
	out  any
	info any
}

type dialFailure struct {
	conn types.ConnectionID
	info any
	err  error
}

// recordingBehaviour 记录 Swarm 的所有通知，动作由测试预先排队
type recordingBehaviour struct {
	mu           sync.Mutex
	listen       pkgif.SubstreamInbound
	connected    []types.ConnectedPoint
	disconnected []types.ConnectedPoint
	inbound      []any
	outbound     []outboundResult
	dialErrors   []dialFailure
	actions      *behaviour.Queue[pkgif.BehaviourAction[string]]
}

var _ Behaviour[string] = (*recordingBehaviour)(nil)

func newRecordingBehaviour() *recordingBehaviour {
	return &recordingBehaviour{
		listen:  streamUpgrade{},
		actions: behaviour.NewQueue[pkgif.BehaviourAction[string]](),
	}
}

func (b *recordingBehaviour) push(a pkgif.BehaviourAction[string]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.actions.Push(a)
}

func (b *recordingBehaviour) InjectConnected(_ types.PeerID, point types.ConnectedPoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = append(b.connected, point)
}

func (b *recordingBehaviour) InjectDisconnected(_ types.PeerID, point types.ConnectedPoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disconnected = append(b.disconnected, point)
}

func (b *recordingBehaviour) ListenProtocol(types.PeerID, types.ConnectionID) pkgif.SubstreamInbound {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listen == nil {
		return upgrade.Denied[pkgif.Substream, any]()
	}
	return b.listen
}

func (b *recordingBehaviour) InjectFullyNegotiatedInbound(_ types.PeerID, _ types.ConnectionID, out any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inbound = append(b.inbound, out)
}

func (b *recordingBehaviour) InjectFullyNegotiatedOutbound(_ types.PeerID, _ types.ConnectionID, out any, info any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outbound = append(b.outbound, outboundResult{out: out, info: info})
}

func (b *recordingBehaviour) InjectDialUpgradeError(_ types.PeerID, conn types.ConnectionID, info any, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dialErrors = append(b.dialErrors, dialFailure{conn: conn, info: info, err: err})
}

func (b *recordingBehaviour) Poll() types.Poll[pkgif.BehaviourAction[string]] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.actions.PollPop()
}

// recorded recordingBehaviour 的一份快照
type recorded struct {
	connected    []types.ConnectedPoint
	disconnected []types.ConnectedPoint
	inbound      []any
	outbound     []outboundResult
	dialErrors   []dialFailure
}

func (b *recordingBehaviour) snapshot() recorded {
	b.mu.Lock()
	defer b.mu.Unlock()
	return recorded{
		connected:    append([]types.ConnectedPoint(nil), b.connected...),
		disconnected: append([]types.ConnectedPoint(nil), b.disconnected...),
		inbound:      append([]any(nil), b.inbound...),
		outbound:     append([]outboundResult(nil), b.outbound...),
		dialErrors:   append([]dialFailure(nil), b.dialErrors...),
	}
}
