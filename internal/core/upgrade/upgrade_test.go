package upgrade

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
	"github.com/dep2p/go-p2pcore/pkg/lib/async"
)

// nameUpgrade 测试用升级：输出 "<tag>:<选中的 ID>"
type nameUpgrade struct {
	tag   string
	names []string
}

func (u nameUpgrade) ProtocolNames() []pkgif.ProtocolName {
	out := make([]pkgif.ProtocolName, len(u.names))
	for i, n := range u.names {
		out[i] = pkgif.ProtocolName{Name: n, ID: strings.TrimPrefix(n, "/")}
	}
	return out
}

func (u nameUpgrade) UpgradeInbound(_ context.Context, _ net.Conn, id any) (string, error) {
	return u.tag + ":" + id.(string), nil
}

func (u nameUpgrade) UpgradeOutbound(_ context.Context, _ net.Conn, id any) (string, error) {
	return u.tag + ":" + id.(string), nil
}

type result[T any] struct {
	val T
	err error
}

func runPair[O any](
	t *testing.T,
	listen pkgif.InboundUpgrade[net.Conn, O],
	dial pkgif.OutboundUpgrade[net.Conn, O],
) (result[O], result[O]) {
	t.Helper()
	a, b := net.Pipe()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lc := make(chan result[O], 1)
	go func() {
		v, err := ApplyInbound(ctx, b, listen)
		lc <- result[O]{v, err}
	}()
	v, err := ApplyOutbound(ctx, a, dial)
	return <-lc, result[O]{v, err}
}

func TestApply_PicksDialerPreference(t *testing.T) {
	listen := nameUpgrade{tag: "L", names: []string{"/a", "/b"}}
	dial := nameUpgrade{tag: "D", names: []string{"/c", "/b", "/a"}}

	l, d := runPair[string](t, listen, dial)
	require.NoError(t, l.err)
	require.NoError(t, d.err)
	assert.Equal(t, "L:b", l.val)
	assert.Equal(t, "D:b", d.val)
}

func TestApply_NoCommonProtocol(t *testing.T) {
	listen := nameUpgrade{tag: "L", names: []string{"/x"}}
	dial := nameUpgrade{tag: "D", names: []string{"/y"}}

	l, d := runPair[string](t, listen, dial)
	assert.True(t, IsNegotiationError(d.err))
	assert.Error(t, l.err)

	var ne *NegotiationError
	require.True(t, errors.As(d.err, &ne))
	assert.Equal(t, "dialer", ne.Role)
	assert.Equal(t, []string{"/y"}, ne.Protocols)
}

func TestApply_Denied(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()

	_, err := ApplyOutbound[net.Conn, string](context.Background(), a, Denied[net.Conn, string]())
	assert.ErrorIs(t, err, ErrNoProtocols)
	assert.True(t, IsNegotiationError(err))

	// 连接已被关闭
	_, werr := a.Write([]byte("x"))
	assert.Error(t, werr)
}

func TestApply_ContextCancelClosesConn(t *testing.T) {
	_, b := net.Pipe()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := ApplyInbound[net.Conn, string](ctx, b, nameUpgrade{tag: "L", names: []string{"/a"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestChoice_RoutesToSource(t *testing.T) {
	first := nameUpgrade{tag: "first", names: []string{"/one"}}
	second := nameUpgrade{tag: "second", names: []string{"/two"}}

	choice := Choice[net.Conn, string](first, second)
	names := choice.ProtocolNames()
	require.Len(t, names, 2)
	assert.Equal(t, "/one", names[0].Name)
	assert.Equal(t, "/two", names[1].Name)

	l, d := runPair[string](t, choice, nameUpgrade{tag: "D", names: []string{"/two"}})
	require.NoError(t, l.err)
	require.NoError(t, d.err)
	assert.Equal(t, "second:two", l.val)

	_, err := choice.UpgradeInbound(context.Background(), nil, "raw")
	assert.ErrorIs(t, err, ErrUnknownID)
}

func TestMapAndErase(t *testing.T) {
	up := nameUpgrade{tag: "m", names: []string{"/len"}}
	mapped := Map[net.Conn, string, int](up, func(s string) (int, error) { return len(s), nil })

	out, err := mapped.UpgradeOutbound(context.Background(), nil, "len")
	require.NoError(t, err)
	assert.Equal(t, len("m:len"), out)

	erased := Erase[net.Conn, string](up)
	v, err := erased.UpgradeInbound(context.Background(), nil, "x")
	require.NoError(t, err)
	assert.Equal(t, "m:x", v)

	in := EraseInbound[net.Conn, string](up)
	v, err = in.UpgradeInbound(context.Background(), nil, "y")
	require.NoError(t, err)
	assert.Equal(t, "m:y", v)

	ob := EraseOutbound[net.Conn, string](up)
	v, err = ob.UpgradeOutbound(context.Background(), nil, "z")
	require.NoError(t, err)
	assert.Equal(t, "m:z", v)
	assert.Equal(t, up.ProtocolNames(), ob.ProtocolNames())
}

func TestFutures(t *testing.T) {
	a, b := net.Pipe()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sig := async.NewSignal()
	up := nameUpgrade{tag: "F", names: []string{"/f"}}
	lf := InboundFuture[net.Conn, string](ctx, sig, b, up)
	df := OutboundFuture[net.Conn, string](ctx, sig, a, up)

	lv, err := lf.Wait(ctx)
	require.NoError(t, err)
	dv, err := df.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "F:f", lv)
	assert.Equal(t, "F:f", dv)

	p, err := lf.Poll()
	require.NoError(t, err)
	assert.True(t, p.IsReady())
}
