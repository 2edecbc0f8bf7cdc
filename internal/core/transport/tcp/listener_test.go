package tcp

import (
	"errors"
	"net"
	"os"
	"sync/atomic"
	"syscall"
	"testing"

	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyListener 前 failures 次 Accept 返回 err，之后交给真实监听器
type flakyListener struct {
	manet.Listener
	failures atomic.Int32
	err      error
}

func (f *flakyListener) Accept() (manet.Conn, error) {
	if f.failures.Add(-1) >= 0 {
		return nil, f.err
	}
	return f.Listener.Accept()
}

func newFlakyListener(t *testing.T, failures int32, err error) *flakyListener {
	t.Helper()
	ml, err2 := manet.Listen(ma.StringCast("/ip4/127.0.0.1/tcp/0"))
	require.NoError(t, err2)
	f := &flakyListener{Listener: ml, err: err}
	f.failures.Store(failures)
	return f
}

func TestListener_TemporaryAcceptErrorRetries(t *testing.T) {
	emfile := &net.OpError{Op: "accept", Net: "tcp", Err: os.NewSyscallError("accept", syscall.EMFILE)}
	fl := newFlakyListener(t, 3, emfile)
	l := newListener(fl, 8, nil)
	defer l.Close()

	conn, err := manet.Dial(l.Addr())
	require.NoError(t, err)
	defer conn.Close()

	p := waitEvent(t, l)
	require.True(t, p.IsReady())
	assert.NotNil(t, p.Value.RemoteAddr)
	up, err := p.Value.Upgrade.Poll()
	require.NoError(t, err)
	require.True(t, up.IsReady())
	_ = up.Value.Close()
}

func TestListener_PermanentAcceptErrorEnds(t *testing.T) {
	fl := newFlakyListener(t, 1, errors.New("listener broken"))
	l := newListener(fl, 8, nil)
	defer l.Close()

	p := waitEvent(t, l)
	assert.True(t, p.IsEnded())
}
