package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeerID(t *testing.T) {
	id := PeerIDFromBytes([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	require.NoError(t, id.Validate())
	assert.Len(t, id.ShortString(), 8)

	parsed, err := ParsePeerID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParsePeerID("")
	assert.ErrorIs(t, err, ErrInvalidPeerID)
	_, err = ParsePeerID("0OIl")
	assert.ErrorIs(t, err, ErrInvalidPeerID)

	assert.Equal(t, "abc", PeerID("abc").ShortString())
	assert.True(t, EmptyPeerID.IsEmpty())
}

func TestConnectionID_String(t *testing.T) {
	assert.Equal(t, "conn-7", ConnectionID(7).String())
}

func TestPoll(t *testing.T) {
	p := Pending[int]()
	assert.True(t, p.IsPending())
	assert.Equal(t, "pending", p.State.String())

	r := Ready(21)
	assert.True(t, r.IsReady())
	assert.Equal(t, 21, r.Value)

	e := Ended[int]()
	assert.True(t, e.IsEnded())

	double := func(v int) int { return v * 2 }
	assert.Equal(t, 42, MapPoll(r, double).Value)
	assert.True(t, MapPoll(p, double).IsPending())
	assert.True(t, MapPoll(e, double).IsEnded())
	assert.Equal(t, "unknown", PollState(9).String())
}

func TestConnectedPoint(t *testing.T) {
	remote := MustMultiaddr("/ip4/10.0.0.1/tcp/4001")
	listen := MustMultiaddr("/ip4/0.0.0.0/tcp/4002")
	back := MustMultiaddr("/ip4/10.0.0.2/tcp/50000")

	d := Dialer(1, remote)
	assert.True(t, d.IsDialer())
	assert.True(t, remote.Equal(d.RemoteAddr()))
	assert.Equal(t, "outbound", d.Direction.String())
	assert.Contains(t, d.String(), "dialer")

	l := Listener(2, listen, back)
	assert.False(t, l.IsDialer())
	assert.True(t, back.Equal(l.RemoteAddr()))
	assert.Equal(t, "inbound", l.Direction.String())
	assert.Contains(t, l.String(), "listener")

	assert.Equal(t, "unknown", DirUnknown.String())
}

func TestMultiaddrHelpers(t *testing.T) {
	addrs := StringsToMultiaddrs([]string{"/ip4/127.0.0.1/tcp/1", "garbage", "/ip6/::1/tcp/2"})
	require.Len(t, addrs, 2)
	assert.Equal(t, []string{"/ip4/127.0.0.1/tcp/1", "/ip6/::1/tcp/2"}, MultiaddrsToStrings(addrs))

	_, err := NewMultiaddr("/ip4/not-an-ip")
	assert.Error(t, err)
}
