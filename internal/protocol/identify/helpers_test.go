package identify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-p2pcore/internal/core/muxer"
	"github.com/dep2p/go-p2pcore/internal/core/muxing"
	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
)

// substreamPair 在一对内存多路复用连接上打开一条子流，返回两端
func substreamPair(t *testing.T) (pkgif.Substream, pkgif.Substream) {
	t.Helper()
	ea, eb := muxer.NewMemEnginePair()
	a := muxing.Share(muxer.New(ea, muxer.DefaultConfig()))
	b := muxing.Share(muxer.New(eb, muxer.DefaultConfig()))
	t.Cleanup(func() {
		_ = a.Release()
		_ = b.Release()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := muxing.OutboundFromRef(ctx, a)
	require.NoError(t, err)
	in, err := muxing.InboundFromRef(ctx, b)
	require.NoError(t, err)
	return out, in
}
