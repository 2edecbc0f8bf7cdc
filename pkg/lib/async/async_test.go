package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignal_Coalesces(t *testing.T) {
	s := NewSignal()
	s.Wake()
	s.Wake()
	s.Wake()

	require.NoError(t, s.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Wait(ctx), context.DeadlineExceeded)
}

func TestWakerFunc(t *testing.T) {
	var n atomic.Int32
	w := WakerFunc(func() { n.Add(1) })
	w.Wake()
	assert.Equal(t, int32(1), n.Load())
}

func TestFuture_ReadyWakes(t *testing.T) {
	s := NewSignal()
	release := make(chan struct{})
	f := Go(context.Background(), s, func(context.Context) (int, error) {
		<-release
		return 7, nil
	})

	p, err := f.Poll()
	require.NoError(t, err)
	assert.True(t, p.IsPending())

	close(release)
	require.NoError(t, s.Wait(context.Background()))

	p, err = f.Poll()
	require.NoError(t, err)
	require.True(t, p.IsReady())
	assert.Equal(t, 7, p.Value)
}

func TestFuture_ErrorIsSticky(t *testing.T) {
	boom := errors.New("boom")
	f := Go(context.Background(), nil, func(context.Context) (int, error) {
		return 0, boom
	})
	<-f.Done()

	for i := 0; i < 2; i++ {
		_, err := f.Poll()
		assert.ErrorIs(t, err, boom)
	}
}

func TestFuture_CancelStopsWork(t *testing.T) {
	stopped := make(chan struct{})
	f := Go(context.Background(), nil, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		close(stopped)
		return 0, ctx.Err()
	})
	f.Cancel()

	_, err := f.Poll()
	assert.ErrorIs(t, err, ErrCancelled)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("cancel did not reach the worker")
	}
}

type closer struct{ closed atomic.Bool }

func (c *closer) Close() error {
	c.closed.Store(true)
	return nil
}

// 取消后才产生的可关闭结果被关闭，不会泄漏
func TestFuture_CancelClosesLateResult(t *testing.T) {
	c := &closer{}
	release := make(chan struct{})
	done := make(chan struct{})
	f := Go(context.Background(), WakerFunc(func() { close(done) }), func(context.Context) (*closer, error) {
		<-release
		return c, nil
	})
	f.Cancel()
	close(release)
	<-done

	assert.True(t, c.closed.Load())
}

func TestResolvedAndFailed(t *testing.T) {
	v, err := Resolved("ok").Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	boom := errors.New("boom")
	_, err = Failed[string](boom).Wait(context.Background())
	assert.ErrorIs(t, err, boom)

	f := Resolved(1)
	f.Cancel()
	p, err := f.Poll()
	require.NoError(t, err)
	assert.True(t, p.IsReady())
}

func TestFuture_WaitHonoursContext(t *testing.T) {
	f := Go(context.Background(), nil, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	defer f.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
