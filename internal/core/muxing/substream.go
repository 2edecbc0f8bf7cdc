package muxing

import (
	"context"
	"errors"
	"io"
	"sync"

	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
	"github.com/dep2p/go-p2pcore/pkg/lib/async"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

// ErrMuxerClosed 连接已结束，无法再打开子流
var ErrMuxerClosed = errors.New("muxing: multiplexer closed")

// SubstreamRef 一个子流的独占句柄
//
// 读和写可以分别由两个 goroutine 并发调用；同一方向不允许并发。
type SubstreamRef struct {
	shared *SharedMuxer
	id     types.SubstreamID

	rsig   *async.Signal
	wsig   *async.Signal
	unsubs []func()

	closeOnce sync.Once
	closeErr  error
}

var _ pkgif.Substream = (*SubstreamRef)(nil)

// NewSubstreamRef 为子流 id 创建句柄，内部持有 shared 的一个新引用
func NewSubstreamRef(shared *SharedMuxer, id types.SubstreamID) *SubstreamRef {
	r := &SubstreamRef{
		shared: shared.Clone(),
		id:     id,
		rsig:   async.NewSignal(),
		wsig:   async.NewSignal(),
	}
	m := shared.Muxer()
	r.unsubs = append(r.unsubs, m.Subscribe(r.rsig), m.Subscribe(r.wsig))
	return r
}

// ID 子流标识
func (r *SubstreamRef) ID() types.SubstreamID { return r.id }

func (r *SubstreamRef) muxer() pkgif.StreamMuxer { return r.shared.Muxer() }

// ============================================================================
//                              轮询透传
// ============================================================================

// PollRead 非阻塞读取
func (r *SubstreamRef) PollRead(p []byte) (types.Poll[int], error) {
	return r.muxer().ReadSubstream(r.id, p)
}

// PollWrite 非阻塞写入
func (r *SubstreamRef) PollWrite(p []byte) (types.Poll[int], error) {
	return r.muxer().WriteSubstream(r.id, p)
}

// PollFlush 非阻塞刷新
func (r *SubstreamRef) PollFlush() (types.Poll[struct{}], error) {
	return r.muxer().FlushSubstream(r.id)
}

// PollShutdown 非阻塞关闭
func (r *SubstreamRef) PollShutdown(mode pkgif.Shutdown) (types.Poll[struct{}], error) {
	return r.muxer().ShutdownSubstream(r.id, mode)
}

// ============================================================================
//                              阻塞接口
// ============================================================================

// Read 实现 io.Reader；子流结束时返回 io.EOF
func (r *SubstreamRef) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		res, err := r.PollRead(p)
		if err != nil {
			return 0, err
		}
		switch {
		case res.IsEnded():
			return 0, io.EOF
		case res.IsReady():
			return res.Value, nil
		}
		<-r.rsig.C()
	}
}

// Write 实现 io.Writer，写完全部数据或出错才返回
func (r *SubstreamRef) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		res, err := r.PollWrite(p[written:])
		if err != nil {
			return written, err
		}
		if res.IsReady() {
			written += res.Value
			continue
		}
		<-r.wsig.C()
	}
	return written, nil
}

// Flush 等待已写入数据全部交给引擎
func (r *SubstreamRef) Flush() error {
	return r.waitWrite(r.PollFlush)
}

// CloseWrite 半关闭写方向，等待已写入数据发出
func (r *SubstreamRef) CloseWrite() error {
	return r.waitWrite(func() (types.Poll[struct{}], error) {
		return r.PollShutdown(pkgif.ShutdownWrite)
	})
}

func (r *SubstreamRef) waitWrite(f func() (types.Poll[struct{}], error)) error {
	for {
		res, err := f()
		if err != nil {
			return err
		}
		if !res.IsPending() {
			return nil
		}
		<-r.wsig.C()
	}
}

// Close 销毁子流并释放引用
//
// 未刷新的数据会被丢弃，需要送达时先调用 CloseWrite。重复调用无副作用。
func (r *SubstreamRef) Close() error {
	r.closeOnce.Do(func() {
		err := r.muxer().DestroySubstream(r.id)
		for _, unsub := range r.unsubs {
			unsub()
		}
		// 唤醒可能仍阻塞在另一方向上的调用方
		r.rsig.Wake()
		r.wsig.Wake()
		if rerr := r.shared.Release(); err == nil {
			err = rerr
		}
		r.closeErr = err
	})
	return r.closeErr
}

// ============================================================================
//                              驱动轮询
// ============================================================================

// InboundFromRef 等待下一个入站子流
//
// 连接有序结束时返回 io.EOF。
func InboundFromRef(ctx context.Context, shared *SharedMuxer) (*SubstreamRef, error) {
	m := shared.Muxer()
	sig := async.NewSignal()
	unsub := m.Subscribe(sig)
	defer unsub()

	for {
		res, err := m.PollInbound()
		if err != nil {
			return nil, err
		}
		switch {
		case res.IsEnded():
			return nil, io.EOF
		case res.IsReady():
			return NewSubstreamRef(shared, res.Value), nil
		}
		if err := sig.Wait(ctx); err != nil {
			return nil, err
		}
	}
}

// OutboundFromRef 打开一个出站子流
//
// ctx 取消或失败时放弃该打开请求（DestroyOutbound）。
func OutboundFromRef(ctx context.Context, shared *SharedMuxer) (*SubstreamRef, error) {
	m := shared.Muxer()
	sig := async.NewSignal()
	unsub := m.Subscribe(sig)
	defer unsub()

	oid := m.OpenOutbound()
	for {
		res, err := m.PollOutbound(oid)
		if err != nil {
			m.DestroyOutbound(oid)
			return nil, err
		}
		switch {
		case res.IsEnded():
			m.DestroyOutbound(oid)
			return nil, ErrMuxerClosed
		case res.IsReady():
			return NewSubstreamRef(shared, res.Value), nil
		}
		if err := sig.Wait(ctx); err != nil {
			m.DestroyOutbound(oid)
			return nil, err
		}
	}
}
