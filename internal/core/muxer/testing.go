package muxer

import (
	"context"
	"io"
	"sync"
)

// ============================================================================
//                              内存引擎（测试用）
// ============================================================================

// MemEngine 进程内引擎，每个流由两条 io.Pipe 组成
//
// 供本包及上层包测试使用，不依赖网络。
type MemEngine struct {
	peer   *MemEngine
	accept chan EngineStream

	mu        sync.Mutex
	closed    chan struct{}
	reason    error
	streams   []*memStream
	stallOpen bool
}

// NewMemEnginePair 创建一对相连的内存引擎
func NewMemEnginePair() (*MemEngine, *MemEngine) {
	a := &MemEngine{accept: make(chan EngineStream, 1024), closed: make(chan struct{})}
	b := &MemEngine{accept: make(chan EngineStream, 1024), closed: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

// StallOpens 让之后的 OpenStream 一直阻塞直到 ctx 取消
func (e *MemEngine) StallOpens() {
	e.mu.Lock()
	e.stallOpen = true
	e.mu.Unlock()
}

// OpenStream 实现 Engine
func (e *MemEngine) OpenStream(ctx context.Context) (EngineStream, error) {
	e.mu.Lock()
	stall := e.stallOpen
	e.mu.Unlock()
	if stall {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	local := &memStream{r: ar, w: aw}
	remote := &memStream{r: br, w: bw}

	if err := e.track(local); err != nil {
		return nil, err
	}
	if err := e.peer.track(remote); err != nil {
		return nil, err
	}

	select {
	case e.peer.accept <- remote:
		return local, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AcceptStream 实现 Engine
//
// 关闭前已送达的流仍然先被交付。
func (e *MemEngine) AcceptStream() (EngineStream, error) {
	select {
	case s := <-e.accept:
		return s, nil
	case <-e.closed:
	}
	select {
	case s := <-e.accept:
		return s, nil
	default:
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return nil, e.reason
}

// Close 实现 Engine：本端看到 ErrConnClosed，对端看到 io.EOF
func (e *MemEngine) Close() error {
	e.shutdown(ErrConnClosed, io.EOF)
	e.peer.shutdown(io.EOF, io.EOF)
	return nil
}

// Fail 模拟连接错误：两端都以 err 结束
func (e *MemEngine) Fail(err error) {
	e.shutdown(err, err)
	e.peer.shutdown(err, err)
}

// IsClosed 实现 Engine
func (e *MemEngine) IsClosed() bool {
	select {
	case <-e.closed:
		return true
	default:
		return false
	}
}

func (e *MemEngine) track(s *memStream) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.IsClosed() {
		return e.reason
	}
	e.streams = append(e.streams, s)
	return nil
}

func (e *MemEngine) shutdown(reason, streamErr error) {
	e.mu.Lock()
	if e.IsClosed() {
		e.mu.Unlock()
		return
	}
	e.reason = reason
	close(e.closed)
	streams := e.streams
	e.streams = nil
	e.mu.Unlock()

	for _, s := range streams {
		s.abort(streamErr)
	}
}

// memStream 内存流
type memStream struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (s *memStream) Read(p []byte) (int, error)  { return s.r.Read(p) }
func (s *memStream) Write(p []byte) (int, error) { return s.w.Write(p) }
func (s *memStream) CloseWrite() error           { return s.w.Close() }
func (s *memStream) CloseRead() error            { return s.r.Close() }

func (s *memStream) Close() error {
	_ = s.w.Close()
	return s.r.Close()
}

func (s *memStream) Reset() error {
	s.abort(ErrStreamReset)
	return nil
}

func (s *memStream) abort(err error) {
	_ = s.w.CloseWithError(err)
	_ = s.r.CloseWithError(err)
}
