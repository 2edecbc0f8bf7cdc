// Package async 提供轮询驱动模型所需的唤醒器与 Future
//
// 核心层的所有操作都是非阻塞的轮询：返回未就绪时，调用方需要在
// 状态变化后再次轮询。Waker 用于通知"状态可能已变化"，
// Future 用一个 goroutine 执行阻塞工作，并以轮询方式暴露结果。
package async

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/dep2p/go-p2pcore/pkg/types"
)

// ErrCancelled Future 已被取消
var ErrCancelled = errors.New("async: future cancelled")

// ============================================================================
//                              Waker
// ============================================================================

// Waker 唤醒等待中的驱动方
//
// Wake 必须是非阻塞的，并且可以被并发调用。
type Waker interface {
	Wake()
}

// WakerFunc 函数适配器
type WakerFunc func()

// Wake 实现 Waker
func (f WakerFunc) Wake() { f() }

// Signal 合并唤醒信号
//
// 多次 Wake 在被消费前只会保留一次通知。
type Signal struct {
	ch chan struct{}
}

// NewSignal 创建信号
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Wake 发出通知（非阻塞）
func (s *Signal) Wake() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// C 返回通知通道
func (s *Signal) C() <-chan struct{} {
	return s.ch
}

// Wait 等待通知或 ctx 结束
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ============================================================================
//                              Future
// ============================================================================

// Future 以轮询方式暴露的异步结果
type Future[T any] struct {
	done   chan struct{}
	cancel context.CancelFunc

	once sync.Once
	val  T
	err  error
}

// Go 在新 goroutine 中执行 fn，完成时唤醒 w（可为 nil）
func Go[T any](ctx context.Context, w Waker, fn func(ctx context.Context) (T, error)) *Future[T] {
	ctx, cancel := context.WithCancel(ctx)
	f := &Future[T]{
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go func() {
		v, err := fn(ctx)
		if !f.complete(v, err) && err == nil {
			// 结果已被丢弃（Future 先被取消），释放可关闭的资源
			if c, ok := any(v).(io.Closer); ok {
				_ = c.Close()
			}
		}
		cancel()
		if w != nil {
			w.Wake()
		}
	}()
	return f
}

// Resolved 返回已完成的 Future
func Resolved[T any](v T) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), cancel: func() {}}
	f.complete(v, nil)
	return f
}

// Failed 返回已失败的 Future
func Failed[T any](err error) *Future[T] {
	var zero T
	f := &Future[T]{done: make(chan struct{}), cancel: func() {}}
	f.complete(zero, err)
	return f
}

func (f *Future[T]) complete(v T, err error) bool {
	stored := false
	f.once.Do(func() {
		f.val, f.err = v, err
		close(f.done)
		stored = true
	})
	return stored
}

// Poll 非阻塞地检查结果
func (f *Future[T]) Poll() (types.Poll[T], error) {
	select {
	case <-f.done:
		if f.err != nil {
			return types.Pending[T](), f.err
		}
		return types.Ready(f.val), nil
	default:
		return types.Pending[T](), nil
	}
}

// Done 返回完成通道
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Cancel 取消执行
//
// 已完成的 Future 不受影响；未完成的 Future 以 ErrCancelled 结束。
func (f *Future[T]) Cancel() {
	f.cancel()
	var zero T
	f.complete(zero, ErrCancelled)
}

// Wait 阻塞等待结果
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
