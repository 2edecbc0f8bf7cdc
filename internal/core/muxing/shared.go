package muxing

import (
	"sync"
	"sync/atomic"

	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
	"github.com/dep2p/go-p2pcore/pkg/lib/log"
)

var logger = log.Logger("core/muxing")

// sharedState 所有句柄共享的状态
type sharedState struct {
	muxer pkgif.StreamMuxer
	refs  atomic.Int64

	closeOnce sync.Once
	closeErr  error
}

// SharedMuxer 多路复用器的一个引用
//
// 每个句柄必须 Release 一次（重复 Release 无副作用）。
type SharedMuxer struct {
	state    *sharedState
	released atomic.Bool
}

// Share 创建第一个引用
func Share(m pkgif.StreamMuxer) *SharedMuxer {
	st := &sharedState{muxer: m}
	st.refs.Store(1)
	return &SharedMuxer{state: st}
}

// Muxer 返回被共享的多路复用器
func (s *SharedMuxer) Muxer() pkgif.StreamMuxer {
	return s.state.muxer
}

// Clone 增加一个引用
func (s *SharedMuxer) Clone() *SharedMuxer {
	s.state.refs.Add(1)
	return &SharedMuxer{state: s.state}
}

// Refs 当前引用数
func (s *SharedMuxer) Refs() int64 {
	return s.state.refs.Load()
}

// Release 释放本句柄，最后一个引用释放时关闭多路复用器
func (s *SharedMuxer) Release() error {
	if !s.released.CompareAndSwap(false, true) {
		return nil
	}
	if s.state.refs.Add(-1) > 0 {
		return nil
	}
	s.state.closeOnce.Do(func() {
		logger.Debug("最后一个引用已释放，关闭多路复用器")
		s.state.closeErr = s.state.muxer.Close()
	})
	return s.state.closeErr
}
