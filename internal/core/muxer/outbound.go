package muxer

import (
	"context"

	"github.com/dep2p/go-p2pcore/pkg/types"
)

// outbound 一次出站打开请求，字段由 Multiplexer.mu 保护
type outbound struct {
	cancel context.CancelFunc

	done  bool
	sub   types.SubstreamID
	err   error
	ended bool
}

// OpenOutbound 发起出站子流打开
//
// 打开在后台 goroutine 中执行；连接已结束或出错时请求立即完成。
func (m *Multiplexer) OpenOutbound() types.OutboundID {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextOut++
	id := m.nextOut
	o := &outbound{cancel: func() {}}
	m.outbounds[id] = o

	switch {
	case m.connErr != nil:
		o.done, o.err = true, m.connErr
		return id
	case m.localClosed:
		o.done, o.ended = true, true
		return id
	}

	ctx, cancel := context.WithCancel(m.ctx)
	o.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()

		st, err := m.engine.OpenStream(ctx)

		m.mu.Lock()
		defer m.mu.Unlock()

		cur, ok := m.outbounds[id]
		if !ok || cur != o {
			// 请求已被放弃
			if st != nil {
				_ = st.Reset()
			}
			return
		}
		o.done = true
		switch {
		case err == nil && m.localClosed:
			_ = st.Reset()
			o.ended = true
		case err == nil:
			o.sub = m.addSubstreamLocked(st)
			logger.Debug("出站子流已打开", "outbound", id, "substream", o.sub)
		case isGraceful(err) || m.localClosed:
			o.ended = true
		default:
			o.err = err
		}
		m.notifyLocked()
	}()
	return id
}

// PollOutbound 推进出站打开
//
// 就绪后句柄被认领，之后再次轮询返回 ErrUnknownOutbound。
func (m *Multiplexer) PollOutbound(id types.OutboundID) (types.Poll[types.SubstreamID], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.outbounds[id]
	if !ok {
		return types.Pending[types.SubstreamID](), ErrUnknownOutbound
	}
	if m.connErr != nil {
		return types.Pending[types.SubstreamID](), m.connErr
	}
	if !o.done {
		return types.Pending[types.SubstreamID](), nil
	}
	if o.err != nil {
		return types.Pending[types.SubstreamID](), o.err
	}
	if o.ended {
		return types.Ended[types.SubstreamID](), nil
	}
	delete(m.outbounds, id)
	return types.Ready(o.sub), nil
}

// DestroyOutbound 放弃出站打开
//
// 取消进行中的打开；已打开但未认领的子流被重置。
// 未知或已认领的句柄直接忽略。
func (m *Multiplexer) DestroyOutbound(id types.OutboundID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.outbounds[id]
	if !ok {
		return
	}
	delete(m.outbounds, id)
	o.cancel()

	if o.done && o.err == nil && !o.ended {
		if s, ok := m.substreams[o.sub]; ok {
			m.releaseLocked(s, true)
		}
	}
	logger.Debug("放弃出站打开", "outbound", id)
}
