package muxer

import (
	"errors"

	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

// substream 一个子流的本地状态，全部字段由 Multiplexer.mu 保护
type substream struct {
	id     types.SubstreamID
	stream EngineStream

	// 读方向
	rbuf       []byte
	readEOF    bool
	readErr    error
	readClosed bool

	// 写方向
	wbuf        []byte
	inflight    int
	writeErr    error
	writeClosed bool
	writeDone   bool

	destroyed bool
}

func (s *substream) pendingWrite() int {
	return len(s.wbuf) + s.inflight
}

// addSubstreamLocked 登记新流并启动读写泵
func (m *Multiplexer) addSubstreamLocked(st EngineStream) types.SubstreamID {
	m.nextSub++
	s := &substream{id: m.nextSub, stream: st}
	m.substreams[s.id] = s

	m.wg.Add(2)
	go m.readPump(s)
	go m.writePump(s)
	return s.id
}

// lookupLocked 查找子流，未知标识是前置条件错误
func (m *Multiplexer) lookupLocked(id types.SubstreamID) (*substream, error) {
	s, ok := m.substreams[id]
	if !ok {
		return nil, ErrUnknownSubstream
	}
	return s, nil
}

// releaseLocked 从表中移除子流并在后台关闭（reset 时重置）引擎流
func (m *Multiplexer) releaseLocked(s *substream, reset bool) {
	delete(m.substreams, s.id)
	s.destroyed = true
	s.rbuf = nil
	s.wbuf = nil
	m.notifyLocked()

	graceful := !reset
	st := s.stream
	m.spawnLocked(func() {
		var err error
		if graceful {
			err = st.Close()
		} else {
			err = st.Reset()
		}
		if err != nil && !isGraceful(err) {
			logger.Debug("释放子流失败", "substream", s.id, "error", err)
		}
	})
}

// ============================================================================
//                              读写泵
// ============================================================================

func (m *Multiplexer) readPump(s *substream) {
	defer m.wg.Done()

	buf := make([]byte, m.cfg.ReadChunkSize)
	for {
		m.mu.Lock()
		for !s.destroyed && !s.readClosed && len(s.rbuf)+len(buf) > m.cfg.ReadBufferSize {
			m.cond.Wait()
		}
		stop := s.destroyed || s.readClosed
		m.mu.Unlock()
		if stop {
			return
		}

		n, err := s.stream.Read(buf)

		m.mu.Lock()
		if n > 0 && !s.destroyed && !s.readClosed {
			s.rbuf = append(s.rbuf, buf[:n]...)
		}
		if err != nil {
			if isGraceful(err) {
				s.readEOF = true
			} else {
				s.readErr = err
			}
		}
		m.notifyLocked()
		m.mu.Unlock()

		if err != nil {
			return
		}
	}
}

func (m *Multiplexer) writePump(s *substream) {
	defer m.wg.Done()

	for {
		m.mu.Lock()
		for !s.destroyed && m.connErr == nil && !m.localClosed && len(s.wbuf) == 0 && !(s.writeClosed && !s.writeDone) {
			m.cond.Wait()
		}
		if s.destroyed || m.connErr != nil || (m.localClosed && len(s.wbuf) == 0) {
			m.mu.Unlock()
			return
		}

		if len(s.wbuf) > 0 {
			chunk := s.wbuf
			s.wbuf = nil
			s.inflight = len(chunk)
			m.mu.Unlock()

			_, err := s.stream.Write(chunk)

			m.mu.Lock()
			s.inflight = 0
			if err != nil {
				s.writeErr = err
				m.notifyLocked()
				m.mu.Unlock()
				return
			}
			m.notifyLocked()
			m.mu.Unlock()
			continue
		}

		// 缓冲已清空且请求了写关闭
		m.mu.Unlock()
		err := s.stream.CloseWrite()

		m.mu.Lock()
		s.writeDone = true
		if err != nil && !isGraceful(err) {
			s.writeErr = err
		}
		m.notifyLocked()
		m.mu.Unlock()
		return
	}
}

// ============================================================================
//                              子流操作
// ============================================================================

// ReadSubstream 从读缓冲取数据
//
// 缓冲中的数据总是先于结束或错误交付。
func (m *Multiplexer) ReadSubstream(id types.SubstreamID, buf []byte) (types.Poll[int], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.lookupLocked(id)
	if err != nil {
		return types.Pending[int](), err
	}
	if len(s.rbuf) > 0 {
		n := copy(buf, s.rbuf)
		s.rbuf = s.rbuf[n:]
		if len(s.rbuf) == 0 {
			s.rbuf = nil
		}
		m.cond.Broadcast()
		return types.Ready(n), nil
	}
	if m.connErr != nil {
		return types.Pending[int](), m.connErr
	}
	if s.readErr != nil {
		return types.Pending[int](), s.readErr
	}
	if s.readEOF || s.readClosed || m.localClosed {
		return types.Ended[int](), nil
	}
	return types.Pending[int](), nil
}

// WriteSubstream 把数据放入写缓冲，缓冲满时返回 Pending
func (m *Multiplexer) WriteSubstream(id types.SubstreamID, buf []byte) (types.Poll[int], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.lookupLocked(id)
	if err != nil {
		return types.Pending[int](), err
	}
	if m.connErr != nil {
		return types.Pending[int](), m.connErr
	}
	if s.writeErr != nil {
		return types.Pending[int](), s.writeErr
	}
	if s.writeClosed || m.localClosed {
		return types.Pending[int](), ErrWriteClosed
	}
	if len(buf) == 0 {
		return types.Ready(0), nil
	}

	space := m.cfg.WriteBufferSize - s.pendingWrite()
	if space <= 0 {
		return types.Pending[int](), nil
	}
	n := min(space, len(buf))
	s.wbuf = append(s.wbuf, buf[:n]...)
	m.cond.Broadcast()
	return types.Ready(n), nil
}

// FlushSubstream 写缓冲全部交给引擎后就绪
func (m *Multiplexer) FlushSubstream(id types.SubstreamID) (types.Poll[struct{}], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.lookupLocked(id)
	if err != nil {
		return types.Pending[struct{}](), err
	}
	if m.connErr != nil {
		return types.Pending[struct{}](), m.connErr
	}
	if s.writeErr != nil {
		return types.Pending[struct{}](), s.writeErr
	}
	if s.pendingWrite() > 0 {
		return types.Pending[struct{}](), nil
	}
	return types.Ready(struct{}{}), nil
}

// ShutdownSubstream 半关闭或全关闭子流
//
// 写方向的关闭在写缓冲清空后由写泵执行，完成前返回 Pending。
func (m *Multiplexer) ShutdownSubstream(id types.SubstreamID, mode pkgif.Shutdown) (types.Poll[struct{}], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.lookupLocked(id)
	if err != nil {
		return types.Pending[struct{}](), err
	}
	if m.connErr != nil {
		return types.Pending[struct{}](), m.connErr
	}

	if mode == pkgif.ShutdownRead || mode == pkgif.ShutdownAll {
		if !s.readClosed {
			s.readClosed = true
			s.rbuf = nil
			st := s.stream
			m.spawnLocked(func() { _ = st.CloseRead() })
			m.cond.Broadcast()
		}
		if mode == pkgif.ShutdownRead {
			return types.Ready(struct{}{}), nil
		}
	}

	if m.localClosed {
		// 会话已关闭，写方向随之结束
		return types.Ready(struct{}{}), nil
	}
	if !s.writeClosed {
		s.writeClosed = true
		m.cond.Broadcast()
	}
	if s.writeErr != nil {
		return types.Pending[struct{}](), s.writeErr
	}
	if !s.writeDone {
		return types.Pending[struct{}](), nil
	}
	return types.Ready(struct{}{}), nil
}

// DestroySubstream 释放子流的全部本地状态
func (m *Multiplexer) DestroySubstream(id types.SubstreamID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.lookupLocked(id)
	if err != nil {
		return err
	}
	reset := s.pendingWrite() > 0 || s.readErr != nil || s.writeErr != nil
	m.releaseLocked(s, reset)
	logger.Debug("销毁子流", "substream", id)
	return nil
}

// IsStreamReset 判断错误是否为对端重置子流
func IsStreamReset(err error) bool {
	return errors.Is(err, ErrStreamReset)
}
