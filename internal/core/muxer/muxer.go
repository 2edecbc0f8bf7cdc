package muxer

import (
	"context"
	"sync"

	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
	"github.com/dep2p/go-p2pcore/pkg/lib/async"
	"github.com/dep2p/go-p2pcore/pkg/lib/log"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

var logger = log.Logger("core/muxer")

// Multiplexer StreamMuxer 的轮询实现
//
// 所有方法都可以被多个 goroutine 并发调用。内部状态由 mu 保护，
// cond 与 mu 共享锁，用于唤醒等待缓冲空间或数据的读写泵。
type Multiplexer struct {
	engine Engine
	cfg    Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	cond *sync.Cond

	// connErr 粘滞的连接错误
	connErr error
	// inboundEnded 会话不会再产生入站子流
	inboundEnded bool
	// localClosed 本端已发起 Shutdown
	localClosed bool
	// waiting Close 已进入 wg.Wait，之后不再向 wg 登记
	waiting   bool
	closeDone chan struct{}
	closeErr    error

	inbound    []types.SubstreamID
	substreams map[types.SubstreamID]*substream
	nextSub    types.SubstreamID

	outbounds map[types.OutboundID]*outbound
	nextOut   types.OutboundID

	wakers    map[uint64]async.Waker
	nextWaker uint64
}

var _ pkgif.StreamMuxer = (*Multiplexer)(nil)

// New 包装引擎会话并启动接受循环
func New(engine Engine, cfg Config) *Multiplexer {
	if err := cfg.Validate(); err != nil {
		logger.Warn("muxer 配置无效，使用默认配置", "error", err)
		cfg = DefaultConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Multiplexer{
		engine:     engine,
		cfg:        cfg,
		ctx:        ctx,
		cancel:     cancel,
		substreams: make(map[types.SubstreamID]*substream),
		outbounds:  make(map[types.OutboundID]*outbound),
		wakers:     make(map[uint64]async.Waker),
	}
	m.cond = sync.NewCond(&m.mu)

	m.wg.Add(1)
	go m.acceptLoop()
	return m
}

// ============================================================================
//                              唤醒
// ============================================================================

// Subscribe 注册唤醒器
//
// Wake 在持有内部锁时被调用，必须非阻塞，且不得回调 Multiplexer。
func (m *Multiplexer) Subscribe(w async.Waker) func() {
	m.mu.Lock()
	key := m.nextWaker
	m.nextWaker++
	m.wakers[key] = w
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.wakers, key)
		m.mu.Unlock()
	}
}

// notifyLocked 唤醒泵与订阅者
func (m *Multiplexer) notifyLocked() {
	m.cond.Broadcast()
	for _, w := range m.wakers {
		w.Wake()
	}
}

// ============================================================================
//                              入站
// ============================================================================

func (m *Multiplexer) acceptLoop() {
	defer m.wg.Done()

	for {
		st, err := m.engine.AcceptStream()

		m.mu.Lock()
		if err != nil {
			m.endInboundLocked(err)
			m.mu.Unlock()
			return
		}
		if m.localClosed || m.connErr != nil {
			m.mu.Unlock()
			_ = st.Reset()
			return
		}
		if len(m.inbound) >= m.cfg.MaxPendingInbound {
			m.mu.Unlock()
			logger.Debug("入站子流队列已满，重置新流", "limit", m.cfg.MaxPendingInbound)
			_ = st.Reset()
			continue
		}
		id := m.addSubstreamLocked(st)
		m.inbound = append(m.inbound, id)
		logger.Debug("接受入站子流", "substream", id)
		m.notifyLocked()
		m.mu.Unlock()
	}
}

// endInboundLocked 记录接受循环的终止原因
func (m *Multiplexer) endInboundLocked(err error) {
	m.inboundEnded = true
	if !m.localClosed && !isGraceful(err) && m.connErr == nil {
		m.connErr = err
		logger.Error("多路复用连接出错", "error", err)
	} else {
		logger.Debug("多路复用连接入站结束", "reason", err)
	}
	m.notifyLocked()
}

// PollInbound 推进下一个入站子流的接受
func (m *Multiplexer) PollInbound() (types.Poll[types.SubstreamID], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connErr != nil {
		return types.Pending[types.SubstreamID](), m.connErr
	}
	if m.localClosed {
		return types.Ended[types.SubstreamID](), nil
	}
	if len(m.inbound) > 0 {
		id := m.inbound[0]
		m.inbound = m.inbound[1:]
		return types.Ready(id), nil
	}
	if m.inboundEnded {
		return types.Ended[types.SubstreamID](), nil
	}
	return types.Pending[types.SubstreamID](), nil
}

// ============================================================================
//                              连接级操作
// ============================================================================

// Shutdown 关闭整个连接
//
// 底层会话没有连接级半关闭，任何模式都会完整关闭会话。
// 第一次调用在后台启动关闭，完成前返回 Pending。
func (m *Multiplexer) Shutdown(_ pkgif.Shutdown) (types.Poll[struct{}], error) {
	m.mu.Lock()
	done := m.startCloseLocked()
	m.mu.Unlock()

	select {
	case <-done:
		return types.Ready(struct{}{}), nil
	default:
		return types.Pending[struct{}](), nil
	}
}

// startCloseLocked 启动后台关闭，返回完成通道
func (m *Multiplexer) startCloseLocked() chan struct{} {
	if m.closeDone != nil {
		return m.closeDone
	}
	m.localClosed = true
	m.closeDone = make(chan struct{})

	pending := m.inbound
	m.inbound = nil
	for _, id := range pending {
		if s, ok := m.substreams[id]; ok {
			m.releaseLocked(s, true)
		}
	}
	m.notifyLocked()

	go func() {
		err := m.engine.Close()
		m.cancel()

		m.mu.Lock()
		m.closeErr = err
		close(m.closeDone)
		m.notifyLocked()
		m.mu.Unlock()
		logger.Debug("多路复用连接已关闭")
	}()
	return m.closeDone
}

// spawnLocked 在后台执行 fn
//
// Close 进入等待后启动的任务不登记到 wg，只关闭已失效会话上的引擎流。
func (m *Multiplexer) spawnLocked(fn func()) {
	if m.waiting {
		go fn()
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn()
	}()
}

// FlushAll 等待所有子流的写缓冲清空
func (m *Multiplexer) FlushAll() (types.Poll[struct{}], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connErr != nil {
		return types.Pending[struct{}](), m.connErr
	}
	for _, s := range m.substreams {
		if s.writeErr != nil {
			return types.Pending[struct{}](), s.writeErr
		}
		if s.pendingWrite() > 0 {
			return types.Pending[struct{}](), nil
		}
	}
	return types.Ready(struct{}{}), nil
}

// Close 关闭连接并等待所有内部 goroutine 退出
func (m *Multiplexer) Close() error {
	m.mu.Lock()
	done := m.startCloseLocked()
	m.mu.Unlock()

	<-done
	m.mu.Lock()
	m.waiting = true
	m.mu.Unlock()
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	if isGraceful(m.closeErr) {
		return nil
	}
	return m.closeErr
}

// Err 返回粘滞的连接错误（没有时为 nil）
func (m *Multiplexer) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connErr
}

// NumSubstreams 当前未销毁的子流数量
func (m *Multiplexer) NumSubstreams() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.substreams)
}
