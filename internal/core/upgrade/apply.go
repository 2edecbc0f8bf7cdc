package upgrade

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	mss "github.com/multiformats/go-multistream"

	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
	"github.com/dep2p/go-p2pcore/pkg/lib/async"
	"github.com/dep2p/go-p2pcore/pkg/lib/log"
)

var logger = log.Logger("core/upgrade")

// deadliner 支持截止时间的连接（net.Conn）
type deadliner interface {
	SetDeadline(t time.Time) error
}

// ApplyInbound 以监听方身份协商并执行入站升级
//
// 任何失败都会关闭 conn。
func ApplyInbound[C io.ReadWriteCloser, O any](ctx context.Context, conn C, up pkgif.InboundUpgrade[C, O]) (O, error) {
	var zero O
	names := up.ProtocolNames()
	id, err := negotiate(ctx, conn, names, true)
	if err != nil {
		_ = conn.Close()
		return zero, err
	}
	out, err := up.UpgradeInbound(ctx, conn, id)
	if err != nil {
		_ = conn.Close()
		return zero, err
	}
	return out, nil
}

// ApplyOutbound 以拨号方身份按偏好顺序协商并执行出站升级
func ApplyOutbound[C io.ReadWriteCloser, O any](ctx context.Context, conn C, up pkgif.OutboundUpgrade[C, O]) (O, error) {
	var zero O
	names := up.ProtocolNames()
	id, err := negotiate(ctx, conn, names, false)
	if err != nil {
		_ = conn.Close()
		return zero, err
	}
	out, err := up.UpgradeOutbound(ctx, conn, id)
	if err != nil {
		_ = conn.Close()
		return zero, err
	}
	return out, nil
}

// InboundFuture 在后台执行 ApplyInbound，完成时唤醒 w
func InboundFuture[C io.ReadWriteCloser, O any](ctx context.Context, w async.Waker, conn C, up pkgif.InboundUpgrade[C, O]) *async.Future[O] {
	return async.Go(ctx, w, func(ctx context.Context) (O, error) {
		return ApplyInbound(ctx, conn, up)
	})
}

// OutboundFuture 在后台执行 ApplyOutbound，完成时唤醒 w
func OutboundFuture[C io.ReadWriteCloser, O any](ctx context.Context, w async.Waker, conn C, up pkgif.OutboundUpgrade[C, O]) *async.Future[O] {
	return async.Go(ctx, w, func(ctx context.Context) (O, error) {
		return ApplyOutbound(ctx, conn, up)
	})
}

// negotiate 协商协议名称，返回选中名称对应的 ID
func negotiate(ctx context.Context, conn io.ReadWriteCloser, names []pkgif.ProtocolName, listener bool) (any, error) {
	role := "dialer"
	if listener {
		role = "listener"
	}
	protos := make([]string, len(names))
	for i, n := range names {
		protos[i] = n.Name
	}
	fail := func(err error) error {
		return &NegotiationError{Role: role, Protocols: protos, Err: err}
	}
	if len(names) == 0 {
		return nil, fail(ErrNoProtocols)
	}

	if d, ok := conn.(deadliner); ok {
		if deadline, has := ctx.Deadline(); has {
			_ = d.SetDeadline(deadline)
			defer d.SetDeadline(time.Time{}) // 清除超时
		}
	}
	// ctx 取消时关闭连接，打断阻塞中的读写
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	var selected string
	var err error
	if listener {
		m := mss.NewMultistreamMuxer[string]()
		for _, p := range protos {
			m.AddHandler(p, nil)
		}
		selected, _, err = m.Negotiate(conn)
	} else {
		selected, err = mss.SelectOneOf(protos, conn)
	}
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			err = cerr
		} else if errors.Is(err, os.ErrDeadlineExceeded) {
			err = context.DeadlineExceeded
		}
		logger.Debug("协议协商失败", "role", role, "protocols", protos, "error", err)
		return nil, fail(err)
	}

	for _, n := range names {
		if n.Name == selected {
			logger.Debug("协议协商成功", "role", role, "protocol", selected)
			return n.ID, nil
		}
	}
	return nil, fail(fmt.Errorf("negotiated %q not offered", selected))
}
