package muxer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// Engine 阻塞式多路复用会话
//
// 由具体协议实现（yamux、smux）提供，负责帧格式与流控。
// 会话被对端或本端有序关闭时，AcceptStream 应返回 io.EOF 或 ErrConnClosed。
type Engine interface {
	// OpenStream 打开出站流，ctx 取消时返回
	OpenStream(ctx context.Context) (EngineStream, error)

	// AcceptStream 阻塞等待入站流
	AcceptStream() (EngineStream, error)

	// Close 关闭会话及其全部流
	Close() error

	// IsClosed 会话是否已关闭
	IsClosed() bool
}

// EngineStream 引擎中的一个流
type EngineStream interface {
	io.ReadWriteCloser

	// CloseWrite 半关闭写方向
	CloseWrite() error

	// CloseRead 关闭读方向
	CloseRead() error

	// Reset 异常关闭
	Reset() error
}

// isGraceful 判断引擎错误是否表示有序结束
func isGraceful(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, ErrConnClosed) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe)
}

// PeerClosed 把会话读端上的连接复位转换为 ErrConnClosed
//
// 对端关闭连接时若仍有未读帧（如心跳 ping），TCP 会以 RST 结束，
// 本端读到 ECONNRESET 或 EPIPE。引擎的 AcceptStream 用它区分有序结束与连接错误。
func PeerClosed(err error) error {
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return fmt.Errorf("%w: %v", ErrConnClosed, err)
	}
	return err
}
