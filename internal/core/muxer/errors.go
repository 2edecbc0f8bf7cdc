package muxer

import "errors"

var (
	// ErrStreamReset 流被重置
	ErrStreamReset = errors.New("muxer: stream reset")

	// ErrConnClosed 会话已关闭
	ErrConnClosed = errors.New("muxer: connection closed")

	// ErrUnknownSubstream 子流标识未知或已被销毁
	ErrUnknownSubstream = errors.New("muxer: unknown or destroyed substream")

	// ErrUnknownOutbound 出站打开句柄未知、已认领或已销毁
	ErrUnknownOutbound = errors.New("muxer: unknown or destroyed outbound handle")

	// ErrWriteClosed 写方向已关闭
	ErrWriteClosed = errors.New("muxer: write side closed")

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("muxer: invalid config")
)
