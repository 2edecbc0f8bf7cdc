package upgrader

import "errors"

var (
	// ErrNoSecurityTransport 没有安全传输
	ErrNoSecurityTransport = errors.New("upgrader: no security transport configured")

	// ErrNoStreamMuxer 没有流复用器
	ErrNoStreamMuxer = errors.New("upgrader: no stream muxer configured")

	// ErrPeerIDMismatch 对端身份与期望不符
	ErrPeerIDMismatch = errors.New("upgrader: remote peer id mismatch")
)
