package swarm

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-p2pcore/pkg/types"
)

var (
	// ErrSwarmClosed Swarm 已关闭
	ErrSwarmClosed = errors.New("swarm closed")

	// ErrNoAddresses 没有可用地址
	ErrNoAddresses = errors.New("no addresses")

	// ErrNoConnection 没有连接
	ErrNoConnection = errors.New("no connection to peer")

	// ErrInvalidConfig 无效配置
	ErrInvalidConfig = errors.New("invalid config")

	// ErrDialToSelf 尝试拨号自己
	ErrDialToSelf = errors.New("dial to self attempted")

	// ErrPeerMismatch 握手得到的节点与期望不符
	ErrPeerMismatch = errors.New("remote peer mismatch")

	// ErrTooManyPending 进行中的连接升级过多
	ErrTooManyPending = errors.New("too many pending upgrades")

	// ErrUpgradeEnded 升级结束但没有产生连接
	ErrUpgradeEnded = errors.New("upgrade ended without connection")
)

// DialError 拨号错误，包含多个地址的错误信息
type DialError struct {
	Peer   types.PeerID
	Errors []error
}

func (e *DialError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("failed to dial %s: unknown error", e.Peer)
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("failed to dial %s: %v", e.Peer, e.Errors[0])
	}
	return fmt.Sprintf("failed to dial %s: %d errors: %v", e.Peer, len(e.Errors), e.Errors)
}

// Unwrap 返回全部错误
func (e *DialError) Unwrap() []error {
	return e.Errors
}
