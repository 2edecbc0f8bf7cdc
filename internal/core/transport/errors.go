package transport

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-p2pcore/pkg/types"
)

var (
	// ErrInvalidAddress 传输不支持该地址
	ErrInvalidAddress = errors.New("transport: unsupported multiaddr")

	// ErrTransportClosed 传输已关闭
	ErrTransportClosed = errors.New("transport: closed")
)

// Error 建立失败
//
// Addr 是调用方传入的原地址，可以交给另一个传输重试。
type Error struct {
	Op   string
	Addr types.Multiaddr
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport: %s %v: %v", e.Op, e.Addr, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsUnsupportedAddr 判断是否因地址不被支持而失败
func IsUnsupportedAddr(err error) bool {
	return errors.Is(err, ErrInvalidAddress)
}
