package upgrade

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoProtocols 升级没有声明任何协议名称
	ErrNoProtocols = errors.New("upgrade: no protocols to negotiate")

	// ErrDenied 升级被拒绝
	ErrDenied = errors.New("upgrade: denied")

	// ErrUnknownID 协商结果对应的 ID 不属于该升级
	ErrUnknownID = errors.New("upgrade: unknown protocol id")
)

// NegotiationError 协议名称协商失败
type NegotiationError struct {
	// Role listener 或 dialer
	Role string

	// Protocols 本端提供的协议名称
	Protocols []string

	Err error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("upgrade: %s negotiation of [%s] failed: %v", e.Role, strings.Join(e.Protocols, ", "), e.Err)
}

func (e *NegotiationError) Unwrap() error {
	return e.Err
}

// IsNegotiationError 判断是否为协商失败
func IsNegotiationError(err error) bool {
	var ne *NegotiationError
	return errors.As(err, &ne)
}
