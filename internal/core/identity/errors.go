package identity

import "errors"

// ============================================================================
// 错误定义
// ============================================================================

var (
	// ErrInvalidKeySize 密钥长度无效
	ErrInvalidKeySize = errors.New("identity: invalid key size")

	// ErrEmptyPublicKey 空公钥
	ErrEmptyPublicKey = errors.New("identity: empty public key")

	// ErrInvalidPEM 无效的 PEM 数据
	ErrInvalidPEM = errors.New("identity: invalid PEM data")

	// ErrKeyNotFound 密钥文件不存在
	ErrKeyNotFound = errors.New("identity: key not found")

	// ErrPeerIDMismatch 公钥与声称的 PeerID 不一致
	ErrPeerIDMismatch = errors.New("identity: peer id does not match public key")
)
