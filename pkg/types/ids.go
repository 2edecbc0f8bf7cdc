package types

import (
	"errors"
	"strconv"

	"github.com/mr-tron/base58"
)

// ============================================================================
//                              PeerID - 节点标识
// ============================================================================

// PeerID 节点唯一标识符
//
// 由公钥派生：Base58(SHA256(公钥))。
type PeerID string

// EmptyPeerID 空节点 ID
const EmptyPeerID PeerID = ""

// ErrInvalidPeerID 无效的节点 ID
var ErrInvalidPeerID = errors.New("invalid peer id: must be base58")

// String 返回字符串表示
func (id PeerID) String() string {
	return string(id)
}

// ShortString 返回短字符串表示（日志用）
func (id PeerID) ShortString() string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}

// IsEmpty 是否为空
func (id PeerID) IsEmpty() bool {
	return id == EmptyPeerID
}

// Validate 验证格式
func (id PeerID) Validate() error {
	if id.IsEmpty() {
		return ErrInvalidPeerID
	}
	if _, err := base58.Decode(string(id)); err != nil {
		return ErrInvalidPeerID
	}
	return nil
}

// ParsePeerID 解析 Base58 节点 ID
func ParsePeerID(s string) (PeerID, error) {
	id := PeerID(s)
	if err := id.Validate(); err != nil {
		return EmptyPeerID, err
	}
	return id, nil
}

// PeerIDFromBytes 从摘要字节构造节点 ID
func PeerIDFromBytes(b []byte) PeerID {
	return PeerID(base58.Encode(b))
}

// ============================================================================
//                              连接与子流标识
// ============================================================================

// ConnectionID 连接标识（进程内唯一）
type ConnectionID uint64

// String 返回字符串表示
func (id ConnectionID) String() string {
	return "conn-" + strconv.FormatUint(uint64(id), 10)
}

// SubstreamID 子流标识
//
// 由多路复用器分配的不透明索引，只在所属多路复用器内有意义。
type SubstreamID uint64

// OutboundID 出站子流打开请求标识
type OutboundID uint64
