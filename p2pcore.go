package p2pcore

import (
	"github.com/dep2p/go-p2pcore/internal/core/swarm"
	"github.com/dep2p/go-p2pcore/internal/protocol/identify"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              版本信息
// ════════════════════════════════════════════════════════════════════════════

// Version 当前版本
const Version = "v0.1.0"

// BuildInfo 构建信息（通过 ldflags 注入）
var (
	// GitCommit Git 提交哈希
	GitCommit string

	// BuildDate 构建日期
	BuildDate string
)

// VersionInfo 返回完整版本信息字符串
func VersionInfo() string {
	info := "p2pcore " + Version
	if GitCommit != "" {
		info += " (" + GitCommit[:min(8, len(GitCommit))] + ")"
	}
	if BuildDate != "" {
		info += " built " + BuildDate
	}
	return info
}

// ════════════════════════════════════════════════════════════════════════════
//                              类型别名
// ════════════════════════════════════════════════════════════════════════════

type (
	// PeerID 节点 ID
	PeerID = types.PeerID

	// Multiaddr 多地址
	Multiaddr = types.Multiaddr

	// Event 节点事件，Behaviour 字段为身份交换事件
	Event = swarm.Event[identify.Event]

	// EventKind 节点事件类型
	EventKind = swarm.EventKind

	// IdentifyEvent 身份交换事件
	IdentifyEvent = identify.Event

	// PeerInfo 对端最近一次宣告的信息
	PeerInfo = identify.RemoteInfo

	// ConnInfo 连接信息
	ConnInfo = swarm.ConnInfo
)

// 事件类型
const (
	EventBehaviour               = swarm.EventBehaviour
	EventConnectionEstablished   = swarm.EventConnectionEstablished
	EventConnectionClosed        = swarm.EventConnectionClosed
	EventIncomingConnectionError = swarm.EventIncomingConnectionError
	EventDialError               = swarm.EventDialError
	EventNewListenAddr           = swarm.EventNewListenAddr
	EventListenerClosed          = swarm.EventListenerClosed
)

// 身份交换事件类型
const (
	IdentifyIdentified = identify.EventIdentified
	IdentifyError      = identify.EventError
)

// ParsePeerID 解析 base58 节点 ID
func ParsePeerID(s string) (PeerID, error) {
	return types.ParsePeerID(s)
}

// ParseMultiaddr 解析多地址
func ParseMultiaddr(s string) (Multiaddr, error) {
	return types.NewMultiaddr(s)
}
