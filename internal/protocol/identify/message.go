package identify

import (
	"errors"
	"fmt"

	ma "github.com/multiformats/go-multiaddr"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-p2pcore/pkg/types"
)

var (
	// ErrInvalidMessage 消息无法解码
	ErrInvalidMessage = errors.New("identify: invalid message")

	// ErrMissingObservedAddr 消息缺少观测地址
	ErrMissingObservedAddr = errors.New("identify: missing observed address")
)

const (
	fieldPublicKey       protowire.Number = 1
	fieldListenAddrs     protowire.Number = 2
	fieldProtocols       protowire.Number = 3
	fieldObservedAddr    protowire.Number = 4
	fieldProtocolVersion protowire.Number = 5
	fieldAgentVersion    protowire.Number = 6
)

// Info 节点对外宣告的身份信息
type Info struct {
	// PublicKey 公钥原始字节
	PublicKey []byte

	// ProtocolVersion 协议版本
	ProtocolVersion string

	// AgentVersion 客户端版本
	AgentVersion string

	// ListenAddrs 监听地址
	ListenAddrs []types.Multiaddr

	// Protocols 支持的协议
	Protocols []string
}

// RemoteInfo 一次身份交换得到的对端信息
type RemoteInfo struct {
	// Info 对端宣告的信息
	Info Info

	// ObservedAddr 对端观测到的本端地址
	ObservedAddr types.Multiaddr
}

// encodeMessage 编码一条身份消息
func encodeMessage(info Info, observed types.Multiaddr) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldPublicKey, protowire.BytesType)
	b = protowire.AppendBytes(b, info.PublicKey)
	for _, a := range info.ListenAddrs {
		b = protowire.AppendTag(b, fieldListenAddrs, protowire.BytesType)
		b = protowire.AppendBytes(b, a.Bytes())
	}
	for _, p := range info.Protocols {
		b = protowire.AppendTag(b, fieldProtocols, protowire.BytesType)
		b = protowire.AppendString(b, p)
	}
	if observed != nil {
		b = protowire.AppendTag(b, fieldObservedAddr, protowire.BytesType)
		b = protowire.AppendBytes(b, observed.Bytes())
	}
	b = protowire.AppendTag(b, fieldProtocolVersion, protowire.BytesType)
	b = protowire.AppendString(b, info.ProtocolVersion)
	b = protowire.AppendTag(b, fieldAgentVersion, protowire.BytesType)
	b = protowire.AppendString(b, info.AgentVersion)
	return b
}

// decodeMessage 解码一条身份消息
//
// 无法解析的监听地址被跳过；观测地址缺失或无效时返回错误。未知字段被忽略。
func decodeMessage(b []byte) (RemoteInfo, error) {
	var (
		out      RemoteInfo
		observed []byte
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return RemoteInfo{}, fmt.Errorf("%w: %v", ErrInvalidMessage, protowire.ParseError(n))
		}
		b = b[n:]

		if typ != protowire.BytesType || num < fieldPublicKey || num > fieldAgentVersion {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return RemoteInfo{}, fmt.Errorf("%w: %v", ErrInvalidMessage, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return RemoteInfo{}, fmt.Errorf("%w: %v", ErrInvalidMessage, protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldPublicKey:
			out.Info.PublicKey = append([]byte(nil), v...)
		case fieldListenAddrs:
			a, err := ma.NewMultiaddrBytes(v)
			if err != nil {
				logger.Debug("跳过无效的监听地址", "error", err)
				continue
			}
			out.Info.ListenAddrs = append(out.Info.ListenAddrs, a)
		case fieldProtocols:
			out.Info.Protocols = append(out.Info.Protocols, string(v))
		case fieldObservedAddr:
			observed = append([]byte(nil), v...)
		case fieldProtocolVersion:
			out.Info.ProtocolVersion = string(v)
		case fieldAgentVersion:
			out.Info.AgentVersion = string(v)
		}
	}

	if len(observed) == 0 {
		return RemoteInfo{}, ErrMissingObservedAddr
	}
	a, err := ma.NewMultiaddrBytes(observed)
	if err != nil {
		return RemoteInfo{}, fmt.Errorf("%w: observed address: %v", ErrInvalidMessage, err)
	}
	out.ObservedAddr = a
	return out, nil
}
