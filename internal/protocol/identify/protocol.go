package identify

import (
	"context"
	"fmt"
	"time"

	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
	"github.com/dep2p/go-p2pcore/pkg/lib/proto"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

// ProtocolID 身份交换协议名称
const ProtocolID = "/ipfs/id/1.0.0"

// Protocol 身份交换的子流升级
//
// 入站方向（对端请求本端信息）输出 *Sender；
// 出站方向读取对端信息，输出 RemoteInfo。
type Protocol struct {
	maxSize int
	timeout time.Duration
}

var (
	_ pkgif.InboundUpgrade[pkgif.Substream, *Sender]     = (*Protocol)(nil)
	_ pkgif.OutboundUpgrade[pkgif.Substream, RemoteInfo] = (*Protocol)(nil)
)

// NewProtocol 创建升级；maxSize 为消息上限，timeout 为单次读写超时
func NewProtocol(maxSize int, timeout time.Duration) *Protocol {
	if maxSize <= 0 {
		maxSize = proto.DefaultMaxMessageSize
	}
	return &Protocol{maxSize: maxSize, timeout: timeout}
}

// ProtocolNames 实现 UpgradeInfo
func (p *Protocol) ProtocolNames() []pkgif.ProtocolName {
	return []pkgif.ProtocolName{{Name: ProtocolID, ID: ProtocolID}}
}

// UpgradeInbound 返回用于应答的 Sender
func (p *Protocol) UpgradeInbound(_ context.Context, s pkgif.Substream, _ any) (*Sender, error) {
	return &Sender{stream: s, timeout: p.timeout}, nil
}

// UpgradeOutbound 读取对端的身份消息并关闭子流
func (p *Protocol) UpgradeOutbound(ctx context.Context, s pkgif.Substream, _ any) (RemoteInfo, error) {
	defer s.Close()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	msg, err := proto.ReadDelimited(s, p.maxSize)
	if err != nil {
		if ctx.Err() != nil {
			return RemoteInfo{}, ctx.Err()
		}
		return RemoteInfo{}, fmt.Errorf("identify: read: %w", err)
	}
	return decodeMessage(msg)
}

// ============================================================================
//                              Sender
// ============================================================================

// Sender 入站身份请求的应答端
type Sender struct {
	stream  pkgif.Substream
	timeout time.Duration
}

// Send 写入本端信息与观测到的对端地址，然后关闭子流
func (s *Sender) Send(ctx context.Context, info Info, observed types.Multiaddr) error {
	defer s.stream.Close()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	stop := context.AfterFunc(ctx, func() { _ = s.stream.Close() })
	defer stop()

	if err := proto.WriteDelimited(s.stream, encodeMessage(info, observed)); err != nil {
		return fmt.Errorf("identify: write: %w", err)
	}
	if err := s.stream.CloseWrite(); err != nil {
		return fmt.Errorf("identify: close write: %w", err)
	}
	return nil
}

// Close 不应答直接关闭
func (s *Sender) Close() error {
	return s.stream.Close()
}
