package upgrader

import (
	"context"
	"fmt"
	"net"
	"slices"

	"github.com/dep2p/go-p2pcore/internal/core/muxer"
	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
)

// negotiatedMuxer 多路复用协商结果
type negotiatedMuxer struct {
	mux  *muxer.Multiplexer
	name string
}

// muxerSet 把多个多路复用升级组合为一次协商
//
// 每个协议名称的 ID 记录来源升级与名称，升级完成后据此得知选中的多路复用器。
type muxerSet struct {
	upgrades []muxer.ConnUpgrade
}

type muxerID struct {
	index int
	name  string
	inner any
}

var _ pkgif.Upgrade[net.Conn, negotiatedMuxer] = (*muxerSet)(nil)

// newMuxerSet 按偏好顺序排列多路复用升级
func newMuxerSet(ups []muxer.ConnUpgrade, preference []string) *muxerSet {
	rank := func(u muxer.ConnUpgrade) int {
		for _, n := range u.ProtocolNames() {
			if i := slices.Index(preference, n.Name); i >= 0 {
				return i
			}
		}
		return len(preference)
	}
	sorted := slices.Clone(ups)
	slices.SortStableFunc(sorted, func(a, b muxer.ConnUpgrade) int {
		return rank(a) - rank(b)
	})
	return &muxerSet{upgrades: sorted}
}

// ProtocolNames 实现 UpgradeInfo
func (s *muxerSet) ProtocolNames() []pkgif.ProtocolName {
	var out []pkgif.ProtocolName
	for i, up := range s.upgrades {
		for _, n := range up.ProtocolNames() {
			out = append(out, pkgif.ProtocolName{
				Name: n.Name,
				ID:   muxerID{index: i, name: n.Name, inner: n.ID},
			})
		}
	}
	return out
}

func (s *muxerSet) pick(id any) (muxer.ConnUpgrade, muxerID, error) {
	mid, ok := id.(muxerID)
	if !ok || mid.index < 0 || mid.index >= len(s.upgrades) {
		return nil, muxerID{}, fmt.Errorf("upgrader: unknown muxer id %v", id)
	}
	return s.upgrades[mid.index], mid, nil
}

// UpgradeInbound 实现 InboundUpgrade
func (s *muxerSet) UpgradeInbound(ctx context.Context, conn net.Conn, id any) (negotiatedMuxer, error) {
	up, mid, err := s.pick(id)
	if err != nil {
		return negotiatedMuxer{}, err
	}
	m, err := up.UpgradeInbound(ctx, conn, mid.inner)
	if err != nil {
		return negotiatedMuxer{}, err
	}
	return negotiatedMuxer{mux: m, name: mid.name}, nil
}

// UpgradeOutbound 实现 OutboundUpgrade
func (s *muxerSet) UpgradeOutbound(ctx context.Context, conn net.Conn, id any) (negotiatedMuxer, error) {
	up, mid, err := s.pick(id)
	if err != nil {
		return negotiatedMuxer{}, err
	}
	m, err := up.UpgradeOutbound(ctx, conn, mid.inner)
	if err != nil {
		return negotiatedMuxer{}, err
	}
	return negotiatedMuxer{mux: m, name: mid.name}, nil
}
