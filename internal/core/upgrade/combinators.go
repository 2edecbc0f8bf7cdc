package upgrade

import (
	"context"
	"fmt"

	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
)

// ============================================================================
//                              Choice
// ============================================================================

// choiceID 包装后的 ID：来源升级的下标 + 原 ID
type choiceID struct {
	index int
	inner any
}

// ChoiceUpgrade 在多个同输出类型的升级之间选择
type ChoiceUpgrade[C, O any] struct {
	upgrades []pkgif.Upgrade[C, O]
}

// Choice 组合多个升级，协议名称按参数顺序排列
func Choice[C, O any](ups ...pkgif.Upgrade[C, O]) *ChoiceUpgrade[C, O] {
	return &ChoiceUpgrade[C, O]{upgrades: ups}
}

// ProtocolNames 实现 UpgradeInfo
func (c *ChoiceUpgrade[C, O]) ProtocolNames() []pkgif.ProtocolName {
	var out []pkgif.ProtocolName
	for i, up := range c.upgrades {
		for _, n := range up.ProtocolNames() {
			out = append(out, pkgif.ProtocolName{Name: n.Name, ID: choiceID{index: i, inner: n.ID}})
		}
	}
	return out
}

func (c *ChoiceUpgrade[C, O]) pick(id any) (pkgif.Upgrade[C, O], any, error) {
	cid, ok := id.(choiceID)
	if !ok || cid.index < 0 || cid.index >= len(c.upgrades) {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnknownID, id)
	}
	return c.upgrades[cid.index], cid.inner, nil
}

// UpgradeInbound 实现 InboundUpgrade
func (c *ChoiceUpgrade[C, O]) UpgradeInbound(ctx context.Context, conn C, id any) (O, error) {
	up, inner, err := c.pick(id)
	if err != nil {
		var zero O
		return zero, err
	}
	return up.UpgradeInbound(ctx, conn, inner)
}

// UpgradeOutbound 实现 OutboundUpgrade
func (c *ChoiceUpgrade[C, O]) UpgradeOutbound(ctx context.Context, conn C, id any) (O, error) {
	up, inner, err := c.pick(id)
	if err != nil {
		var zero O
		return zero, err
	}
	return up.UpgradeOutbound(ctx, conn, inner)
}

// ============================================================================
//                              Map
// ============================================================================

// MapUpgrade 变换升级输出
type MapUpgrade[C, O, P any] struct {
	inner pkgif.Upgrade[C, O]
	fn    func(O) (P, error)
}

// Map 用 fn 变换 up 的输出
func Map[C, O, P any](up pkgif.Upgrade[C, O], fn func(O) (P, error)) *MapUpgrade[C, O, P] {
	return &MapUpgrade[C, O, P]{inner: up, fn: fn}
}

// ProtocolNames 实现 UpgradeInfo
func (m *MapUpgrade[C, O, P]) ProtocolNames() []pkgif.ProtocolName {
	return m.inner.ProtocolNames()
}

// UpgradeInbound 实现 InboundUpgrade
func (m *MapUpgrade[C, O, P]) UpgradeInbound(ctx context.Context, conn C, id any) (P, error) {
	out, err := m.inner.UpgradeInbound(ctx, conn, id)
	if err != nil {
		var zero P
		return zero, err
	}
	return m.fn(out)
}

// UpgradeOutbound 实现 OutboundUpgrade
func (m *MapUpgrade[C, O, P]) UpgradeOutbound(ctx context.Context, conn C, id any) (P, error) {
	out, err := m.inner.UpgradeOutbound(ctx, conn, id)
	if err != nil {
		var zero P
		return zero, err
	}
	return m.fn(out)
}

// ============================================================================
//                              Erase
// ============================================================================

func toAny[O any](o O) (any, error) { return o, nil }

// Erase 把输出擦除为 any
func Erase[C, O any](up pkgif.Upgrade[C, O]) pkgif.Upgrade[C, any] {
	return Map(up, toAny[O])
}

// erasedInbound 输出擦除后的入站升级
type erasedInbound[C, O any] struct {
	inner pkgif.InboundUpgrade[C, O]
}

// EraseInbound 把入站升级的输出擦除为 any
func EraseInbound[C, O any](up pkgif.InboundUpgrade[C, O]) pkgif.InboundUpgrade[C, any] {
	return erasedInbound[C, O]{inner: up}
}

func (e erasedInbound[C, O]) ProtocolNames() []pkgif.ProtocolName { return e.inner.ProtocolNames() }

func (e erasedInbound[C, O]) UpgradeInbound(ctx context.Context, conn C, id any) (any, error) {
	out, err := e.inner.UpgradeInbound(ctx, conn, id)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// erasedOutbound 输出擦除后的出站升级
type erasedOutbound[C, O any] struct {
	inner pkgif.OutboundUpgrade[C, O]
}

// EraseOutbound 把出站升级的输出擦除为 any
func EraseOutbound[C, O any](up pkgif.OutboundUpgrade[C, O]) pkgif.OutboundUpgrade[C, any] {
	return erasedOutbound[C, O]{inner: up}
}

func (e erasedOutbound[C, O]) ProtocolNames() []pkgif.ProtocolName { return e.inner.ProtocolNames() }

func (e erasedOutbound[C, O]) UpgradeOutbound(ctx context.Context, conn C, id any) (any, error) {
	out, err := e.inner.UpgradeOutbound(ctx, conn, id)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ============================================================================
//                              Denied
// ============================================================================

// DeniedUpgrade 不接受任何协议的升级
type DeniedUpgrade[C, O any] struct{}

// Denied 返回拒绝一切的升级
func Denied[C, O any]() DeniedUpgrade[C, O] {
	return DeniedUpgrade[C, O]{}
}

// ProtocolNames 返回空列表
func (DeniedUpgrade[C, O]) ProtocolNames() []pkgif.ProtocolName { return nil }

// UpgradeInbound 总是失败
func (DeniedUpgrade[C, O]) UpgradeInbound(context.Context, C, any) (O, error) {
	var zero O
	return zero, ErrDenied
}

// UpgradeOutbound 总是失败
func (DeniedUpgrade[C, O]) UpgradeOutbound(context.Context, C, any) (O, error) {
	var zero O
	return zero, ErrDenied
}
