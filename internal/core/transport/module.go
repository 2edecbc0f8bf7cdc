package transport

import (
	"net"

	"go.uber.org/fx"

	"github.com/dep2p/go-p2pcore/internal/core/upgrader"
	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
)

// UpgradedTransport 完成安全握手与多路复用协商的传输
type UpgradedTransport = pkgif.Transport[*upgrader.UpgradedConn]

// Params 传输升级依赖参数
//
// 原始传输由具体实现的模块（例如 tcp.Module）提供。
type Params struct {
	fx.In

	Raw      pkgif.Transport[net.Conn]
	Upgrader *upgrader.Upgrader
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("transport",
		fx.Provide(ProvideUpgraded),
	)
}

// ProvideUpgraded 把原始传输包装为升级后的传输
func ProvideUpgraded(p Params) UpgradedTransport {
	logger.Debug("传输层已装配", "muxers", p.Upgrader.MuxerProtocols())
	return WithUpgrader[*upgrader.UpgradedConn](p.Raw, p.Upgrader)
}
