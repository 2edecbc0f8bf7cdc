package muxer

import (
	"net"

	"go.uber.org/fx"

	"github.com/dep2p/go-p2pcore/config"
	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
)

// ConnUpgrade 把已协商的连接升级为 Multiplexer
//
// 具体引擎（yamux、smux）以 group:"muxers" 提供该升级。
type ConnUpgrade = pkgif.Upgrade[net.Conn, *Multiplexer]

// Params Muxer 依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// Module 是 muxer 的 Fx 模块
var Module = fx.Module("muxer",
	fx.Provide(ConfigFromParams),
)

// ConfigFromParams 从参数创建 Multiplexer 配置
func ConfigFromParams(p Params) Config {
	return ConfigFromUnified(p.UnifiedCfg)
}
