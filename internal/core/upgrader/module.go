package upgrader

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-p2pcore/config"
	"github.com/dep2p/go-p2pcore/internal/core/muxer"
	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
)

// Params Upgrader 依赖参数
type Params struct {
	fx.In

	Security   pkgif.SecureUpgrade
	Muxers     []muxer.ConnUpgrade `group:"muxers"`
	UnifiedCfg *config.Config      `optional:"true"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("upgrader",
		fx.Provide(
			ProvideUpgrader,
		),
	)
}

// ProvideUpgrader 提供 Upgrader（依赖注入）
func ProvideUpgrader(params Params) (*Upgrader, error) {
	cfg := ConfigFromUnified(params.UnifiedCfg)
	return New(params.Security, params.Muxers, cfg)
}
