package smux

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-p2pcore/config"
	"github.com/dep2p/go-p2pcore/internal/core/muxer"
)

// Params smux 依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	MuxerCfg   muxer.Config
}

// Module 以 group:"muxers" 提供 smux 升级
var Module = fx.Module("muxer/smux",
	fx.Provide(
		fx.Annotate(
			provideUpgrade,
			fx.ResultTags(`group:"muxers"`),
		),
	),
)

// ConfigFromUnified 从统一配置创建 smux 配置
func ConfigFromUnified(cfg *config.Config, mc muxer.Config) *Config {
	c := DefaultConfig()
	c.Muxer = mc
	if cfg == nil {
		return c
	}
	if cfg.Muxer.MaxFrameSize > 0 {
		c.MaxFrameSize = cfg.Muxer.MaxFrameSize
	}
	c.KeepAliveInterval = cfg.Muxer.KeepAliveInterval.Duration()
	return c
}

// NewFromParams 从参数创建升级
func NewFromParams(p Params) *Config {
	return ConfigFromUnified(p.UnifiedCfg, p.MuxerCfg)
}

func provideUpgrade(p Params) muxer.ConnUpgrade {
	return NewFromParams(p)
}
