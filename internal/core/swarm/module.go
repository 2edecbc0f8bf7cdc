package swarm

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-p2pcore/config"
	"github.com/dep2p/go-p2pcore/internal/core/identity"
	"github.com/dep2p/go-p2pcore/internal/core/transport"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

// Params Swarm 依赖参数
type Params[Out any] struct {
	fx.In

	Identity   *identity.Identity
	Transport  transport.UpgradedTransport
	Behaviour  Behaviour[Out]
	UnifiedCfg *config.Config        `optional:"true"`
	Registerer prometheus.Registerer `optional:"true"`
}

// Module 返回驱动 Behaviour[Out] 的 Swarm Fx 模块
//
// Behaviour[Out] 由调用方提供（通常用 fx.As 标注具体编排器）。
func Module[Out any]() fx.Option {
	return fx.Module("swarm",
		fx.Provide(NewFromParams[Out]),
		fx.Invoke(registerLifecycle[Out]),
	)
}

// ConfigFromUnified 从统一配置创建 Swarm 配置
func ConfigFromUnified(cfg *config.Config) *Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return &Config{
		DialTimeout:        cfg.Transport.DialTimeout.Duration(),
		SubstreamTimeout:   cfg.Transport.HandshakeTimeout.Duration(),
		PollInterval:       cfg.Swarm.PollInterval.Duration(),
		MaxPendingUpgrades: cfg.Swarm.MaxPendingUpgrades,
	}
}

// optionsFromUnified 把统一配置中的已知节点转换为选项
func optionsFromUnified(cfg *config.Config) ([]Option, error) {
	opts := []Option{WithConfig(ConfigFromUnified(cfg))}
	if cfg == nil {
		return opts, nil
	}
	for _, kp := range cfg.KnownPeers {
		peer, err := types.ParsePeerID(kp.PeerID)
		if err != nil {
			return nil, err
		}
		addrs := make([]types.Multiaddr, 0, len(kp.Addrs))
		for _, a := range kp.Addrs {
			addr, err := types.NewMultiaddr(a)
			if err != nil {
				return nil, err
			}
			addrs = append(addrs, addr)
		}
		opts = append(opts, WithPeerAddrs(peer, addrs...))
	}
	return opts, nil
}

// NewFromParams 从参数创建 Swarm
func NewFromParams[Out any](p Params[Out]) (*Swarm[Out], error) {
	opts, err := optionsFromUnified(p.UnifiedCfg)
	if err != nil {
		return nil, err
	}
	if p.Registerer != nil {
		opts = append(opts, WithRegisterer(p.Registerer))
	}
	return New[Out](p.Identity.PeerID(), p.Transport, p.Behaviour, opts...)
}

func registerLifecycle[Out any](lc fx.Lifecycle, s *Swarm[Out]) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			logger.Debug("停止 Swarm")
			return s.Close()
		},
	})
}
