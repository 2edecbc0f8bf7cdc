package identify

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-p2pcore/config"
	"github.com/dep2p/go-p2pcore/internal/core/identity"
)

// ConfigFromUnified 从统一配置创建 Behaviour 配置
//
// 本端公钥取自 id，宣告的协议只有身份交换本身。
func ConfigFromUnified(cfg *config.Config, id *identity.Identity) BehaviourConfig {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	ic := cfg.Identify
	bc := BehaviourConfig{
		Local: Info{
			ProtocolVersion: ic.ProtocolVersion,
			AgentVersion:    ic.AgentVersion,
			Protocols:       []string{ProtocolID},
		},
		MaxMessageSize: ic.MaxMessageSize,
		Timeout:        ic.Timeout.Duration(),
		CacheSize:      ic.CacheSize,
		Handler: HandlerConfig{
			InitialDelay:  ic.InitialDelay.Duration(),
			Interval:      ic.Interval.Duration(),
			ErrorInterval: ic.ErrorInterval.Duration(),
			Clock:         clock.New(),
		},
	}
	if id != nil {
		bc.Local.PublicKey = id.PublicKeyBytes()
	}
	return bc
}

// ModuleInput identify 模块输入
type ModuleInput struct {
	fx.In

	Identity   *identity.Identity
	UnifiedCfg *config.Config `optional:"true"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("identify",
		fx.Provide(ProvideBehaviour),
	)
}

// ProvideBehaviour 提供身份交换编排器
func ProvideBehaviour(input ModuleInput) (*PeriodicIdentifyBehaviour, error) {
	return NewBehaviour(ConfigFromUnified(input.UnifiedCfg, input.Identity))
}
