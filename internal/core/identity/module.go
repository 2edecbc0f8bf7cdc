package identity

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-p2pcore/config"
	"github.com/dep2p/go-p2pcore/pkg/lib/log"
)

var logger = log.Logger("core/identity")

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// ============================================================================
//                              服务提供
// ============================================================================

// ProvideIdentity 提供节点身份
//
// 优先级：配置的种子 > 密钥文件（不存在时创建） > 随机生成
func ProvideIdentity(input ModuleInput) (*Identity, error) {
	if input.UnifiedCfg != nil {
		ic := input.UnifiedCfg.Identity
		switch {
		case len(ic.Seed) > 0:
			return FromSeed(ic.Seed)
		case ic.KeyFile != "":
			return LoadOrCreate(ic.KeyFile)
		}
	}
	return Generate()
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("identity",
		fx.Provide(ProvideIdentity),
	)
}
