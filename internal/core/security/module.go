package security

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-p2pcore/internal/core/identity"
	"github.com/dep2p/go-p2pcore/internal/core/security/plaintext"
	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Identity *identity.Identity
}

// ProvideSecurity 提供安全握手升级
func ProvideSecurity(input ModuleInput) pkgif.SecureUpgrade {
	return plaintext.New(input.Identity)
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("security",
		fx.Provide(ProvideSecurity),
	)
}
