package tcp

import (
	"context"
	"net"

	"go.uber.org/fx"

	"github.com/dep2p/go-p2pcore/config"
	pkgif "github.com/dep2p/go-p2pcore/pkg/interfaces"
)

// ConfigFromUnified 从统一配置创建 TCP 配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return Config{
		DialTimeout:   cfg.Transport.DialTimeout.Duration(),
		KeepAlive:     cfg.Transport.TCP.KeepAlivePeriod.Duration(),
		AcceptBacklog: cfg.Transport.TCP.AcceptBacklog,
	}
}

// ModuleInput TCP 模块输入
type ModuleInput struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// ModuleOutput TCP 模块输出
type ModuleOutput struct {
	fx.Out

	Transport *Transport
	Raw       pkgif.Transport[net.Conn]
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("transport/tcp",
		fx.Provide(ProvideTransport),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideTransport 提供 TCP 传输
func ProvideTransport(input ModuleInput) ModuleOutput {
	t := New(ConfigFromUnified(input.UnifiedCfg))
	return ModuleOutput{Transport: t, Raw: t}
}

// registerLifecycle 停止时关闭所有监听器
func registerLifecycle(lc fx.Lifecycle, t *Transport) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			logger.Info("TCP 传输停止", "listeners", t.ListenerCount())
			return t.Close()
		},
	})
}
