package p2pcore

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-p2pcore/config"
	"github.com/dep2p/go-p2pcore/internal/core/identity"
	"github.com/dep2p/go-p2pcore/internal/core/muxer"
	"github.com/dep2p/go-p2pcore/internal/core/muxer/smux"
	"github.com/dep2p/go-p2pcore/internal/core/muxer/yamux"
	"github.com/dep2p/go-p2pcore/internal/core/security"
	"github.com/dep2p/go-p2pcore/internal/core/swarm"
	"github.com/dep2p/go-p2pcore/internal/core/transport"
	"github.com/dep2p/go-p2pcore/internal/core/transport/tcp"
	"github.com/dep2p/go-p2pcore/internal/core/upgrader"
	"github.com/dep2p/go-p2pcore/internal/protocol/identify"
)

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. Identity → Security → Muxer(yamux, smux) → Upgrader
//  2. TCP → Transport（升级后的传输）
//  3. Identify → Swarm
//  4. 用户自定义 Fx 选项
//
// OnStop 按反向顺序执行，Swarm 先于 TCP 关闭。
func buildFxApp(cfg *nodeConfig, node *Node) (*fx.App, error) {
	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置验证（前置）
	// ════════════════════════════════════════════════════════════════════════
	if err := cfg.config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 2. 核心模块
	// ════════════════════════════════════════════════════════════════════════
	modules := []fx.Option{
		fx.Supply(cfg.config),

		identity.Module(),
		security.Module(),
		muxer.Module,
		yamux.Module,
		smux.Module,
		upgrader.Module(),
		tcp.Module(),
		transport.Module(),
	}

	// ════════════════════════════════════════════════════════════════════════
	// 3. 指标（可选）
	// ════════════════════════════════════════════════════════════════════════
	if reg := cfg.registry; reg != nil {
		modules = append(modules, fx.Provide(func() prometheus.Registerer { return reg }))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 4. 协议与驱动
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		identify.Module(),
		fx.Provide(provideSwarmBehaviour),
		swarm.Module[identify.Event](),
	)

	// ════════════════════════════════════════════════════════════════════════
	// 5. 用户自定义选项
	// ════════════════════════════════════════════════════════════════════════
	if len(cfg.userFxOptions) > 0 {
		modules = append(modules, cfg.userFxOptions...)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 6. Node 组件注入
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, fx.Invoke(injectNodeComponents(node)))

	// ════════════════════════════════════════════════════════════════════════
	// 7. Fx 日志
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, fx.WithLogger(fxLogger(cfg.config.Log)))

	app := fx.New(modules...)
	if err := app.Err(); err != nil {
		return nil, err
	}
	return app, nil
}

// provideSwarmBehaviour 把身份交换编排器作为 Swarm 的 Behaviour
func provideSwarmBehaviour(b *identify.PeriodicIdentifyBehaviour) swarm.Behaviour[identify.Event] {
	return b
}

// fxLogger 返回 Fx 事件日志
//
// debug 级别时输出 Fx 的装配过程，否则静默。
func fxLogger(lc config.LogConfig) func() fxevent.Logger {
	return func() fxevent.Logger {
		if strings.EqualFold(lc.Level, "debug") {
			if l, err := zap.NewDevelopment(); err == nil {
				return &fxevent.ZapLogger{Logger: l.Named("fx")}
			}
		}
		return &fxevent.ZapLogger{Logger: zap.NewNop()}
	}
}

// nodeInjectParams Node 组件注入参数
type nodeInjectParams struct {
	fx.In

	Identity *identity.Identity
	Swarm    *swarm.Swarm[identify.Event]
	Identify *identify.PeriodicIdentifyBehaviour
}

// injectNodeComponents 创建 Node 组件注入函数
func injectNodeComponents(node *Node) interface{} {
	return func(params nodeInjectParams) {
		node.identity = params.Identity
		node.swarm = params.Swarm
		node.identify = params.Identify
	}
}
