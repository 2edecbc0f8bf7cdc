package p2pcore

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-p2pcore/config"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

// Option 用户配置选项函数
//
// 选项按传入顺序作用在同一份配置上，WithConfig 与 WithConfigFile
// 会替换之前的全部设置，因此应放在最前面。
type Option func(*nodeConfig) error

// nodeConfig 内部选项结构
type nodeConfig struct {
	// config 统一配置
	config *config.Config

	// registry 指标注册表，为 nil 时按 Metrics.Enable 决定是否创建
	registry *prometheus.Registry

	// userFxOptions 用户自定义 Fx 选项
	userFxOptions []fx.Option
}

// newNodeConfig 创建默认选项
func newNodeConfig() *nodeConfig {
	return &nodeConfig{
		config: config.NewConfig(),
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              配置来源
// ════════════════════════════════════════════════════════════════════════════

// WithConfig 使用完整配置
//
// 配置被克隆，之后修改 cfg 不影响节点。
func WithConfig(cfg *config.Config) Option {
	return func(o *nodeConfig) error {
		if cfg == nil {
			return fmt.Errorf("%w: config is nil", ErrInvalidOption)
		}
		o.config = config.CloneConfig(cfg)
		return nil
	}
}

// WithConfigFile 从 JSON 文件加载配置
func WithConfigFile(path string) Option {
	return func(o *nodeConfig) error {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		o.config = cfg
		return nil
	}
}

// WithPreset 应用预设配置（PresetLocal / PresetServer）
func WithPreset(name string) Option {
	return func(o *nodeConfig) error {
		return config.ApplyPreset(o.config, name)
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              身份与地址
// ════════════════════════════════════════════════════════════════════════════

// WithIdentityKeyFile 从密钥文件加载身份，文件不存在时生成并保存
func WithIdentityKeyFile(path string) Option {
	return func(o *nodeConfig) error {
		o.config.Identity = o.config.Identity.WithKeyFile(path)
		return nil
	}
}

// WithIdentitySeed 由 32 字节种子派生身份
func WithIdentitySeed(seed []byte) Option {
	return func(o *nodeConfig) error {
		o.config.Identity = o.config.Identity.WithSeed(seed)
		return o.config.Identity.Validate()
	}
}

// WithListenAddrs 设置监听地址（替换配置中的地址）
func WithListenAddrs(addrs ...string) Option {
	return func(o *nodeConfig) error {
		for _, a := range addrs {
			if _, err := types.NewMultiaddr(a); err != nil {
				return fmt.Errorf("%w: listen address %q: %v", ErrInvalidOption, a, err)
			}
		}
		o.config.Transport = o.config.Transport.WithListenAddrs(addrs...)
		return nil
	}
}

// WithKnownPeer 添加已知节点，启动后自动拨号
func WithKnownPeer(peerID string, addrs ...string) Option {
	return func(o *nodeConfig) error {
		kp := config.KnownPeer{PeerID: peerID, Addrs: addrs}
		if err := kp.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidOption, err)
		}
		o.config.KnownPeers = append(o.config.KnownPeers, kp)
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              协议
// ════════════════════════════════════════════════════════════════════════════

// WithMuxers 设置多路复用协议偏好，例如 "/yamux/1.0.0"
func WithMuxers(protocols ...string) Option {
	return func(o *nodeConfig) error {
		o.config.Muxer = o.config.Muxer.WithProtocols(protocols...)
		return o.config.Muxer.Validate()
	}
}

// WithAgentVersion 设置身份交换中宣告的客户端版本
func WithAgentVersion(agent string) Option {
	return func(o *nodeConfig) error {
		o.config.Identify.AgentVersion = agent
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              指标与扩展
// ════════════════════════════════════════════════════════════════════════════

// WithMetrics 启用 Prometheus 指标导出，addr 为 HTTP 监听地址
func WithMetrics(addr string) Option {
	return func(o *nodeConfig) error {
		if addr == "" {
			return fmt.Errorf("%w: metrics address is empty", ErrInvalidOption)
		}
		o.config.Metrics.Enable = true
		o.config.Metrics.Addr = addr
		return nil
	}
}

// WithRegistry 使用调用方的指标注册表
//
// 只注册指标，不启动 HTTP 导出，除非同时启用了 Metrics。
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *nodeConfig) error {
		o.registry = reg
		return nil
	}
}

// WithFxOption 追加自定义 Fx 选项
func WithFxOption(opts ...fx.Option) Option {
	return func(o *nodeConfig) error {
		o.userFxOptions = append(o.userFxOptions, opts...)
		return nil
	}
}
