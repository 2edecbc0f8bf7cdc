package p2pcore

import (
	"github.com/dep2p/go-p2pcore/config"
)

// ════════════════════════════════════════════════════════════════════════════
//                              预设配置常量
// ════════════════════════════════════════════════════════════════════════════

// 预设名称常量
const (
	// PresetLocal 仅本机回环，随机端口，短轮询间隔（开发与测试）
	PresetLocal = "local"

	// PresetServer 监听所有接口，更大的缓冲与积压
	PresetServer = "server"
)

// IsValidPreset 检查预设名称是否有效
func IsValidPreset(name string) bool {
	switch name {
	case PresetLocal, PresetServer:
		return true
	default:
		return false
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              预设配置获取
// ════════════════════════════════════════════════════════════════════════════

// GetPresetConfig 返回应用了预设的默认配置
//
// 示例：
//
//	cfg, err := p2pcore.GetPresetConfig(p2pcore.PresetLocal)
//	cfg.Identify.Interval = config.Duration(time.Minute)
//	node, err := p2pcore.New(p2pcore.WithConfig(cfg))
func GetPresetConfig(name string) (*config.Config, error) {
	cfg := config.NewConfig()
	if err := config.ApplyPreset(cfg, name); err != nil {
		return nil, err
	}
	return cfg, nil
}
