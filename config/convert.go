package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// FromJSON 从 JSON 数据创建配置
//
// 未出现的字段保留默认值。
//
// 示例 JSON:
//
//	{
//	  "transport": {"listen_addrs": ["/ip4/0.0.0.0/tcp/4001"]},
//	  "muxer": {"protocols": ["/smux/1.0.0"]},
//	  "identify": {"interval": "1m"}
//	}
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadFile 从 JSON 文件加载并验证配置
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := FromJSON(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// ToJSON 序列化配置（缩进格式）
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// ApplyPreset 应用预设配置
//
// 支持的预设：
//   - "local": 仅本机回环，随机端口，短间隔（开发与测试）
//   - "server": 监听所有接口，更大的缓冲与积压
//   - "": 不做任何修改
func ApplyPreset(cfg *Config, presetName string) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	switch presetName {
	case "local":
		return applyLocalPreset(cfg)
	case "server":
		return applyServerPreset(cfg)
	case "":
		return nil
	default:
		return fmt.Errorf("unknown preset: %s", presetName)
	}
}

// applyLocalPreset 应用本机预设
func applyLocalPreset(cfg *Config) error {
	cfg.Transport.ListenAddrs = []string{"/ip4/127.0.0.1/tcp/0"}
	cfg.Transport.DialTimeout = Duration(5 * time.Second)
	cfg.Transport.HandshakeTimeout = Duration(10 * time.Second)

	cfg.Identify.Interval = Duration(30 * time.Second)
	cfg.Identify.ErrorInterval = Duration(time.Minute)

	cfg.Swarm.PollInterval = Duration(20 * time.Millisecond)
	return nil
}

// applyServerPreset 应用服务器预设
func applyServerPreset(cfg *Config) error {
	cfg.Transport.ListenAddrs = []string{"/ip4/0.0.0.0/tcp/4001", "/ip6/::/tcp/4001"}
	cfg.Transport.TCP.AcceptBacklog = 1024

	cfg.Muxer.MaxPendingInbound = 256
	cfg.Muxer.ReadBufferSize = 1 << 20
	cfg.Muxer.WriteBufferSize = 1 << 20

	cfg.Identify.CacheSize = 16 * 1024
	cfg.Swarm.MaxPendingUpgrades = 2048
	return nil
}

// CloneConfig 克隆配置
//
// 切片字段被复制，修改克隆不会影响原配置。
func CloneConfig(cfg *Config) *Config {
	if cfg == nil {
		return nil
	}
	cloned := *cfg
	cloned.Identity.Seed = append([]byte(nil), cfg.Identity.Seed...)
	cloned.Transport.ListenAddrs = append([]string(nil), cfg.Transport.ListenAddrs...)
	cloned.Muxer.Protocols = append([]string(nil), cfg.Muxer.Protocols...)
	if cfg.KnownPeers != nil {
		cloned.KnownPeers = make([]KnownPeer, len(cfg.KnownPeers))
		for i, kp := range cfg.KnownPeers {
			cloned.KnownPeers[i] = KnownPeer{
				PeerID: kp.PeerID,
				Addrs:  append([]string(nil), kp.Addrs...),
			}
		}
	}
	return &cloned
}
