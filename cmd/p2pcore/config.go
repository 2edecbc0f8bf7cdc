package main

import (
	"os"
	"strings"

	"github.com/dep2p/go-p2pcore/config"
)

// ============================================================================
//                              配置加载（CLI 专用）
// ============================================================================

// 环境变量（均使用 P2PCORE_ 前缀）
const (
	envPrefix       = "P2PCORE_"
	envPreset       = "PRESET"
	envListenAddrs  = "LISTEN_ADDRS"
	envIdentityFile = "IDENTITY_KEY_FILE"
	envLogLevel     = "LOG_LEVEL"
	envLogFormat    = "LOG_FORMAT"
	envMetricsAddr  = "METRICS_ADDR"
)

// loadConfig 加载配置文件，未指定时使用默认配置
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.NewConfig(), nil
	}
	return config.LoadFile(path)
}

// applyEnvOverrides 应用环境变量覆盖配置
//
// 环境变量优先级高于配置文件，但低于命令行参数。
// 返回环境变量指定的预设名称。
func applyEnvOverrides(cfg *config.Config) string {
	if v := getenv(envListenAddrs); v != "" {
		cfg.Transport = cfg.Transport.WithListenAddrs(splitAndTrim(v, ",")...)
	}
	if v := getenv(envIdentityFile); v != "" {
		cfg.Identity = cfg.Identity.WithKeyFile(v)
	}
	if v := getenv(envLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := getenv(envLogFormat); v != "" {
		cfg.Log.Format = v
	}
	if v := getenv(envMetricsAddr); v != "" {
		cfg.Metrics.Enable = true
		cfg.Metrics.Addr = v
	}
	return getenv(envPreset)
}

func getenv(name string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + name))
}

// splitAndTrim 分割字符串并去除空白
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
