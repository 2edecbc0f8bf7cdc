package config

import (
	"errors"
	"time"
)

// IdentifyConfig 周期性身份交换配置
type IdentifyConfig struct {
	// ProtocolVersion 对外宣告的协议版本
	ProtocolVersion string `json:"protocol_version"`

	// AgentVersion 对外宣告的客户端版本
	AgentVersion string `json:"agent_version"`

	// InitialDelay 连接建立后首次请求的延迟
	InitialDelay Duration `json:"initial_delay"`

	// Interval 成功后下一次请求的间隔
	Interval Duration `json:"interval"`

	// ErrorInterval 失败后下一次请求的间隔
	ErrorInterval Duration `json:"error_interval"`

	// Timeout 单次请求或应答的超时
	Timeout Duration `json:"timeout"`

	// MaxMessageSize 消息长度上限（字节）
	MaxMessageSize int `json:"max_message_size"`

	// CacheSize 缓存的远端信息条数
	CacheSize int `json:"cache_size"`
}

// DefaultIdentifyConfig 返回默认身份交换配置
func DefaultIdentifyConfig() IdentifyConfig {
	return IdentifyConfig{
		ProtocolVersion: "ipfs/0.1.0",
		AgentVersion:    "p2pcore/0.1.0",
		InitialDelay:    Duration(500 * time.Millisecond),
		Interval:        Duration(5 * time.Minute),
		ErrorInterval:   Duration(time.Hour),
		Timeout:         Duration(30 * time.Second),
		MaxMessageSize:  64 * 1024,
		CacheSize:       1024,
	}
}

// Validate 验证身份交换配置
func (c IdentifyConfig) Validate() error {
	if c.InitialDelay < 0 {
		return errors.New("identify initial delay must not be negative")
	}
	if c.Interval <= 0 || c.ErrorInterval <= 0 {
		return errors.New("identify intervals must be positive")
	}
	if c.Timeout <= 0 {
		return errors.New("identify timeout must be positive")
	}
	if c.MaxMessageSize <= 0 {
		return errors.New("identify max message size must be positive")
	}
	if c.CacheSize <= 0 {
		return errors.New("identify cache size must be positive")
	}
	return nil
}
