package config

import (
	"errors"
	"time"
)

// SwarmConfig 连接驱动配置
type SwarmConfig struct {
	// PollInterval 没有唤醒时的兜底轮询间隔
	PollInterval Duration `json:"poll_interval"`

	// MaxPendingUpgrades 同时进行的入站与出站升级上限
	MaxPendingUpgrades int `json:"max_pending_upgrades"`

	// EventBuffer 向上层投递事件的通道容量
	EventBuffer int `json:"event_buffer"`
}

// DefaultSwarmConfig 返回默认连接驱动配置
func DefaultSwarmConfig() SwarmConfig {
	return SwarmConfig{
		PollInterval:       Duration(100 * time.Millisecond),
		MaxPendingUpgrades: 256,
		EventBuffer:        64,
	}
}

// Validate 验证连接驱动配置
func (c SwarmConfig) Validate() error {
	if c.PollInterval <= 0 {
		return errors.New("swarm poll interval must be positive")
	}
	if c.MaxPendingUpgrades <= 0 {
		return errors.New("swarm max pending upgrades must be positive")
	}
	if c.EventBuffer < 0 {
		return errors.New("swarm event buffer must not be negative")
	}
	return nil
}
