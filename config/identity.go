package config

import (
	"errors"
)

// seedSize ed25519 种子长度
const seedSize = 32

// IdentityConfig 身份配置
//
// 节点身份是一对 ed25519 密钥：
//   - Seed 非空时直接由种子派生（测试与演示用）
//   - 否则 KeyFile 非空时从文件加载，不存在则生成并保存
//   - 都为空时在内存中生成临时身份
type IdentityConfig struct {
	// Seed 32 字节种子，JSON 中为 base64
	Seed []byte `json:"seed,omitempty"`

	// KeyFile 密钥文件路径（PEM）
	KeyFile string `json:"key_file,omitempty"`
}

// DefaultIdentityConfig 返回默认身份配置
func DefaultIdentityConfig() IdentityConfig {
	return IdentityConfig{}
}

// Validate 验证身份配置
func (c IdentityConfig) Validate() error {
	if len(c.Seed) != 0 && len(c.Seed) != seedSize {
		return errors.New("identity seed must be 32 bytes")
	}
	return nil
}

// WithKeyFile 设置密钥文件路径
func (c IdentityConfig) WithKeyFile(path string) IdentityConfig {
	c.KeyFile = path
	return c
}

// WithSeed 设置种子
func (c IdentityConfig) WithSeed(seed []byte) IdentityConfig {
	c.Seed = append([]byte(nil), seed...)
	return c
}
