package identity

import (
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// PEM 类型常量
const pemTypeEd25519Seed = "ED25519 PRIVATE KEY"

// ============================================================================
//                              私钥持久化
// ============================================================================

// Save 保存身份到 PEM 文件
//
// 文件内容为私钥种子，权限 0600，仅所有者可读写。
func (i *Identity) Save(path string) error {
	block := &pem.Block{
		Type:  pemTypeEd25519Seed,
		Bytes: i.Seed(),
	}
	return atomicWriteFile(path, pem.EncodeToMemory(block), 0600)
}

// Load 从 PEM 文件加载身份
func Load(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}

	block, _ := pem.Decode(data)
	if block == nil || block.Type != pemTypeEd25519Seed {
		return nil, ErrInvalidPEM
	}
	return FromSeed(block.Bytes)
}

// LoadOrCreate 加载身份，文件不存在时生成并保存
func LoadOrCreate(path string) (*Identity, error) {
	id, err := Load(path)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrKeyNotFound) {
		return nil, err
	}

	id, err = Generate()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("创建密钥目录失败: %w", err)
	}
	if err := id.Save(path); err != nil {
		return nil, err
	}
	logger.Info("已生成新身份", "peer", id.PeerID().ShortString(), "path", path)
	return id, nil
}

// ============================================================================
//                              原子写操作
// ============================================================================

// atomicWriteFile 原子写文件
//
// 先写同目录临时文件并同步，再 rename 到目标路径。
// 任何步骤失败时目标文件保持不变。
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("写入临时文件失败: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("同步临时文件失败: %w", err)
	}
	if err := tmpFile.Chmod(perm); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("设置文件权限失败: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("关闭临时文件失败: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("原子 rename 失败: %w", err)
	}

	success = true
	return nil
}
