package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/dep2p/go-p2pcore/pkg/types"
)

// ============================================================================
//                              Identity 实现
// ============================================================================

// Identity 节点身份
//
// 持有 Ed25519 密钥对，PeerID 在构造时派生并缓存。
type Identity struct {
	priv   ed25519.PrivateKey
	pub    ed25519.PublicKey
	peerID types.PeerID
}

// Generate 生成新的随机身份
func Generate() (*Identity, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return FromPrivateKey(priv)
}

// FromSeed 由 32 字节种子恢复身份
func FromSeed(seed []byte) (*Identity, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, ErrInvalidKeySize
	}
	return FromPrivateKey(ed25519.NewKeyFromSeed(seed))
}

// FromPrivateKey 由私钥创建身份
func FromPrivateKey(priv ed25519.PrivateKey) (*Identity, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, ErrInvalidKeySize
	}
	pub, _ := priv.Public().(ed25519.PublicKey)
	id, err := PeerIDFromPublicKey(pub)
	if err != nil {
		return nil, err
	}
	return &Identity{priv: priv, pub: pub, peerID: id}, nil
}

// PeerID 返回节点 ID
func (i *Identity) PeerID() types.PeerID {
	return i.peerID
}

// PublicKeyBytes 返回公钥原始字节
func (i *Identity) PublicKeyBytes() []byte {
	out := make([]byte, len(i.pub))
	copy(out, i.pub)
	return out
}

// Seed 返回私钥种子
func (i *Identity) Seed() []byte {
	return i.priv.Seed()
}

// Sign 签名数据
func (i *Identity) Sign(data []byte) []byte {
	return ed25519.Sign(i.priv, data)
}

// Verify 使用公钥验证签名
func Verify(pub, data, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), data, sig)
}
