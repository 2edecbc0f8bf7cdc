package identity

import (
	"crypto/ed25519"
	"crypto/sha256"

	"github.com/dep2p/go-p2pcore/pkg/types"
)

// ============================================================================
// PeerID 派生
// ============================================================================

// PeerIDFromPublicKey 从公钥派生 PeerID
//
// 派生算法：Base58(SHA256(公钥字节))
func PeerIDFromPublicKey(pub []byte) (types.PeerID, error) {
	if len(pub) == 0 {
		return types.EmptyPeerID, ErrEmptyPublicKey
	}
	if len(pub) != ed25519.PublicKeySize {
		return types.EmptyPeerID, ErrInvalidKeySize
	}
	sum := sha256.Sum256(pub)
	return types.PeerIDFromBytes(sum[:]), nil
}

// MatchesPublicKey 校验 PeerID 是否由该公钥派生
func MatchesPublicKey(id types.PeerID, pub []byte) error {
	derived, err := PeerIDFromPublicKey(pub)
	if err != nil {
		return err
	}
	if derived != id {
		return ErrPeerIDMismatch
	}
	return nil
}
