package plaintext

import (
	"fmt"

	"github.com/mr-tron/base58"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-p2pcore/internal/core/identity"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

// 字段编号
//
//	message Exchange  { bytes id = 1; PublicKey pubkey = 2; }
//	message PublicKey { KeyType type = 1; bytes data = 2; }
const (
	fieldExchangeID     protowire.Number = 1
	fieldExchangePubKey protowire.Number = 2

	fieldKeyType protowire.Number = 1
	fieldKeyData protowire.Number = 2

	keyTypeEd25519 = 1
)

// exchange 身份交换消息
type exchange struct {
	id      []byte
	keyType uint64
	pubKey  []byte
}

func localExchange(id *identity.Identity) (exchange, error) {
	raw, err := base58.Decode(id.PeerID().String())
	if err != nil {
		return exchange{}, fmt.Errorf("decode local peer id: %w", err)
	}
	return exchange{id: raw, keyType: keyTypeEd25519, pubKey: id.PublicKeyBytes()}, nil
}

func (e exchange) marshal() []byte {
	var key []byte
	key = protowire.AppendTag(key, fieldKeyType, protowire.VarintType)
	key = protowire.AppendVarint(key, e.keyType)
	key = protowire.AppendTag(key, fieldKeyData, protowire.BytesType)
	key = protowire.AppendBytes(key, e.pubKey)

	var b []byte
	b = protowire.AppendTag(b, fieldExchangeID, protowire.BytesType)
	b = protowire.AppendBytes(b, e.id)
	b = protowire.AppendTag(b, fieldExchangePubKey, protowire.BytesType)
	b = protowire.AppendBytes(b, key)
	return b
}

func (e *exchange) unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrInvalidExchange, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldExchangeID && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return fmt.Errorf("%w: %v", ErrInvalidExchange, protowire.ParseError(m))
			}
			e.id = append([]byte(nil), v...)
			n = m
		case num == fieldExchangePubKey && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return fmt.Errorf("%w: %v", ErrInvalidExchange, protowire.ParseError(m))
			}
			if err := e.unmarshalKey(v); err != nil {
				return err
			}
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrInvalidExchange, protowire.ParseError(n))
			}
		}
		b = b[n:]
	}
	return nil
}

func (e *exchange) unmarshalKey(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrInvalidExchange, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldKeyType && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return fmt.Errorf("%w: %v", ErrInvalidExchange, protowire.ParseError(m))
			}
			e.keyType = v
			n = m
		case num == fieldKeyData && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return fmt.Errorf("%w: %v", ErrInvalidExchange, protowire.ParseError(m))
			}
			e.pubKey = append([]byte(nil), v...)
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrInvalidExchange, protowire.ParseError(n))
			}
		}
		b = b[n:]
	}
	return nil
}

// verify 校验 id 由公钥派生，返回对端 PeerID
func (e exchange) verify() (types.PeerID, error) {
	if e.keyType != keyTypeEd25519 {
		return types.EmptyPeerID, fmt.Errorf("%w: unsupported key type %d", ErrInvalidExchange, e.keyType)
	}
	if len(e.id) == 0 {
		return types.EmptyPeerID, fmt.Errorf("%w: missing id", ErrInvalidExchange)
	}
	peer := types.PeerIDFromBytes(e.id)
	if err := identity.MatchesPublicKey(peer, e.pubKey); err != nil {
		return types.EmptyPeerID, fmt.Errorf("%w: %v", ErrPeerIDMismatch, err)
	}
	return peer, nil
}
