package identity

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-p2pcore/config"
	"github.com/dep2p/go-p2pcore/pkg/types"
)

func TestGenerate_PeerIDIsStable(t *testing.T) {
	id, err := Generate()
	require.NoError(t, err)

	assert.NoError(t, id.PeerID().Validate())

	derived, err := PeerIDFromPublicKey(id.PublicKeyBytes())
	require.NoError(t, err)
	assert.Equal(t, id.PeerID(), derived)
}

func TestFromSeed_Deterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, 32)

	a, err := FromSeed(seed)
	require.NoError(t, err)
	b, err := FromSeed(seed)
	require.NoError(t, err)

	assert.Equal(t, a.PeerID(), b.PeerID())
	assert.Equal(t, seed, a.Seed())

	_, err = FromSeed([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestPeerIDFromPublicKey_Errors(t *testing.T) {
	_, err := PeerIDFromPublicKey(nil)
	assert.ErrorIs(t, err, ErrEmptyPublicKey)

	_, err = PeerIDFromPublicKey([]byte{1})
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestMatchesPublicKey(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)

	assert.NoError(t, MatchesPublicKey(a.PeerID(), a.PublicKeyBytes()))
	assert.ErrorIs(t, MatchesPublicKey(a.PeerID(), b.PublicKeyBytes()), ErrPeerIDMismatch)
}

func TestSignVerify(t *testing.T) {
	id, err := Generate()
	require.NoError(t, err)

	data := []byte("identify me")
	sig := id.Sign(data)

	assert.True(t, Verify(id.PublicKeyBytes(), data, sig))
	assert.False(t, Verify(id.PublicKeyBytes(), []byte("other"), sig))
	assert.False(t, Verify(nil, data, sig))
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.key")

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	created, err := LoadOrCreate(path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.Equal(t, created.PeerID(), loaded.PeerID())
}

func TestLoad_InvalidPEM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.key")
	require.NoError(t, os.WriteFile(path, []byte("not a pem"), 0600))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalidPEM)
}

func TestProvideIdentity(t *testing.T) {
	id, err := ProvideIdentity(ModuleInput{})
	require.NoError(t, err)
	assert.False(t, id.PeerID().IsEmpty())

	cfg := config.NewConfig()
	cfg.Identity.Seed = bytes.Repeat([]byte{9}, 32)
	a, err := ProvideIdentity(ModuleInput{UnifiedCfg: cfg})
	require.NoError(t, err)
	b, err := FromSeed(cfg.Identity.Seed)
	require.NoError(t, err)
	assert.Equal(t, b.PeerID(), a.PeerID())
	assert.NotEqual(t, types.EmptyPeerID, a.PeerID())
}
