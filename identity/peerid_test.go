package identity

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromEd25519PublicKeyDeterministic(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	id1, err := FromEd25519PublicKey(pub)
	require.NoError(t, err)
	require.False(t, id1.IsZero())

	id2, err := FromEd25519PublicKey(pub)
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

func TestFromEd25519PublicKeyDiffers(t *testing.T) {
	pub1, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	pub2, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	id1, err := FromEd25519PublicKey(pub1)
	require.NoError(t, err)
	id2, err := FromEd25519PublicKey(pub2)
	require.NoError(t, err)

	require.NotEqual(t, id1, id2)
}

func TestFromEd25519PublicKeyRejectsEmpty(t *testing.T) {
	_, err := FromEd25519PublicKey(nil)
	require.ErrorIs(t, err, ErrEmptyPublicKey)
}

func TestPeerIDRoundTripsThroughLibp2p(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	id, err := FromEd25519PublicKey(pub)
	require.NoError(t, err)

	p2pID, err := id.Libp2pID()
	require.NoError(t, err)
	require.Equal(t, id.String(), p2pID.String())
}
