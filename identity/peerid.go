// Package identity defines the node's canonical PeerID: the encoded public
// half of its long-lived Ed25519 IdentityKey, used everywhere a peer needs
// to be named (trust list, invitations, session lookup, libp2p dialing).
package identity

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
)

// PeerID is the canonical, libp2p-compatible encoding of an Ed25519 public
// key: the base58btc multihash the rest of the node (transport, store,
// trust list) uses to name a peer.
type PeerID string

// ErrEmptyPublicKey is returned when FromEd25519PublicKey receives a
// zero-length key.
var ErrEmptyPublicKey = errors.New("identity: empty public key")

// FromEd25519PublicKey derives the canonical PeerID for an Ed25519 public
// key, matching the encoding libp2p uses for dialing so the node's identity
// and its transport address are always the same value.
func FromEd25519PublicKey(pub ed25519.PublicKey) (PeerID, error) {
	if len(pub) == 0 {
		return "", ErrEmptyPublicKey
	}

	pk, err := libp2pcrypto.UnmarshalEd25519PublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("identity: unmarshal ed25519 public key: %w", err)
	}

	id, err := peer.IDFromPublicKey(pk)
	if err != nil {
		return "", fmt.Errorf("identity: derive peer id: %w", err)
	}

	return PeerID(id.String()), nil
}

// String returns the PeerID's text form, as used in logs, the store, and
// the wire protocol.
func (p PeerID) String() string { return string(p) }

// IsZero reports whether p is the empty PeerID.
func (p PeerID) IsZero() bool { return p == "" }

// Libp2pID converts back to a libp2p peer.ID for use with the transport layer.
func (p PeerID) Libp2pID() (peer.ID, error) {
	id, err := peer.Decode(string(p))
	if err != nil {
		return "", fmt.Errorf("identity: decode peer id %q: %w", p, err)
	}
	return id, nil
}

// ErrNotEd25519Identity is returned by ExtractEd25519PublicKey when the
// PeerID was not derived from an Ed25519 key (or from a key long enough that
// libp2p hashed it instead of embedding it).
var ErrNotEd25519Identity = errors.New("identity: peer id does not embed an ed25519 public key")

// ExtractEd25519PublicKey recovers the Ed25519 public key a PeerID was
// derived from. This works without any out-of-band key exchange because
// Ed25519 public keys (32 bytes) are small enough that libp2p's "identity"
// multihash embeds them directly in the PeerID rather than hashing them —
// the handshake only needs to exchange PeerIDs to also have each side's
// long-term verification key.
func (p PeerID) ExtractEd25519PublicKey() (ed25519.PublicKey, error) {
	id, err := p.Libp2pID()
	if err != nil {
		return nil, err
	}

	pub, err := id.ExtractPublicKey()
	if err != nil {
		return nil, fmt.Errorf("identity: extract public key: %w", err)
	}

	raw, err := pub.Raw()
	if err != nil {
		return nil, fmt.Errorf("identity: marshal public key: %w", err)
	}
	if pub.Type() != libp2pcrypto.Ed25519 || len(raw) != ed25519.PublicKeySize {
		return nil, ErrNotEd25519Identity
	}
	return ed25519.PublicKey(raw), nil
}
