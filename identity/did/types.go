// Package did implements the optional on-chain DID anchor: a stronger,
// blockchain-backed alternative to the rendezvous directory for binding a
// human-readable handle to a PeerID. A peer may publish a
// {handle_hash, peer_id, updated_at} record to an Ethereum contract or a
// Solana program account, selected by config.DIDConfig.Network, and invite
// redemption cross-checks the rendezvous-claimed PeerID against it.
package did

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/rchat-io/rchat-node/config"
	"github.com/rchat-io/rchat-node/identity"
)

// HandleBinding is the on-chain record an Anchor resolves: the peer a
// handle currently maps to and when that mapping was last published.
type HandleBinding struct {
	HandleHash [32]byte
	PeerID     identity.PeerID
	UpdatedAt  time.Time
}

// Anchor is the chain-agnostic interface the ethereum and solana clients
// implement. Lookup is read-only and is what invite redemption calls to
// cross-check a claimed PeerID; Publish is used by a node asserting its own
// binding; Ping backs the operational health check.
type Anchor interface {
	Lookup(ctx context.Context, handle string) (*HandleBinding, error)
	Publish(ctx context.Context, handle string, peerID identity.PeerID, signer AnchorSigner) (txHash string, err error)
	Ping(ctx context.Context) error
}

// AnchorSigner is the subset of crypto.KeyPair an Anchor needs to
// authenticate a Publish call; kept narrow so this package doesn't need to
// import crypto's full surface.
type AnchorSigner interface {
	Sign(message []byte) ([]byte, error)
}

// Sentinel errors returned by Anchor implementations.
var (
	ErrHandleNotFound     = errors.New("did: handle has no published binding")
	ErrAnchorNotConfigured = errors.New("did: no anchor configured for this network")
)

// HashHandle derives the handle_hash an Anchor indexes bindings by. Hashing
// (rather than publishing handles in the clear) keeps the on-chain record
// from doubling as a public handle directory.
func HashHandle(handle string) [32]byte {
	return sha256.Sum256([]byte(handle))
}

// ethereumConstructor and solanaConstructor are set by internal/didinit's
// init() to break the import cycle New would otherwise form: the ethereum
// and solana packages both need this package's Anchor/HandleBinding types,
// so this package cannot import them back directly.
var (
	ethereumConstructor func(*config.DIDConfig) (Anchor, error)
	solanaConstructor   func(*config.DIDConfig) (Anchor, error)
)

// SetAnchorConstructors wires the concrete ethereum.New and solana.New
// constructors. Must be called (via an anonymous import of
// internal/didinit) before New is used with a non-empty network.
func SetAnchorConstructors(ethereumCtor, solanaCtor func(*config.DIDConfig) (Anchor, error)) {
	ethereumConstructor = ethereumCtor
	solanaConstructor = solanaCtor
}

// New builds the Anchor for cfg.Network. An empty network is not an error:
// it returns (nil, nil), meaning no anchor is configured and callers should
// fall back to rendezvous-only verification.
func New(cfg *config.DIDConfig) (Anchor, error) {
	if cfg == nil || cfg.Network == "" {
		return nil, nil
	}

	switch cfg.Network {
	case "ethereum":
		if ethereumConstructor == nil {
			panic("did: ethereum anchor constructor not initialized")
		}
		return ethereumConstructor(cfg)
	case "solana":
		if solanaConstructor == nil {
			panic("did: solana anchor constructor not initialized")
		}
		return solanaConstructor(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrAnchorNotConfigured, cfg.Network)
	}
}
