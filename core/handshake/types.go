// Package handshake implements the per-connection Noise-IK-style key
// agreement that authenticates a fresh ephemeral X25519 exchange with each
// side's long-lived Ed25519 IdentityKey, producing the shared secret
// core/session derives traffic keys from. Run once per dialed connection,
// over the /rchat/handshake/1 stream.
package handshake

import (
	"errors"
	"time"
)

// protocolLabel is mixed into the session key derivation salt so a session
// key from this protocol version can never collide with a future one.
const protocolLabel = "rchat-handshake-v1"

// Sentinel errors surfaced by Initiate/Respond.
var (
	ErrHandshakeFailed   = errors.New("handshake: failed")
	ErrIdentityMismatch  = errors.New("handshake: peer identity does not match expected peer id")
	ErrMalformedMessage  = errors.New("handshake: malformed message")
	ErrTimeout           = errors.New("handshake: timed out")
)

// initMessage is sent by the dialing side first.
type initMessage struct {
	PeerID      string    `json:"peer_id"`
	ContextID   string    `json:"context_id"`
	EphemeralPK []byte    `json:"ephemeral_pk"`
	Timestamp   time.Time `json:"timestamp"`
	Signature   []byte    `json:"signature"`
}

// acceptMessage is sent by the listening side in reply.
type acceptMessage struct {
	PeerID      string    `json:"peer_id"`
	EphemeralPK []byte    `json:"ephemeral_pk"`
	Timestamp   time.Time `json:"timestamp"`
	Signature   []byte    `json:"signature"`
}

// signedTranscript is what each side actually signs: binds the signer's
// PeerID, the shared ContextID, and the signer's own ephemeral public key,
// so a captured init/accept message cannot be replayed into a different
// handshake context or paired with a substituted ephemeral key.
func signedTranscript(contextID string, peerID string, ephemeralPK []byte) []byte {
	out := make([]byte, 0, len(contextID)+len(peerID)+len(ephemeralPK)+2*len([]byte(protocolLabel)))
	out = append(out, protocolLabel...)
	out = append(out, '|')
	out = append(out, contextID...)
	out = append(out, '|')
	out = append(out, peerID...)
	out = append(out, '|')
	out = append(out, ephemeralPK...)
	return out
}
