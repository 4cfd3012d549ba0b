// Package invite implements the node's trust-establishment handshake: a
// human-readable invite password gates a sealed offer published on a
// rendezvous topic, and redemption runs the connection handshake before
// either side records the other as a TrustedPeer (component K).
package invite

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rchat-io/rchat-node/identity"
)

// IdentityAnchor is the optional on-chain cross-check for a claimed PeerID:
// implemented by identity/did's Anchor. Nil means no anchor is configured
// and redemption falls back to rendezvous-only verification.
type IdentityAnchor interface {
	Lookup(ctx context.Context, handle string) (peerID identity.PeerID, ok bool, err error)
}

// State is the invitation's position in its pending/redeemed/expired lifecycle.
type State string

const (
	StatePending  State = "pending"
	StateRedeemed State = "redeemed"
	StateExpired  State = "expired"
)

// DefaultTTL is how long a pending invitation is held before it expires
// unredeemed.
const DefaultTTL = 15 * time.Minute

// PasswordLength is the invite password's character count; at the base58
// alphabet's ~5.86 bits/char this carries comfortably more than the
// required 70 bits of entropy.
const PasswordLength = 14

// Sentinel errors surfaced by invitation creation and redemption.
var (
	ErrInviteExpired    = errors.New("invite: expired")
	ErrInviteMismatch   = errors.New("invite: mismatch")
	ErrAlreadyRedeemed  = errors.New("invite: already redeemed")
	ErrIdentityMismatch = errors.New("invite: peer identity does not match published peer id")
)

// Invitation is the inviter's pending-state record: enough to verify a
// redemption attempt and to know when to stop re-publishing the offer.
type Invitation struct {
	InviterPeerID identity.PeerID `json:"inviter_peer_id"`
	InviteeHandle string          `json:"invitee_handle"`
	Nonce         string          `json:"nonce"`
	PasswordHash  []byte          `json:"password_hash"`
	CreatedAt     time.Time       `json:"created_at"`
	State         State           `json:"state"`
}

// IsExpired reports whether the invitation has passed its TTL, given "now".
func (inv *Invitation) IsExpired(now time.Time) bool {
	return inv.State == StatePending && now.After(inv.CreatedAt.Add(DefaultTTL))
}

// offer is the AEAD-sealed payload published on the invite topic: enough
// for the invitee to dial the inviter once it decrypts under the shared
// invite-derived key.
type offer struct {
	InviterPeerID string    `json:"inviter_peer_id"`
	Addrs         []string  `json:"addrs"`
	Nonce         string    `json:"nonce"`
	IssuedAt      time.Time `json:"issued_at"`
}

func marshalOffer(o offer) ([]byte, error) {
	return json.Marshal(o)
}

func unmarshalOffer(data []byte) (offer, error) {
	var o offer
	err := json.Unmarshal(data, &o)
	return o, err
}

// acceptPayload is what the invitee signs and sends back over the fresh
// handshake-established session to complete redemption.
type acceptPayload struct {
	InviteeNonce string    `json:"invitee_nonce"`
	RedeemedAt   time.Time `json:"redeemed_at"`
}
