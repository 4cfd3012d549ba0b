package api

import (
	"context"
	"time"

	"github.com/rchat-io/rchat-node/core/invite"
)

// inviteRepublishInterval is how often a pending invitation's offer is
// republished on its invite pubsub topic while it waits to be redeemed.
const inviteRepublishInterval = 30 * time.Second

// GenerateInvitePassword returns a fresh one-time password for a new
// invitation, for display alongside the handle the invitee will redeem it
// against.
func (d *Dispatcher) GenerateInvitePassword() (string, *Error) {
	password, err := invite.GenerateInvitePassword()
	if err != nil {
		return "", newError(KindInternal, "generate invite password", err)
	}
	return password, nil
}

// CreateInvite publishes a redeemable offer for inviteeHandle, keeping it
// republished until redeemed, expired, or ctx is canceled.
func (d *Dispatcher) CreateInvite(ctx context.Context, inviteeHandle, password string) *Error {
	engine := d.inviteEngine()
	if engine == nil {
		return newError(KindUnavailable, "invite engine not wired", nil)
	}
	if err := engine.CreateInvite(ctx, inviteeHandle, password, inviteRepublishInterval); err != nil {
		return classify(err, KindInternal)
	}
	return nil
}

// RedeemAndConnect redeems inviterHandle's pending invitation with password,
// returning the inviter's peer ID once the handshake and (if configured)
// identity-anchor verification succeed.
func (d *Dispatcher) RedeemAndConnect(ctx context.Context, inviterHandle, password string) (string, *Error) {
	engine := d.inviteEngine()
	if engine == nil {
		return "", newError(KindUnavailable, "invite engine not wired", nil)
	}
	peerID, err := engine.RedeemAndConnect(ctx, inviterHandle, password)
	if err != nil {
		return "", classify(err, KindInternal)
	}
	return peerID.String(), nil
}
