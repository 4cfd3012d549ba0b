// Package node is the composition root: it wires the leaf packages
// (transport, pubsub, discovery, store, crypto/vault, core/*) together into
// a running node. This file holds the small adapters that let
// core/invite's dependency-injected interfaces be satisfied by the real
// transport, pubsub, and store implementations; node.go holds the
// start/stop sequencing.
package node

import (
	"context"
	"errors"
	"fmt"
	"io"

	libp2pnetwork "github.com/libp2p/go-libp2p/core/network"

	"github.com/rchat-io/rchat-node/core/invite"
	"github.com/rchat-io/rchat-node/identity"
	"github.com/rchat-io/rchat-node/identity/did"
	"github.com/rchat-io/rchat-node/internal/logger"
	"github.com/rchat-io/rchat-node/pubsub"
	"github.com/rchat-io/rchat-node/store"
	"github.com/rchat-io/rchat-node/transport"
)

// InvitePubSub adapts *pubsub.PubSub to core/invite's Publisher and
// Subscriber interfaces. A plain type assertion can't do this: Go checks a
// method's declared return type for interface satisfaction, and
// (*pubsub.PubSub).Subscribe returns the concrete *pubsub.Subscription,
// not the invite.Subscription interface core/invite depends on.
type InvitePubSub struct {
	ps *pubsub.PubSub
}

// NewInvitePubSub wraps ps for use as a core/invite.Engine dependency.
func NewInvitePubSub(ps *pubsub.PubSub) *InvitePubSub {
	return &InvitePubSub{ps: ps}
}

func (a *InvitePubSub) Publish(ctx context.Context, topic string, data []byte) error {
	return a.ps.Publish(ctx, topic, data)
}

func (a *InvitePubSub) Subscribe(ctx context.Context, topic string) (invite.Subscription, error) {
	return a.ps.Subscribe(ctx, topic)
}

// InviteDialer adapts *transport.Host to core/invite's Dialer interface,
// always dialing the invite-accept protocol stream.
type InviteDialer struct {
	host *transport.Host
}

// NewInviteDialer wraps host for use as a core/invite.Engine dependency.
func NewInviteDialer(host *transport.Host) *InviteDialer {
	return &InviteDialer{host: host}
}

func (d *InviteDialer) Dial(ctx context.Context, peerID identity.PeerID) (io.ReadWriteCloser, error) {
	s, err := d.host.Dial(ctx, peerID, transport.ProtocolInvite, nil)
	if err != nil {
		return nil, fmt.Errorf("node: dial invite stream: %w", err)
	}
	return transport.AsReadWriteCloser(s), nil
}

// TrustStoreAdapter adapts store.Peers to core/invite's TrustStore. The two
// don't line up directly: store.Peers.AddTrustedPeer takes a context and a
// plain string peerID (the shape every other repository method in store/
// uses), while core/invite.TrustStore predates store/ and was written
// against identity.PeerID with no context argument. The redemption path
// that calls it is request/response over an already-dialed stream, not a
// long-running operation, so a background context here doesn't drop any
// cancellation the caller actually needed.
type TrustStoreAdapter struct {
	peers store.Peers
}

// NewTrustStoreAdapter wraps peers for use as a core/invite.Engine dependency.
func NewTrustStoreAdapter(peers store.Peers) *TrustStoreAdapter {
	return &TrustStoreAdapter{peers: peers}
}

func (a *TrustStoreAdapter) AddTrustedPeer(peerID identity.PeerID, handle string) error {
	return a.peers.AddTrustedPeer(context.Background(), peerID.String(), handle)
}

// IdentityAnchorAdapter adapts did.Anchor to core/invite's IdentityAnchor.
// did.Anchor.Lookup returns (*did.HandleBinding, error), using
// did.ErrHandleNotFound to mean "no binding published"; core/invite only
// needs the claimed PeerID and a found/not-found bool, so this adapter
// collapses that sentinel into ok=false rather than making core/invite
// depend on identity/did's error values.
type IdentityAnchorAdapter struct {
	anchor did.Anchor
}

// NewIdentityAnchorAdapter wraps anchor for use as a core/invite.Engine
// dependency. A nil anchor (no DID network configured) is valid: every
// Lookup then reports ok=false, the same as if the adapter were never set.
func NewIdentityAnchorAdapter(anchor did.Anchor) *IdentityAnchorAdapter {
	return &IdentityAnchorAdapter{anchor: anchor}
}

func (a *IdentityAnchorAdapter) Lookup(ctx context.Context, handle string) (identity.PeerID, bool, error) {
	if a.anchor == nil {
		return "", false, nil
	}
	binding, err := a.anchor.Lookup(ctx, handle)
	if errors.Is(err, did.ErrHandleNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return binding.PeerID, true, nil
}

// RegisterInviteHandler wires incoming /rchat/invite/1 streams to engine's
// inviter-side redemption handling.
func RegisterInviteHandler(ctx context.Context, host *transport.Host, engine *invite.Engine, log logger.Logger) {
	host.RegisterHandler(transport.ProtocolInvite, func(s libp2pnetwork.Stream) {
		defer s.Close()
		if _, err := engine.AcceptRedemption(ctx, transport.AsReadWriteCloser(s)); err != nil && log != nil {
			log.Warn("node: invite redemption failed", logger.Error(err))
		}
	})
}
