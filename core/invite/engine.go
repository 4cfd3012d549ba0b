package invite

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	sagecrypto "github.com/rchat-io/rchat-node/crypto"
	"github.com/rchat-io/rchat-node/core/handshake"
	"github.com/rchat-io/rchat-node/core/message"
	"github.com/rchat-io/rchat-node/core/session"
	"github.com/rchat-io/rchat-node/identity"
	"github.com/rchat-io/rchat-node/internal/logger"
)

// Publisher republishes a sealed offer on a rendezvous topic. Implemented by
// node.InvitePubSub over the pubsub package; injected here so this package
// has no compile-time dependency on it.
type Publisher interface {
	Publish(ctx context.Context, topic string, data []byte) error
}

// Subscription yields sealed offers published on a topic until ctx is
// canceled or Close is called.
type Subscription interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// Subscriber opens a Subscription to a rendezvous topic.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}

// Dialer opens a raw stream to peerID for the invite-accept protocol.
// Implemented by node.InviteDialer over the transport package.
type Dialer interface {
	Dial(ctx context.Context, peerID identity.PeerID) (io.ReadWriteCloser, error)
}

// TrustStore records a peer as trusted once an invitation has been
// successfully redeemed in either direction.
type TrustStore interface {
	AddTrustedPeer(peerID identity.PeerID, handle string) error
}

// topicFor is the rendezvous topic name both sides of an invitation agree
// on without a prior discovery step: the inviter and invitee handles in a
// fixed order.
func topicFor(inviterHandle, inviteeHandle string) string {
	return fmt.Sprintf("invite/%s,%s", inviterHandle, inviteeHandle)
}

// Engine runs both sides of the trust-establishment flow: the inviter's
// create_invite/republish loop, and the invitee's redeem_and_connect.
type Engine struct {
	mu sync.Mutex

	selfPeerID  identity.PeerID
	selfHandle  string
	identityKey sagecrypto.KeyPair
	selfAddrs   []string
	sessionCfg  session.Config

	publisher      Publisher
	subscriber     Subscriber
	dialer         Dialer
	trust          TrustStore
	identityAnchor IdentityAnchor
	log            logger.Logger

	pending map[string]*Invitation // keyed by invitee handle
}

// SetIdentityAnchor wires an optional on-chain identity anchor. When set,
// RedeemAndConnect additionally cross-checks the rendezvous-claimed PeerID
// against the anchor's published binding for inviterHandle and fails closed
// on divergence. Nil (the default) leaves redemption rendezvous-only.
func (e *Engine) SetIdentityAnchor(anchor IdentityAnchor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.identityAnchor = anchor
}

// NewEngine builds an invitation Engine for a node whose own handle and
// reachable addresses are selfHandle/selfAddrs.
func NewEngine(
	selfPeerID identity.PeerID,
	selfHandle string,
	identityKey sagecrypto.KeyPair,
	selfAddrs []string,
	publisher Publisher,
	subscriber Subscriber,
	dialer Dialer,
	trust TrustStore,
	log logger.Logger,
) *Engine {
	return &Engine{
		selfPeerID:  selfPeerID,
		selfHandle:  selfHandle,
		identityKey: identityKey,
		selfAddrs:   selfAddrs,
		sessionCfg:  session.DefaultConfig,
		publisher:   publisher,
		subscriber:  subscriber,
		dialer:      dialer,
		trust:       trust,
		log:         log,
		pending:     make(map[string]*Invitation),
	}
}

func randomNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("invite: generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// CreateInvite records a pending invitation for inviteeHandle under
// password, publishes the sealed offer, and republishes it on
// republishInterval until it is redeemed, expires, or ctx is canceled.
func (e *Engine) CreateInvite(ctx context.Context, inviteeHandle, password string, republishInterval time.Duration) error {
	nonce, err := randomNonce()
	if err != nil {
		return err
	}

	inv := &Invitation{
		InviterPeerID: e.selfPeerID,
		InviteeHandle: inviteeHandle,
		Nonce:         nonce,
		PasswordHash:  hashPassword(password),
		CreatedAt:     time.Now(),
		State:         StatePending,
	}

	e.mu.Lock()
	e.pending[inviteeHandle] = inv
	e.mu.Unlock()

	if err := e.publishOffer(ctx, inv, password); err != nil {
		return err
	}

	if republishInterval > 0 {
		go e.republishLoop(ctx, inviteeHandle, password, republishInterval)
	}
	return nil
}

func (e *Engine) publishOffer(ctx context.Context, inv *Invitation, password string) error {
	o := offer{
		InviterPeerID: inv.InviterPeerID.String(),
		Addrs:         e.selfAddrs,
		Nonce:         inv.Nonce,
		IssuedAt:      time.Now(),
	}
	plaintext, err := marshalOffer(o)
	if err != nil {
		return fmt.Errorf("invite: marshal offer: %w", err)
	}
	sealed, err := sealWithPassword(password, plaintext)
	if err != nil {
		return err
	}
	topic := topicFor(e.selfHandle, inv.InviteeHandle)
	if err := e.publisher.Publish(ctx, topic, sealed); err != nil {
		return fmt.Errorf("invite: publish offer: %w", err)
	}
	return nil
}

func (e *Engine) republishLoop(ctx context.Context, inviteeHandle, password string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.mu.Lock()
			inv, ok := e.pending[inviteeHandle]
			if ok && inv.IsExpired(time.Now()) {
				inv.State = StateExpired
			}
			done := !ok || inv.State != StatePending
			e.mu.Unlock()
			if done {
				return
			}
			if err := e.publishOffer(ctx, inv, password); err != nil && e.log != nil {
				e.log.Warn("invite: republish failed", logger.String("invitee_handle", inviteeHandle), logger.Error(err))
			}
		}
	}
}

// AcceptRedemption runs the inviter's side of a single incoming invite
// connection: completes the handshake, reads the signed invite-accept
// payload, matches it against a pending invitation by nonce, and on
// success records the invitee as a TrustedPeer.
func (e *Engine) AcceptRedemption(ctx context.Context, conn io.ReadWriteCloser) (identity.PeerID, error) {
	sess, peerID, err := handshake.Respond(ctx, conn, e.identityKey, e.sessionCfg)
	if err != nil {
		return "", err
	}

	payload, err := message.ReadFrame(conn)
	if err != nil {
		return "", fmt.Errorf("invite: read invite-accept: %w", err)
	}
	plaintext, err := sess.DecryptAndVerify(payload)
	if err != nil {
		return "", fmt.Errorf("invite: decrypt invite-accept: %w", err)
	}

	var accept acceptPayload
	if err := json.Unmarshal(plaintext, &accept); err != nil {
		return "", fmt.Errorf("invite: unmarshal invite-accept: %w", err)
	}

	e.mu.Lock()
	var matched *Invitation
	var matchedHandle string
	for handle, inv := range e.pending {
		if inv.State == StatePending && inv.Nonce == accept.InviteeNonce {
			matched = inv
			matchedHandle = handle
			break
		}
	}
	if matched != nil {
		matched.State = StateRedeemed
	}
	e.mu.Unlock()

	if matched == nil {
		return "", ErrInviteMismatch
	}

	if err := e.trust.AddTrustedPeer(peerID, matchedHandle); err != nil {
		return "", fmt.Errorf("invite: add trusted peer: %w", err)
	}
	return peerID, nil
}

// RedeemAndConnect is the invitee's side: subscribe to the rendezvous
// topic, decrypt the offer under password, dial the inviter, run the
// connection handshake, then send a signed invite-accept proving knowledge
// of the invite nonce. On success the inviter is recorded as a TrustedPeer.
func (e *Engine) RedeemAndConnect(ctx context.Context, inviterHandle, password string) (identity.PeerID, error) {
	topic := topicFor(inviterHandle, e.selfHandle)
	sub, err := e.subscriber.Subscribe(ctx, topic)
	if err != nil {
		return "", fmt.Errorf("invite: subscribe: %w", err)
	}
	defer sub.Close()

	// topic is scoped to exactly this (inviterHandle, selfHandle) pair, so
	// the first message read off it is the inviter's offer: a decrypt
	// failure means the supplied password is wrong, not that some other
	// offer is sharing the topic.
	offerSealed, err := sub.Next(ctx)
	if err != nil {
		return "", fmt.Errorf("invite: read offer: %w", err)
	}
	offerPlaintext, err := openWithPassword(password, offerSealed)
	if err != nil {
		return "", ErrInviteMismatch
	}
	o, err := unmarshalOffer(offerPlaintext)
	if err != nil {
		return "", fmt.Errorf("invite: unmarshal offer: %w", err)
	}

	inviterPeerID := identity.PeerID(o.InviterPeerID)

	conn, err := e.dialer.Dial(ctx, inviterPeerID)
	if err != nil {
		return "", fmt.Errorf("invite: dial inviter: %w", err)
	}
	defer conn.Close()

	sess, peerID, err := handshake.Initiate(ctx, conn, e.identityKey, inviterPeerID, e.sessionCfg)
	if err != nil {
		return "", err
	}
	if peerID != inviterPeerID {
		return "", ErrIdentityMismatch
	}

	e.mu.Lock()
	anchor := e.identityAnchor
	e.mu.Unlock()
	if anchor != nil {
		anchoredPeerID, ok, err := anchor.Lookup(ctx, inviterHandle)
		if err != nil {
			return "", fmt.Errorf("invite: identity anchor lookup: %w", err)
		}
		if ok && anchoredPeerID != peerID {
			return "", ErrIdentityMismatch
		}
	}

	accept := acceptPayload{InviteeNonce: o.Nonce, RedeemedAt: time.Now()}
	plaintext, err := json.Marshal(accept)
	if err != nil {
		return "", fmt.Errorf("invite: marshal invite-accept: %w", err)
	}
	sealed, err := sess.EncryptAndSign(plaintext)
	if err != nil {
		return "", fmt.Errorf("invite: seal invite-accept: %w", err)
	}
	if err := message.WriteFrame(conn, sealed); err != nil {
		return "", fmt.Errorf("invite: send invite-accept: %w", err)
	}

	if err := e.trust.AddTrustedPeer(peerID, inviterHandle); err != nil {
		return "", fmt.Errorf("invite: add trusted peer: %w", err)
	}
	return peerID, nil
}
