package invite

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rchat-io/rchat-node/crypto/keys"
	"github.com/rchat-io/rchat-node/identity"
)

// fakeBus is an in-process rendezvous topic broker shared by a Publisher and
// Subscriber pair in a test, standing in for the pubsub package.
type fakeBus struct {
	mu   sync.Mutex
	subs map[string][]chan []byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{subs: make(map[string][]chan []byte)}
}

func (b *fakeBus) Publish(_ context.Context, topic string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[topic] {
		select {
		case ch <- data:
		default:
		}
	}
	return nil
}

func (b *fakeBus) Subscribe(_ context.Context, topic string) (Subscription, error) {
	ch := make(chan []byte, 8)
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()
	return &fakeSubscription{ch: ch}, nil
}

type fakeSubscription struct {
	ch     chan []byte
	closed bool
}

func (s *fakeSubscription) Next(ctx context.Context) ([]byte, error) {
	select {
	case data := <-s.ch:
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeSubscription) Close() error {
	s.closed = true
	return nil
}

// fakeDialer hands back a net.Pipe end for a pre-registered peer, standing in
// for the transport package.
type fakeDialer struct {
	mu    sync.Mutex
	conns map[identity.PeerID]net.Conn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(map[identity.PeerID]net.Conn)}
}

func (d *fakeDialer) register(peerID identity.PeerID, conn net.Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conns[peerID] = conn
}

func (d *fakeDialer) Dial(_ context.Context, peerID identity.PeerID) (io.ReadWriteCloser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	conn, ok := d.conns[peerID]
	if !ok {
		return nil, fmt.Errorf("fakeDialer: no connection registered for %s", peerID)
	}
	return conn, nil
}

type fakeTrustStore struct {
	mu      sync.Mutex
	trusted map[identity.PeerID]string
}

func newFakeTrustStore() *fakeTrustStore {
	return &fakeTrustStore{trusted: make(map[identity.PeerID]string)}
}

func (s *fakeTrustStore) AddTrustedPeer(peerID identity.PeerID, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trusted[peerID] = handle
	return nil
}

func (s *fakeTrustStore) isTrusted(peerID identity.PeerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.trusted[peerID]
	return ok
}

func TestEngineCreateAndRedeemInvite(t *testing.T) {
	inviterKey, err := keys.GenerateEd25519KeyPair()
	require.NoError(t, err)
	inviteeKey, err := keys.GenerateEd25519KeyPair()
	require.NoError(t, err)

	inviterPeerID := identity.PeerID(inviterKey.ID())
	inviteePeerID := identity.PeerID(inviteeKey.ID())

	bus := newFakeBus()
	dialer := newFakeDialer()

	// The invitee's Dial(inviterPeerID) hands back the client end of the
	// pipe; the inviter's AcceptRedemption is driven directly off the
	// server end, mirroring how a listener would hand off an accepted
	// stream once transport exists.
	inviterConn, inviteeConn := net.Pipe()
	dialer.register(inviterPeerID, inviterConn)

	inviterTrust := newFakeTrustStore()
	inviteeTrust := newFakeTrustStore()

	inviterEngine := NewEngine(inviterPeerID, "alice", inviterKey, []string{"/ip4/127.0.0.1/tcp/4001"}, bus, bus, dialer, inviterTrust, nil)
	inviteeEngine := NewEngine(inviteePeerID, "bob", inviteeKey, nil, bus, bus, dialer, inviteeTrust, nil)

	password, err := GenerateInvitePassword()
	require.NoError(t, err)
	require.Len(t, password, PasswordLength)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// republishInterval is small and nonzero: the fake bus only delivers to
	// subscribers already registered at publish time, so the invitee (which
	// subscribes after this call returns) needs a second publish to land.
	require.NoError(t, inviterEngine.CreateInvite(ctx, "bob", password, 20*time.Millisecond))

	type redeemResult struct {
		peerID identity.PeerID
		err    error
	}
	inviteeDone := make(chan redeemResult, 1)
	go func() {
		peerID, err := inviteeEngine.RedeemAndConnect(ctx, "alice", password)
		inviteeDone <- redeemResult{peerID, err}
	}()

	acceptDone := make(chan redeemResult, 1)
	go func() {
		peerID, err := inviterEngine.AcceptRedemption(ctx, inviteeConn)
		acceptDone <- redeemResult{peerID, err}
	}()

	invitee := <-inviteeDone
	accept := <-acceptDone

	require.NoError(t, invitee.err)
	require.NoError(t, accept.err)
	require.Equal(t, inviterPeerID, invitee.peerID)
	require.Equal(t, inviteePeerID, accept.peerID)

	require.True(t, inviteeTrust.isTrusted(inviterPeerID))
	require.True(t, inviterTrust.isTrusted(inviteePeerID))
}

func TestEngineRedeemWithWrongPasswordFailsWithMismatch(t *testing.T) {
	inviterKey, err := keys.GenerateEd25519KeyPair()
	require.NoError(t, err)
	inviteeKey, err := keys.GenerateEd25519KeyPair()
	require.NoError(t, err)

	inviterPeerID := identity.PeerID(inviterKey.ID())

	bus := newFakeBus()
	dialer := newFakeDialer()
	inviterTrust := newFakeTrustStore()
	inviteeTrust := newFakeTrustStore()

	inviteePeerID := identity.PeerID(inviteeKey.ID())

	inviterEngine := NewEngine(inviterPeerID, "alice", inviterKey, nil, bus, bus, dialer, inviterTrust, nil)
	inviteeEngine := NewEngine(inviteePeerID, "bob", inviteeKey, nil, bus, bus, dialer, inviteeTrust, nil)

	correctPassword, err := GenerateInvitePassword()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	// Small republish interval: RedeemAndConnect subscribes after this call
	// returns, and the fake bus only delivers to already-registered
	// subscribers, so a lone publish here would never reach it.
	require.NoError(t, inviterEngine.CreateInvite(ctx, "bob", correctPassword, 20*time.Millisecond))

	_, err = inviteeEngine.RedeemAndConnect(ctx, "alice", "wrong-password-wont-open")
	require.ErrorIs(t, err, ErrInviteMismatch)
}

// fakeIdentityAnchor stands in for an on-chain identity.did.Anchor cross-check.
type fakeIdentityAnchor struct {
	bound identity.PeerID
	ok    bool
	err   error
}

func (a *fakeIdentityAnchor) Lookup(_ context.Context, _ string) (identity.PeerID, bool, error) {
	return a.bound, a.ok, a.err
}

func TestEngineRedeemWithMatchingIdentityAnchorSucceeds(t *testing.T) {
	inviterKey, err := keys.GenerateEd25519KeyPair()
	require.NoError(t, err)
	inviteeKey, err := keys.GenerateEd25519KeyPair()
	require.NoError(t, err)

	inviterPeerID := identity.PeerID(inviterKey.ID())
	inviteePeerID := identity.PeerID(inviteeKey.ID())

	bus := newFakeBus()
	dialer := newFakeDialer()
	inviterConn, inviteeConn := net.Pipe()
	dialer.register(inviterPeerID, inviterConn)

	inviterTrust := newFakeTrustStore()
	inviteeTrust := newFakeTrustStore()

	inviterEngine := NewEngine(inviterPeerID, "alice", inviterKey, []string{"/ip4/127.0.0.1/tcp/4001"}, bus, bus, dialer, inviterTrust, nil)
	inviteeEngine := NewEngine(inviteePeerID, "bob", inviteeKey, nil, bus, bus, dialer, inviteeTrust, nil)
	inviteeEngine.SetIdentityAnchor(&fakeIdentityAnchor{bound: inviterPeerID, ok: true})

	password, err := GenerateInvitePassword()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, inviterEngine.CreateInvite(ctx, "bob", password, 20*time.Millisecond))

	type redeemResult struct {
		peerID identity.PeerID
		err    error
	}
	inviteeDone := make(chan redeemResult, 1)
	go func() {
		peerID, err := inviteeEngine.RedeemAndConnect(ctx, "alice", password)
		inviteeDone <- redeemResult{peerID, err}
	}()
	acceptDone := make(chan redeemResult, 1)
	go func() {
		peerID, err := inviterEngine.AcceptRedemption(ctx, inviteeConn)
		acceptDone <- redeemResult{peerID, err}
	}()

	invitee := <-inviteeDone
	<-acceptDone

	require.NoError(t, invitee.err)
	require.Equal(t, inviterPeerID, invitee.peerID)
}

func TestEngineRedeemFailsClosedOnIdentityAnchorMismatch(t *testing.T) {
	inviterKey, err := keys.GenerateEd25519KeyPair()
	require.NoError(t, err)
	inviteeKey, err := keys.GenerateEd25519KeyPair()
	require.NoError(t, err)
	impostorKey, err := keys.GenerateEd25519KeyPair()
	require.NoError(t, err)

	inviterPeerID := identity.PeerID(inviterKey.ID())
	inviteePeerID := identity.PeerID(inviteeKey.ID())
	impostorPeerID := identity.PeerID(impostorKey.ID())

	bus := newFakeBus()
	dialer := newFakeDialer()
	inviterConn, inviteeConn := net.Pipe()
	dialer.register(inviterPeerID, inviterConn)

	inviterTrust := newFakeTrustStore()
	inviteeTrust := newFakeTrustStore()

	inviterEngine := NewEngine(inviterPeerID, "alice", inviterKey, []string{"/ip4/127.0.0.1/tcp/4001"}, bus, bus, dialer, inviterTrust, nil)
	inviteeEngine := NewEngine(inviteePeerID, "bob", inviteeKey, nil, bus, bus, dialer, inviteeTrust, nil)
	// The anchor claims "alice" is bound to a different peer than the one the
	// rendezvous offer and handshake both agreed on.
	inviteeEngine.SetIdentityAnchor(&fakeIdentityAnchor{bound: impostorPeerID, ok: true})

	password, err := GenerateInvitePassword()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, inviterEngine.CreateInvite(ctx, "bob", password, 20*time.Millisecond))

	go inviterEngine.AcceptRedemption(ctx, inviteeConn)

	_, err = inviteeEngine.RedeemAndConnect(ctx, "alice", password)
	require.ErrorIs(t, err, ErrIdentityMismatch)
}
