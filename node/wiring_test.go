package node

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rchat-io/rchat-node/identity"
	"github.com/rchat-io/rchat-node/identity/did"
	"github.com/rchat-io/rchat-node/store"
)

func TestTrustStoreAdapterAddTrustedPeer(t *testing.T) {
	s, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer s.Close()

	adapter := NewTrustStoreAdapter(s.Peers())
	peerID := identity.PeerID("12D3KooWExamplePeerID")

	require.NoError(t, adapter.AddTrustedPeer(peerID, "alice"))

	got, err := s.Peers().Get(context.Background(), peerID.String())
	require.NoError(t, err)
	require.Equal(t, "alice", got.Handle)
}

type stubAnchor struct {
	binding *did.HandleBinding
	err     error
}

func (s *stubAnchor) Lookup(ctx context.Context, handle string) (*did.HandleBinding, error) {
	return s.binding, s.err
}
func (s *stubAnchor) Publish(ctx context.Context, handle string, peerID identity.PeerID, signer did.AnchorSigner) (string, error) {
	return "", errors.New("not implemented")
}
func (s *stubAnchor) Ping(ctx context.Context) error { return nil }

func TestIdentityAnchorAdapterNilAnchorReportsNotFound(t *testing.T) {
	adapter := NewIdentityAnchorAdapter(nil)
	peerID, ok, err := adapter.Lookup(context.Background(), "alice")
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, peerID)
}

func TestIdentityAnchorAdapterFoundBinding(t *testing.T) {
	want := identity.PeerID("12D3KooWExamplePeerID")
	adapter := NewIdentityAnchorAdapter(&stubAnchor{
		binding: &did.HandleBinding{PeerID: want, UpdatedAt: time.Now()},
	})

	got, ok, err := adapter.Lookup(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestIdentityAnchorAdapterHandleNotFoundCollapsesToOkFalse(t *testing.T) {
	adapter := NewIdentityAnchorAdapter(&stubAnchor{err: did.ErrHandleNotFound})

	_, ok, err := adapter.Lookup(context.Background(), "alice")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIdentityAnchorAdapterPropagatesOtherErrors(t *testing.T) {
	sentinel := errors.New("rpc unreachable")
	adapter := NewIdentityAnchorAdapter(&stubAnchor{err: sentinel})

	_, _, err := adapter.Lookup(context.Background(), "alice")
	require.ErrorIs(t, err, sentinel)
}
