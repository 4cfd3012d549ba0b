package session

import (
	"crypto/rand"
	"testing"

	"github.com/rchat-io/rchat-node/internal/logger"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/chacha20poly1305"
)

func newTestSession(t *testing.T, peerID string) Session {
	t.Helper()
	secret := make([]byte, chacha20poly1305.KeySize)
	_, err := rand.Read(secret)
	require.NoError(t, err)
	sess, err := NewSecureSession("sess-"+peerID, peerID, secret, DefaultConfig)
	require.NoError(t, err)
	return sess
}

func TestManagerOpenGetRemove(t *testing.T) {
	m := NewManager(logger.NewDefaultLogger(), DefaultConfig)
	defer m.Close()

	sess := newTestSession(t, "peer-alice")
	m.Open("peer-alice", sess)

	got, ok := m.Get("peer-alice")
	require.True(t, ok)
	require.Equal(t, sess, got)

	m.Remove("peer-alice")
	_, ok = m.Get("peer-alice")
	require.False(t, ok)
}

func TestManagerOpenReplacesExisting(t *testing.T) {
	m := NewManager(logger.NewDefaultLogger(), DefaultConfig)
	defer m.Close()

	first := newTestSession(t, "peer-bob")
	second := newTestSession(t, "peer-bob")

	m.Open("peer-bob", first)
	m.Open("peer-bob", second)

	require.True(t, first.IsExpired())

	got, ok := m.Get("peer-bob")
	require.True(t, ok)
	require.Equal(t, second, got)
}

func TestManagerStats(t *testing.T) {
	m := NewManager(logger.NewDefaultLogger(), DefaultConfig)
	defer m.Close()

	m.Open("peer-1", newTestSession(t, "peer-1"))
	m.Open("peer-2", newTestSession(t, "peer-2"))

	stats := m.Stats()
	require.Equal(t, 2, stats.TotalSessions)
	require.Equal(t, 2, stats.ActiveSessions)
	require.Equal(t, 0, stats.ExpiredSessions)
	require.Equal(t, 2, m.Count())
	require.ElementsMatch(t, []string{"peer-1", "peer-2"}, m.Peers())
}
