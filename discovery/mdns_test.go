package discovery

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"

	"github.com/rchat-io/rchat-node/identity"
)

// newTestMDNS builds an MDNS with its bookkeeping initialized but without
// starting a real zeroconf service, so handlePeerFound/pruneExpired can be
// exercised directly without touching the network.
func newTestMDNS(ttl time.Duration, onEvent func(PeerEvent)) *MDNS {
	return &MDNS{
		lastSeen:  make(map[peer.ID]time.Time),
		addrs:     make(map[peer.ID][]string),
		ttl:       ttl,
		onEvent:   onEvent,
		stopPrune: make(chan struct{}),
	}
}

// newTestPeerID returns the libp2p ID of a freshly generated Ed25519 key.
func newTestPeerID() (peer.ID, error) {
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		return "", err
	}
	id, err := identity.FromEd25519PublicKey(pub)
	if err != nil {
		return "", err
	}
	return id.Libp2pID()
}

func TestMDNSServiceNameEncodesVersion(t *testing.T) {
	require.Equal(t, "_rchat-v1._udp", mdnsServiceName(1))
	require.Equal(t, "_rchat-v2._udp", mdnsServiceName(2))
}

func TestMDNSHandlePeerFoundEmitsDiscoveredOnce(t *testing.T) {
	var events []PeerEvent
	m := newTestMDNS(time.Minute, func(ev PeerEvent) { events = append(events, ev) })

	pid, err := newTestPeerID()
	require.NoError(t, err)
	pi := peer.AddrInfo{ID: pid}

	m.handlePeerFound(pi)
	m.handlePeerFound(pi) // refresh: must not re-emit

	require.Len(t, events, 1)
	require.Equal(t, EventDiscovered, events[0].Kind)
	require.Equal(t, identity.PeerID(pid.String()), events[0].PeerID)

	addrs := m.CachedAddrs(identity.PeerID(pid.String()))
	require.Empty(t, addrs)
}

func TestMDNSPruneExpiredEmitsExpired(t *testing.T) {
	var events []PeerEvent
	m := newTestMDNS(10*time.Millisecond, func(ev PeerEvent) { events = append(events, ev) })

	pid, err := newTestPeerID()
	require.NoError(t, err)
	m.handlePeerFound(peer.AddrInfo{ID: pid})

	m.mu.Lock()
	m.lastSeen[pid] = time.Now().Add(-time.Hour)
	m.mu.Unlock()

	m.pruneExpired()

	require.Len(t, events, 2)
	require.Equal(t, EventExpired, events[1].Kind)
	require.Nil(t, m.CachedAddrs(identity.PeerID(pid.String())))
}
