package discovery

import (
	"fmt"
	"sync"
	"time"

	libp2phost "github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	mdns "github.com/libp2p/go-libp2p/p2p/discovery/mdns"

	"github.com/rchat-io/rchat-node/identity"
	"github.com/rchat-io/rchat-node/internal/logger"
)

// mdnsServiceName encodes the protocol major version directly in the
// zeroconf service name: mdns's public API (github.com/libp2p/go-libp2p/
// p2p/discovery/mdns) doesn't expose the underlying zeroconf TXT records to
// callers, so a node only ever browses for peers advertising a compatible
// version to begin with, rather than filtering TXT content after the fact.
func mdnsServiceName(version int) string {
	return fmt.Sprintf("_rchat-v%d._udp", version)
}

// MDNS browses and advertises on the local network, tracking each
// discovered peer's last-seen time so stale entries can be expired — the
// underlying service only calls back on discovery, never on silence.
type MDNS struct {
	mu       sync.Mutex
	lastSeen map[peer.ID]time.Time
	addrs    map[peer.ID][]string
	service  mdns.Service
	ttl      time.Duration
	onEvent  func(PeerEvent)
	log      logger.Logger

	stopPrune chan struct{}
}

type mdnsNotifee struct {
	m *MDNS
}

func (n *mdnsNotifee) HandlePeerFound(pi peer.AddrInfo) {
	n.m.handlePeerFound(pi)
}

// NewMDNS starts advertising h on the local network and browsing for peers
// running this node's same protocol major version. onEvent is called for
// every discovered/expired transition; it may be nil.
func NewMDNS(h libp2phost.Host, ttl time.Duration, onEvent func(PeerEvent), log logger.Logger) (*MDNS, error) {
	if ttl <= 0 {
		ttl = DefaultExpiryTTL
	}
	m := &MDNS{
		lastSeen:  make(map[peer.ID]time.Time),
		addrs:     make(map[peer.ID][]string),
		ttl:       ttl,
		onEvent:   onEvent,
		log:       log,
		stopPrune: make(chan struct{}),
	}

	svc := mdns.NewMdnsService(h, mdnsServiceName(ProtocolMajorVersion), &mdnsNotifee{m: m})
	if err := svc.Start(); err != nil {
		return nil, fmt.Errorf("discovery: start mdns: %w", err)
	}
	m.service = svc

	go m.pruneLoop()
	return m, nil
}

func (m *MDNS) handlePeerFound(pi peer.AddrInfo) {
	addrs := make([]string, len(pi.Addrs))
	for i, a := range pi.Addrs {
		addrs[i] = a.String()
	}

	m.mu.Lock()
	_, known := m.lastSeen[pi.ID]
	m.lastSeen[pi.ID] = time.Now()
	m.addrs[pi.ID] = addrs
	m.mu.Unlock()

	if known {
		return // refresh only; no duplicate "discovered" events
	}
	if m.log != nil {
		m.log.Debug("discovery: mdns peer found", logger.String("peer_id", pi.ID.String()))
	}
	m.emit(PeerEvent{
		Kind:       EventDiscovered,
		PeerID:     identity.PeerID(pi.ID.String()),
		Addrs:      addrs,
		Source:     "mdns",
		ObservedAt: time.Now(),
	})
}

func (m *MDNS) pruneLoop() {
	ticker := time.NewTicker(m.ttl / 4)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopPrune:
			return
		case <-ticker.C:
			m.pruneExpired()
		}
	}
}

func (m *MDNS) pruneExpired() {
	cutoff := time.Now().Add(-m.ttl)

	m.mu.Lock()
	var expired []peer.ID
	for id, seen := range m.lastSeen {
		if seen.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(m.lastSeen, id)
		delete(m.addrs, id)
	}
	m.mu.Unlock()

	for _, id := range expired {
		m.emit(PeerEvent{
			Kind:       EventExpired,
			PeerID:     identity.PeerID(id.String()),
			Source:     "mdns",
			ObservedAt: time.Now(),
		})
	}
}

func (m *MDNS) emit(ev PeerEvent) {
	if m.onEvent != nil {
		m.onEvent(ev)
	}
}

// CachedAddrs returns the last-advertised multiaddrs for a peer mDNS has
// seen, or nil if it isn't currently known.
func (m *MDNS) CachedAddrs(peerID identity.PeerID) []string {
	id, err := peerID.Libp2pID()
	if err != nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addrs[id]
}

// Close stops advertising and browsing.
func (m *MDNS) Close() error {
	close(m.stopPrune)
	if m.service != nil {
		return m.service.Close()
	}
	return nil
}
