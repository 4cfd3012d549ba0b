package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/rchat-io/rchat-node/internal/logger"
	"github.com/rchat-io/rchat-node/internal/metrics"
)

// Manager holds one Session per trusted peer in one RWMutex-guarded map,
// matching the actor-style dispatch the rest of the node uses: each peer's
// session is addressed by PeerID, never by an opaque session ID.
type Manager struct {
	log           logger.Logger
	sessions      map[string]Session // peer_id -> Session
	mu            sync.RWMutex
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	defaultConfig Config
}

// NewManager creates a session manager and starts its background cleanup loop.
func NewManager(log logger.Logger, defaultConfig Config) *Manager {
	if defaultConfig == (Config{}) {
		defaultConfig = DefaultConfig
	}
	m := &Manager{
		log:           log,
		sessions:      make(map[string]Session),
		stopCleanup:   make(chan struct{}),
		defaultConfig: defaultConfig,
	}

	m.cleanupTicker = time.NewTicker(30 * time.Second)
	go m.runCleanup()

	return m
}

// Open installs a freshly-derived session for peerID, replacing and closing
// any prior session for that peer (e.g. after a reconnect).
func (m *Manager) Open(peerID string, sess Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, exists := m.sessions[peerID]; exists {
		old.Close()
	} else {
		metrics.SessionsActive.Inc()
	}
	m.sessions[peerID] = sess
	metrics.SessionsCreated.WithLabelValues("success").Inc()
}

// Get retrieves the session for peerID, returning false if absent or expired.
func (m *Manager) Get(peerID string) (Session, bool) {
	m.mu.RLock()
	sess, exists := m.sessions[peerID]
	m.mu.RUnlock()

	if !exists {
		return nil, false
	}
	if sess.IsExpired() {
		m.Remove(peerID)
		return nil, false
	}
	return sess, true
}

// Remove closes and discards the session for peerID, if any.
func (m *Manager) Remove(peerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, exists := m.sessions[peerID]; exists {
		sess.Close()
		delete(m.sessions, peerID)
		metrics.SessionsActive.Dec()
		metrics.SessionsClosed.Inc()
	}
}

// Peers returns the PeerIDs of all sessions currently tracked.
func (m *Manager) Peers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of sessions currently tracked.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Stats reports aggregate session state for the health/metrics surface.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{TotalSessions: len(m.sessions)}
	for _, sess := range m.sessions {
		if sess.IsExpired() {
			stats.ExpiredSessions++
		} else {
			stats.ActiveSessions++
		}
	}
	return stats
}

// DefaultConfig returns the policy new sessions are created with absent an override.
func (m *Manager) DefaultConfig() Config {
	return m.defaultConfig
}

// Close stops the cleanup loop and closes every tracked session.
func (m *Manager) Close() error {
	close(m.stopCleanup)
	if m.cleanupTicker != nil {
		m.cleanupTicker.Stop()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sess := range m.sessions {
		sess.Close()
	}
	m.sessions = make(map[string]Session)

	return nil
}

func (m *Manager) runCleanup() {
	for {
		select {
		case <-m.cleanupTicker.C:
			m.cleanupExpired()
		case <-m.stopCleanup:
			return
		}
	}
}

func (m *Manager) cleanupExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []string
	for id, sess := range m.sessions {
		if sess.IsExpired() {
			expired = append(expired, id)
		}
	}

	for _, id := range expired {
		if sess, exists := m.sessions[id]; exists {
			sess.Close()
			delete(m.sessions, id)
			metrics.SessionsActive.Dec()
			metrics.SessionsExpired.Inc()
		}
	}

	if len(expired) > 0 && m.log != nil {
		m.log.Debug(fmt.Sprintf("cleaned up %d expired sessions", len(expired)))
	}
}
