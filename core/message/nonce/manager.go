// Package nonce guards message frames against replay: every inbound
// control-header nonce is remembered for a TTL window, and a repeat within
// that window is rejected by the validator.
package nonce

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

// Manager tracks used nonces with a TTL, evicting lazily on lookup and
// periodically via a background sweep.
type Manager struct {
	mu    sync.Mutex
	used  map[string]time.Time // nonce -> expiry
	ttl   time.Duration
	tick  *time.Ticker
	stop  chan struct{}
}

// GenerateNonce returns a fresh, base64url-encoded 16-byte random nonce.
func GenerateNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewManager creates a nonce cache with the given TTL and cleanup interval.
func NewManager(ttl, cleanupInterval time.Duration) *Manager {
	m := &Manager{
		used: make(map[string]time.Time),
		ttl:  ttl,
		tick: time.NewTicker(cleanupInterval),
		stop: make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

// IsNonceUsed reports whether nonce is currently tracked as used, purging it
// first if its TTL has already elapsed.
func (m *Manager) IsNonceUsed(n string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.used[n]
	if !ok {
		return false
	}
	if time.Now().After(exp) {
		delete(m.used, n)
		return false
	}
	return true
}

// MarkNonceUsed records nonce as used until now+ttl.
func (m *Manager) MarkNonceUsed(n string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.used[n] = time.Now().Add(m.ttl)
}

// GetUsedNonceCount returns the number of nonces currently tracked.
func (m *Manager) GetUsedNonceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.used)
}

// Close stops the background cleanup loop.
func (m *Manager) Close() {
	close(m.stop)
	m.tick.Stop()
}

func (m *Manager) cleanupLoop() {
	for {
		select {
		case <-m.tick.C:
			m.purgeExpired()
		case <-m.stop:
			return
		}
	}
}

func (m *Manager) purgeExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for n, exp := range m.used {
		if now.After(exp) {
			delete(m.used, n)
		}
	}
}
