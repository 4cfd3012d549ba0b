package session

import (
	"sync"
	"time"
)

// NonceCache records (peer_id, nonce) pairs seen during handshakes with a
// TTL, so a captured handshake message cannot be replayed to re-derive or
// confuse a session after the fact.
type NonceCache struct {
	ttl  time.Duration
	data sync.Map // peer_id -> *sync.Map (nonce -> expiryUnix)
	tick *time.Ticker
	stop chan struct{}
}

// NewNonceCache creates a TTL-based replay cache (typical TTL: 5-10 minutes).
func NewNonceCache(ttl time.Duration) *NonceCache {
	nc := &NonceCache{
		ttl:  ttl,
		stop: make(chan struct{}),
		tick: time.NewTicker(time.Minute),
	}
	go nc.gcLoop()
	return nc
}

// Seen reports whether (peerID, nonce) was already recorded; if not, it
// records it and returns false.
func (n *NonceCache) Seen(peerID, nonce string) bool {
	if peerID == "" || nonce == "" {
		return false
	}
	exp := time.Now().Add(n.ttl).Unix()

	v, _ := n.data.LoadOrStore(peerID, &sync.Map{})
	m := v.(*sync.Map)

	if old, ok := m.Load(nonce); ok {
		if prevExp, _ := old.(int64); prevExp >= time.Now().Unix() {
			return true
		}
	}
	m.Store(nonce, exp)
	return false
}

// DeletePeer removes all recorded nonces for peerID (call on trust removal).
func (n *NonceCache) DeletePeer(peerID string) {
	n.data.Delete(peerID)
}

// Close stops the background GC.
func (n *NonceCache) Close() {
	close(n.stop)
	if n.tick != nil {
		n.tick.Stop()
	}
}

func (n *NonceCache) gcLoop() {
	for {
		select {
		case <-n.tick.C:
			now := time.Now().Unix()
			n.data.Range(func(k, v any) bool {
				m := v.(*sync.Map)
				empty := true
				m.Range(func(nk, nv any) bool {
					if exp, _ := nv.(int64); exp < now {
						m.Delete(nk)
					} else {
						empty = false
					}
					return true
				})
				if empty {
					n.data.Delete(k)
				}
				return true
			})
		case <-n.stop:
			return
		}
	}
}
