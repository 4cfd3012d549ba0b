// Package dedupe catches duplicate frame deliveries (e.g. from a peer's
// retransmission after a dropped ack) independently of the nonce and
// sequence checks, by fingerprinting the control header itself.
package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/rchat-io/rchat-node/core/message"
	"github.com/rchat-io/rchat-node/internal/metrics"
)

// Detector tracks seen packet fingerprints with a TTL.
type Detector struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	tick *time.Ticker
	stop chan struct{}
}

// NewDetector creates a duplicate-packet cache with the given TTL and
// cleanup interval.
func NewDetector(ttl, cleanupInterval time.Duration) *Detector {
	d := &Detector{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		tick: time.NewTicker(cleanupInterval),
		stop: make(chan struct{}),
	}
	go d.cleanupLoop()
	return d
}

// fingerprint derives a stable identity for a control header from its
// sequence, nonce, and timestamp.
func fingerprint(msg message.ControlHeader) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%d", msg.GetSequence(), msg.GetNonce(), msg.GetTimestamp().UnixNano())
	return hex.EncodeToString(h.Sum(nil))
}

// IsDuplicate reports whether msg's fingerprint was already seen and not
// yet expired.
func (d *Detector) IsDuplicate(msg message.ControlHeader) bool {
	fp := fingerprint(msg)

	d.mu.Lock()
	defer d.mu.Unlock()

	exp, ok := d.seen[fp]
	if !ok {
		return false
	}
	if time.Now().After(exp) {
		delete(d.seen, fp)
		return false
	}
	metrics.ReplayAttacksDetected.Inc()
	return true
}

// MarkPacketSeen records msg's fingerprint as seen until now+ttl.
func (d *Detector) MarkPacketSeen(msg message.ControlHeader) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[fingerprint(msg)] = time.Now().Add(d.ttl)
}

// GetSeenPacketCount returns the number of fingerprints currently tracked.
func (d *Detector) GetSeenPacketCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// Close stops the background cleanup loop.
func (d *Detector) Close() {
	close(d.stop)
	d.tick.Stop()
}

func (d *Detector) cleanupLoop() {
	for {
		select {
		case <-d.tick.C:
			d.purgeExpired()
		case <-d.stop:
			return
		}
	}
}

func (d *Detector) purgeExpired() {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now()
	for fp, exp := range d.seen {
		if now.After(exp) {
			delete(d.seen, fp)
		}
	}
}
