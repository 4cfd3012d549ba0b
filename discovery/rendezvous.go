package discovery

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	sagecrypto "github.com/rchat-io/rchat-node/crypto"
	"github.com/rchat-io/rchat-node/identity"
	"github.com/rchat-io/rchat-node/internal/logger"
)

// MinPublishInterval is the floor on how often a node may republish its
// presence record.
const MinPublishInterval = 60 * time.Second

// Sentinel errors for rendezvous record handling.
var (
	ErrRecordNotFound  = errors.New("discovery: rendezvous record not found")
	ErrRecordStale     = errors.New("discovery: rendezvous record older than freshness window")
	ErrRecordSignature = errors.New("discovery: rendezvous record signature invalid")
	ErrRecordIdentity  = errors.New("discovery: rendezvous record peer id mismatch")
)

// Record is the signed presence blob published to and polled from the
// rendezvous directory. The directory itself is untrusted — every field is
// re-verified against the claimed PeerID's public key on read.
type Record struct {
	PeerID    string    `json:"peer_id"`
	Addrs     []string  `json:"addrs"`
	IssuedAt  time.Time `json:"issued_at"`
	Signature []byte    `json:"signature"`
}

func (r *Record) signedPayload() []byte {
	buf := bytes.NewBufferString(r.PeerID)
	buf.WriteByte('|')
	buf.WriteString(r.IssuedAt.UTC().Format(time.RFC3339Nano))
	for _, a := range r.Addrs {
		buf.WriteByte('|')
		buf.WriteString(a)
	}
	return buf.Bytes()
}

// RendezvousClient publishes and polls signed presence records against an
// HTTPS blob directory. No pack example ships a third-party blob-store SDK
// (the closest, other_examples/goop2's internal/rendezvous, is itself a
// self-hosted HTTP server+client, not an SDK for an external provider), so
// this talks to the configured base URL directly over net/http — thin
// enough, and provider-specific enough, that no library could sensibly
// replace it.
type RendezvousClient struct {
	baseURL string
	http    *http.Client
	log     logger.Logger
}

// NewRendezvousClient builds a client against a directory reachable at
// baseURL (e.g. "https://gist.githubusercontent.com/.../raw" or any HTTPS
// endpoint supporting GET/PUT of a named blob per peer).
func NewRendezvousClient(baseURL string, httpClient *http.Client, log logger.Logger) *RendezvousClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &RendezvousClient{baseURL: baseURL, http: httpClient, log: log}
}

func (c *RendezvousClient) objectURL(peerID string) string {
	return fmt.Sprintf("%s/%s.json", c.baseURL, peerID)
}

// Publish signs and uploads a fresh presence record for identityKey's
// PeerID, advertising addrs as its current dialable addresses.
func (c *RendezvousClient) Publish(ctx context.Context, identityKey sagecrypto.KeyPair, addrs []string) error {
	rec := Record{
		PeerID:   identityKey.ID(),
		Addrs:    addrs,
		IssuedAt: time.Now(),
	}
	sig, err := identityKey.Sign(rec.signedPayload())
	if err != nil {
		return fmt.Errorf("discovery: sign presence record: %w", err)
	}
	rec.Signature = sig

	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("discovery: marshal presence record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.objectURL(rec.PeerID), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discovery: build publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("discovery: publish presence record: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("discovery: publish presence record: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Poll fetches and verifies the presence record for peerID. A record older
// than maxAge, or whose signature doesn't verify against peerID's own
// public key, is rejected rather than surfaced — the directory is never
// trusted on its own.
func (c *RendezvousClient) Poll(ctx context.Context, peerID identity.PeerID, maxAge time.Duration) (*Record, error) {
	if maxAge <= 0 {
		maxAge = DefaultExpiryTTL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.objectURL(peerID.String()), nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: build poll request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discovery: poll presence record: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrRecordNotFound
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("discovery: poll presence record: unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("discovery: read presence record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("discovery: unmarshal presence record: %w", err)
	}

	if rec.PeerID != peerID.String() {
		return nil, ErrRecordIdentity
	}
	if time.Since(rec.IssuedAt) > maxAge {
		return nil, ErrRecordStale
	}

	pub, err := peerID.ExtractEd25519PublicKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordSignature, err)
	}
	if !ed25519.Verify(pub, rec.signedPayload(), rec.Signature) {
		return nil, ErrRecordSignature
	}

	return &rec, nil
}

// RunPublishLoop republishes identityKey's presence record on interval
// (clamped to MinPublishInterval) until ctx is canceled. addrsFunc is
// called fresh before each publish so dynamic listen addresses stay
// current.
func (c *RendezvousClient) RunPublishLoop(ctx context.Context, identityKey sagecrypto.KeyPair, addrsFunc func() []string, interval time.Duration) {
	if interval < MinPublishInterval {
		interval = MinPublishInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := c.Publish(ctx, identityKey, addrsFunc()); err != nil && c.log != nil {
		c.log.Warn("discovery: initial presence publish failed", logger.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Publish(ctx, identityKey, addrsFunc()); err != nil && c.log != nil {
				c.log.Warn("discovery: presence republish failed", logger.Error(err))
			}
		}
	}
}
