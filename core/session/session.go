// Package session implements the node's in-memory per-peer secure channel:
// AEAD-sealed framing over a key derived from the handshake transcript, plus
// the monotonic sequence counters that give the replay-drop invariant.
package session

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/rchat-io/rchat-node/internal/metrics"
)

// ErrReplay is returned by ObserveRxSeq when a frame's sequence number has
// already been observed or is out of order.
var ErrReplay = errors.New("session: replayed or out-of-order sequence")

// ErrExpired is returned by frame operations on a session past its policy limits.
var ErrExpired = errors.New("session: expired")

// SecureSession implements Session with ChaCha20-Poly1305 AEAD traffic keys
// derived from an ECDH shared secret bound to the handshake transcript.
type SecureSession struct {
	mu sync.Mutex

	id           string
	peerID       string
	createdAt    time.Time
	lastUsedAt   time.Time
	messageCount int
	config       Config
	state        State

	sharedSecret []byte
	encryptKey   []byte
	signingKey   []byte
	aead         cipher.AEAD

	txSeq uint64
	rxSeq uint64
}

// Params describes the handshake transcript both peers must agree on in
// order to derive identical session material without transmitting a key.
type Params struct {
	// ContextID is a value agreed during the handshake (e.g. a fresh random
	// exchange ID), identical on both peers.
	ContextID string
	// SelfEph is this node's ephemeral public key bytes, as sent on the wire.
	SelfEph []byte
	// PeerEph is the peer's ephemeral public key bytes, as received.
	PeerEph []byte
	// Label is the protocol version tag mixed into the salt.
	Label string
}

// NewSecureSession creates a session directly from an already-derived shared
// secret. Most callers should use NewSecureSessionFromHandshake instead.
func NewSecureSession(id, peerID string, sharedSecret []byte, config Config) (*SecureSession, error) {
	now := time.Now()

	sess := &SecureSession{
		id:           id,
		peerID:       peerID,
		createdAt:    now,
		lastUsedAt:   now,
		config:       config,
		state:        StateEstablished,
		sharedSecret: sharedSecret,
	}

	if err := sess.deriveKeys(); err != nil {
		return nil, fmt.Errorf("derive keys: %w", err)
	}

	aead, err := chacha20poly1305.New(sess.encryptKey)
	if err != nil {
		return nil, fmt.Errorf("create aead: %w", err)
	}
	sess.aead = aead

	return sess, nil
}

// NewSecureSessionFromHandshake derives a SecureSession both peers can
// reproduce independently, binding the ECDH shared secret to the handshake
// transcript (ContextID plus both ephemeral public keys in canonical order)
// so neither side ever transmits the session key:
//
//  1. salt := SHA256(Label || ContextID || sort(SelfEph, PeerEph))
//  2. seed := HKDF-Extract(SHA256, sharedSecret, salt)
//  3. NewSecureSession(ContextID, peerID, seed, cfg)
func NewSecureSessionFromHandshake(peerID string, sharedSecret []byte, p Params, cfg Config) (*SecureSession, error) {
	if len(sharedSecret) == 0 {
		return nil, errors.New("session: empty shared secret")
	}
	if p.ContextID == "" {
		return nil, errors.New("session: empty context id")
	}
	if len(p.SelfEph) == 0 || len(p.PeerEph) == 0 {
		return nil, errors.New("session: missing ephemeral keys")
	}

	lo, hi := canonicalOrder(p.SelfEph, p.PeerEph)

	h := sha256.New()
	h.Write([]byte(p.Label))
	h.Write([]byte(p.ContextID))
	h.Write(lo)
	h.Write(hi)
	salt := h.Sum(nil)

	seed := hkdfExtractSHA256(sharedSecret, salt)

	return NewSecureSession(p.ContextID, peerID, seed, cfg)
}

func (s *SecureSession) deriveKeys() error {
	salt := []byte(s.id)

	hkdfEnc := hkdf.New(sha256.New, s.sharedSecret, salt, []byte("rchat-session-encryption-v1"))
	s.encryptKey = make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdfEnc, s.encryptKey); err != nil {
		return fmt.Errorf("derive encryption key: %w", err)
	}

	hkdfSign := hkdf.New(sha256.New, s.sharedSecret, salt, []byte("rchat-session-signing-v1"))
	s.signingKey = make([]byte, 32)
	if _, err := io.ReadFull(hkdfSign, s.signingKey); err != nil {
		return fmt.Errorf("derive signing key: %w", err)
	}

	return nil
}

func hkdfExtractSHA256(ikm, salt []byte) []byte {
	prk := hkdf.Extract(sha256.New, ikm, salt)
	out := make([]byte, len(prk))
	copy(out, prk)
	return out
}

// canonicalOrder returns a, b in lexicographic order so both peers compute
// an identical transcript regardless of which side initiated.
func canonicalOrder(a, b []byte) (lo, hi []byte) {
	if bytes.Compare(a, b) <= 0 {
		return a, b
	}
	return b, a
}

func (s *SecureSession) GetID() string            { return s.id }
func (s *SecureSession) PeerID() string           { return s.peerID }
func (s *SecureSession) GetCreatedAt() time.Time  { return s.createdAt }
func (s *SecureSession) GetLastUsedAt() time.Time { return s.lastUsedAt }
func (s *SecureSession) GetConfig() Config        { return s.config }

func (s *SecureSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsExpired reports whether the session has passed its absolute age, idle
// timeout, or message-count policy, or has been explicitly closed.
func (s *SecureSession) IsExpired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isExpiredLocked()
}

func (s *SecureSession) isExpiredLocked() bool {
	if s.state == StateClosed {
		return true
	}
	now := time.Now()
	if s.config.MaxAge > 0 && now.After(s.createdAt.Add(s.config.MaxAge)) {
		return true
	}
	if s.config.IdleTimeout > 0 && now.After(s.lastUsedAt.Add(s.config.IdleTimeout)) {
		return true
	}
	if s.config.MaxMessages > 0 && s.messageCount >= s.config.MaxMessages {
		return true
	}
	return false
}

func (s *SecureSession) UpdateLastUsed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsedAt = time.Now()
	s.messageCount++
}

// NextTxSeq returns the next outgoing frame sequence number.
func (s *SecureSession) NextTxSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txSeq++
	return s.txSeq
}

// ObserveRxSeq enforces invariant 5: any frame whose sequence is not strictly
// greater than the last observed value for this session is a replay or
// reorder and is dropped.
func (s *SecureSession) ObserveRxSeq(seq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.rxSeq {
		return ErrReplay
	}
	s.rxSeq = seq
	return nil
}

// Close marks the session closed and zeroes key material.
func (s *SecureSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateClosed

	zero(s.encryptKey)
	zero(s.signingKey)
	zero(s.sharedSecret)

	return nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func (s *SecureSession) GetMessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messageCount
}

// Encrypt seals plaintext with a random nonce. Output is nonce || ciphertext.
func (s *SecureSession) Encrypt(plaintext []byte) ([]byte, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isExpiredLocked() {
		return nil, ErrExpired
	}

	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := s.aead.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, len(nonce)+len(ciphertext))
	copy(out, nonce)
	copy(out[len(nonce):], ciphertext)

	s.lastUsedAt = time.Now()
	s.messageCount++

	metrics.SessionDuration.WithLabelValues("encrypt").Observe(time.Since(start).Seconds())
	metrics.SessionMessageSize.WithLabelValues("outbound").Observe(float64(len(out)))
	return out, nil
}

// Decrypt opens data produced by Encrypt (nonce || ciphertext).
func (s *SecureSession) Decrypt(data []byte) ([]byte, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isExpiredLocked() {
		return nil, ErrExpired
	}
	if len(data) < chacha20poly1305.NonceSize {
		return nil, errors.New("session: ciphertext too short")
	}

	nonce := data[:chacha20poly1305.NonceSize]
	ciphertext := data[chacha20poly1305.NonceSize:]

	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	s.lastUsedAt = time.Now()
	s.messageCount++

	metrics.SessionDuration.WithLabelValues("decrypt").Observe(time.Since(start).Seconds())
	metrics.SessionMessageSize.WithLabelValues("inbound").Observe(float64(len(data)))
	return plaintext, nil
}

// EncryptAndSign is an alias of Encrypt kept for symmetry with
// DecryptAndVerify; the AEAD tag already provides authentication.
func (s *SecureSession) EncryptAndSign(plaintext []byte) ([]byte, error) {
	return s.Encrypt(plaintext)
}

// DecryptAndVerify is an alias of Decrypt kept for symmetry; AEAD opening
// already verifies authenticity.
func (s *SecureSession) DecryptAndVerify(ciphertext []byte) ([]byte, error) {
	return s.Decrypt(ciphertext)
}
