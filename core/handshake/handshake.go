package handshake

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	sagecrypto "github.com/rchat-io/rchat-node/crypto"
	"github.com/rchat-io/rchat-node/crypto/keys"
	"github.com/rchat-io/rchat-node/core/message"
	"github.com/rchat-io/rchat-node/core/session"
	"github.com/rchat-io/rchat-node/identity"
	"github.com/rchat-io/rchat-node/internal/metrics"
)

// deadlineSetter is implemented by net.Conn and libp2p's network.Stream;
// when rw implements it, Initiate/Respond bound the whole exchange to the
// handshake timeout instead of relying on the caller's io.Reader blocking
// forever on a dead peer.
type deadlineSetter interface {
	SetDeadline(t time.Time) error
}

// DefaultTimeout is the handshake completion deadline.
const DefaultTimeout = 10 * time.Second

func applyDeadline(ctx context.Context, rw io.ReadWriter, timeout time.Duration) func() {
	ds, ok := rw.(deadlineSetter)
	if !ok {
		return func() {}
	}
	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		deadline = time.Now().Add(timeout)
	}
	ds.SetDeadline(deadline)
	return func() { ds.SetDeadline(time.Time{}) }
}

func newContextID() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("handshake: generate context id: %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}

// Initiate runs the dialing side of the handshake over rw (typically a
// freshly opened /rchat/handshake/1 stream). identityKey signs this node's
// ephemeral key; if expectedPeerID is non-zero, the responder's PeerID must
// match it exactly (used when dialing a peer already in the trust list) or
// ErrIdentityMismatch is returned instead of a session.
func Initiate(ctx context.Context, rw io.ReadWriter, identityKey sagecrypto.KeyPair, expectedPeerID identity.PeerID, cfg session.Config) (*session.SecureSession, identity.PeerID, error) {
	metrics.HandshakesInitiated.WithLabelValues("client").Inc()
	start := time.Now()
	sess, peerID, err := initiate(ctx, rw, identityKey, expectedPeerID, cfg)
	metrics.HandshakeDuration.WithLabelValues("client").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.HandshakesCompleted.WithLabelValues("failure").Inc()
		metrics.HandshakesFailed.WithLabelValues(classifyFailure(err)).Inc()
	} else {
		metrics.HandshakesCompleted.WithLabelValues("success").Inc()
	}
	return sess, peerID, err
}

func initiate(ctx context.Context, rw io.ReadWriter, identityKey sagecrypto.KeyPair, expectedPeerID identity.PeerID, cfg session.Config) (*session.SecureSession, identity.PeerID, error) {
	done := applyDeadline(ctx, rw, DefaultTimeout)
	defer done()

	selfPeerID := identity.PeerID(identityKey.ID())

	contextID, err := newContextID()
	if err != nil {
		return nil, "", err
	}

	ephemeral, err := keys.GenerateX25519KeyPair()
	if err != nil {
		return nil, "", fmt.Errorf("handshake: generate ephemeral key: %w", err)
	}
	ephPub := ephemeral.(*keys.X25519KeyPair).PublicBytesKey()

	sig, err := identityKey.Sign(signedTranscript(contextID, selfPeerID.String(), ephPub))
	if err != nil {
		return nil, "", fmt.Errorf("handshake: sign transcript: %w", err)
	}

	init := initMessage{
		PeerID:      selfPeerID.String(),
		ContextID:   contextID,
		EphemeralPK: ephPub,
		Timestamp:   time.Now(),
		Signature:   sig,
	}
	if err := writeMessage(rw, init); err != nil {
		return nil, "", err
	}

	var accept acceptMessage
	if err := readMessage(rw, &accept); err != nil {
		return nil, "", err
	}

	peerID := identity.PeerID(accept.PeerID)
	if !expectedPeerID.IsZero() && peerID != expectedPeerID {
		return nil, "", ErrIdentityMismatch
	}

	if err := verify(peerID, contextID, accept.EphemeralPK, accept.Signature); err != nil {
		return nil, "", err
	}

	sharedSecret, err := ephemeral.(*keys.X25519KeyPair).DeriveSharedSecret(accept.EphemeralPK)
	if err != nil {
		return nil, "", fmt.Errorf("handshake: derive shared secret: %w", err)
	}

	sess, err := session.NewSecureSessionFromHandshake(peerID.String(), sharedSecret, session.Params{
		ContextID: contextID,
		SelfEph:   ephPub,
		PeerEph:   accept.EphemeralPK,
		Label:     protocolLabel,
	}, cfg)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	return sess, peerID, nil
}

// Respond runs the listening side of the handshake over rw. It returns the
// established session and the initiator's PeerID once proven.
func Respond(ctx context.Context, rw io.ReadWriter, identityKey sagecrypto.KeyPair, cfg session.Config) (*session.SecureSession, identity.PeerID, error) {
	metrics.HandshakesInitiated.WithLabelValues("server").Inc()
	start := time.Now()
	sess, peerID, err := respond(ctx, rw, identityKey, cfg)
	metrics.HandshakeDuration.WithLabelValues("server").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.HandshakesCompleted.WithLabelValues("failure").Inc()
		metrics.HandshakesFailed.WithLabelValues(classifyFailure(err)).Inc()
	} else {
		metrics.HandshakesCompleted.WithLabelValues("success").Inc()
	}
	return sess, peerID, err
}

// classifyFailure buckets a handshake error into the coarse categories the
// handshakes_failed_total metric reports by.
func classifyFailure(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrMalformedMessage), errors.Is(err, ErrIdentityMismatch), errors.Is(err, ErrHandshakeFailed):
		return "invalid"
	default:
		return "network"
	}
}

func respond(ctx context.Context, rw io.ReadWriter, identityKey sagecrypto.KeyPair, cfg session.Config) (*session.SecureSession, identity.PeerID, error) {
	done := applyDeadline(ctx, rw, DefaultTimeout)
	defer done()

	selfPeerID := identity.PeerID(identityKey.ID())

	var init initMessage
	if err := readMessage(rw, &init); err != nil {
		return nil, "", err
	}

	peerID := identity.PeerID(init.PeerID)
	if err := verify(peerID, init.ContextID, init.EphemeralPK, init.Signature); err != nil {
		return nil, "", err
	}

	ephemeral, err := keys.GenerateX25519KeyPair()
	if err != nil {
		return nil, "", fmt.Errorf("handshake: generate ephemeral key: %w", err)
	}
	ephPub := ephemeral.(*keys.X25519KeyPair).PublicBytesKey()

	sig, err := identityKey.Sign(signedTranscript(init.ContextID, selfPeerID.String(), ephPub))
	if err != nil {
		return nil, "", fmt.Errorf("handshake: sign transcript: %w", err)
	}

	accept := acceptMessage{
		PeerID:      selfPeerID.String(),
		EphemeralPK: ephPub,
		Timestamp:   time.Now(),
		Signature:   sig,
	}
	if err := writeMessage(rw, accept); err != nil {
		return nil, "", err
	}

	sharedSecret, err := ephemeral.(*keys.X25519KeyPair).DeriveSharedSecret(init.EphemeralPK)
	if err != nil {
		return nil, "", fmt.Errorf("handshake: derive shared secret: %w", err)
	}

	sess, err := session.NewSecureSessionFromHandshake(peerID.String(), sharedSecret, session.Params{
		ContextID: init.ContextID,
		SelfEph:   ephPub,
		PeerEph:   init.EphemeralPK,
		Label:     protocolLabel,
	}, cfg)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	return sess, peerID, nil
}

// verify checks that signature is a valid signature by peerID's embedded
// Ed25519 public key over the transcript binding contextID to ephemeralPK.
func verify(peerID identity.PeerID, contextID string, ephemeralPK, signature []byte) error {
	pub, err := peerID.ExtractEd25519PublicKey()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	if !ed25519.Verify(pub, signedTranscript(contextID, peerID.String(), ephemeralPK), signature) {
		return ErrHandshakeFailed
	}
	return nil
}

func writeMessage(w io.Writer, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("handshake: marshal message: %w", err)
	}
	return message.WriteFrame(w, payload)
}

func readMessage(r io.Reader, v interface{}) error {
	payload, err := message.ReadFrame(r)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return nil
}
