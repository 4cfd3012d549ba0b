package message

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rchat-io/rchat-node/core/session"
	"github.com/rchat-io/rchat-node/internal/logger"
)

// ErrNoSession is returned when a dispatcher is asked to send to a peer it
// has no established session for.
var ErrNoSession = errors.New("message: no established session for peer")

// PeerSender opens an outbound stream to a peer and writes one sealed frame
// to it. node.MessageSender implements this over the transport host; the
// dispatcher never touches libp2p directly.
type PeerSender interface {
	SendFrame(ctx context.Context, peerID string, frame []byte) error
}

// Dispatcher owns one Outbox actor per peer it has been asked to send to,
// sealing each Envelope under that peer's session before handing it to the
// transport. This is the node's only path for outbound chat traffic.
type Dispatcher struct {
	sessions *session.Manager
	sender   PeerSender
	log      logger.Logger

	mu      sync.Mutex
	outbox  map[string]*Outbox
	seq     map[string]uint64
	inboxCap int
}

// NewDispatcher creates a dispatcher backed by sessions for sealing and
// sender for delivery. inboxCap bounds each peer's outbox queue.
func NewDispatcher(sessions *session.Manager, sender PeerSender, log logger.Logger, inboxCap int) *Dispatcher {
	if inboxCap <= 0 {
		inboxCap = 256
	}
	return &Dispatcher{
		sessions: sessions,
		sender:   sender,
		log:      log,
		outbox:   make(map[string]*Outbox),
		seq:      make(map[string]uint64),
		inboxCap: inboxCap,
	}
}

// Send queues env for delivery to peerID, creating that peer's outbox actor
// on first use. The envelope's Sequence is assigned here, monotonically per
// peer, before sealing. Send does not require a live session: with none
// established yet, sealAndSend's own ErrNoSession return just feeds the
// outbox's backoff ladder like any other delivery failure, so the envelope
// stays queued for the peer's next reconnection instead of failing here.
func (d *Dispatcher) Send(ctx context.Context, peerID string, env Envelope) error {
	d.mu.Lock()
	d.seq[peerID]++
	env.Sequence = d.seq[peerID]
	ob, exists := d.outbox[peerID]
	if !exists {
		dest := peerID
		ob = NewOutbox(peerID, d.inboxCap, func(ctx context.Context, env Envelope) error {
			return d.sealAndSend(ctx, dest, env)
		})
		d.outbox[peerID] = ob
	}
	d.mu.Unlock()

	return ob.Enqueue(ctx, env)
}

// HasSession reports whether peerID currently has an established session,
// for callers that want to label a just-queued send as sent vs. pending
// without it affecting whether Send actually queues the envelope.
func (d *Dispatcher) HasSession(peerID string) bool {
	_, ok := d.sessions.Get(peerID)
	return ok
}

// ClosePeer tears down the outbox actor for peerID, dropping any queued
// retries (called on delete_peer).
func (d *Dispatcher) ClosePeer(peerID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ob, exists := d.outbox[peerID]; exists {
		ob.Close()
		delete(d.outbox, peerID)
	}
	delete(d.seq, peerID)
}

// PendingFor reports how many envelopes are awaiting retry for peerID.
func (d *Dispatcher) PendingFor(peerID string) int {
	d.mu.Lock()
	ob, exists := d.outbox[peerID]
	d.mu.Unlock()
	if !exists {
		return 0
	}
	return ob.PendingCount()
}

// Close tears down every peer's outbox actor.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for peerID, ob := range d.outbox {
		ob.Close()
		delete(d.outbox, peerID)
	}
}

func (d *Dispatcher) sealAndSend(ctx context.Context, peerID string, env Envelope) error {
	sess, ok := d.sessions.Get(peerID)
	if !ok {
		return ErrNoSession
	}

	plaintext, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	sealed, err := sess.EncryptAndSign(plaintext)
	if err != nil {
		return fmt.Errorf("seal envelope: %w", err)
	}

	if d.log != nil {
		d.log.Debug(fmt.Sprintf("dispatching envelope %s to %s (seq %d)", env.MsgID, peerID, env.Sequence))
	}

	return d.sender.SendFrame(ctx, peerID, sealed)
}
