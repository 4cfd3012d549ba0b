// Package eventbus is the node's typed, fire-and-forget event stream
// (component D): producers across the node (vault, discovery, transport,
// message, file) publish a Kind-tagged Event and the bus fans it out to
// every current Subscription of that Kind without ever blocking the
// producer. Ordering is preserved per Kind (each Kind's subscribers see
// that Kind's events in publish order) but not across Kinds.
package eventbus

import "sync"

// Kind names one of the node's event types. Consumers subscribe per Kind
// rather than to the whole stream, so the UI bridge only decodes the
// payload shapes it cares about.
type Kind string

const (
	KindAuthStatus           Kind = "auth-status"
	KindLocalPeerDiscovered  Kind = "local-peer-discovered"
	KindLocalPeerExpired     Kind = "local-peer-expired"
	KindPeerConnected        Kind = "peer-connected"
	KindPeerDisconnected     Kind = "peer-disconnected"
	KindMessageReceived      Kind = "message-received"
	KindMessageStatusUpdated Kind = "message-status-updated"
	KindFileTransferProgress Kind = "file-transfer-progress"
	KindFileTransferComplete Kind = "file-transfer-complete"
	KindUntrustedPeerDropped Kind = "untrusted-peer-dropped"
)

// Event is one typed occurrence on the bus. Payload is whichever concrete
// type the Kind documents (e.g. KindAuthStatus carries a vault.Status,
// KindFileTransferProgress a file.ProgressEvent); subscribers type-assert
// on read the same way the teacher's websocket transport type-switches on
// decoded wire messages.
type Event struct {
	Kind    Kind
	Payload any
}

// subscriberBuffer bounds how many unread events a single subscription can
// accumulate before the bus starts dropping its oldest ones. A slow or
// stalled UI consumer must never be able to stall a producer (the
// handshake/session/file-transfer hot paths all publish from request-
// handling goroutines).
const subscriberBuffer = 64

// Subscription is a single consumer's view of one Kind's event stream.
type Subscription struct {
	ch   chan Event
	bus  *Bus
	kind Kind
	id   uint64
}

// Events returns the channel to range over. It is closed when the
// subscription is canceled via Close or the bus is closed.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close cancels the subscription and stops further deliveries to it.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s.kind, s.id)
}

// Bus is the node-wide event fan-out. The zero value is not usable; use
// New.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Kind]map[uint64]chan Event
	nextID uint64
	closed bool
}

// New builds an empty Bus ready to accept subscribers and publishers.
func New() *Bus {
	return &Bus{subs: make(map[Kind]map[uint64]chan Event)}
}

// Subscribe opens a new Subscription for kind. Callers must Close it when
// done to free the bus's internal bookkeeping.
func (b *Bus) Subscribe(kind Kind) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return &Subscription{ch: ch, bus: b, kind: kind}
	}

	id := b.nextID
	b.nextID++
	if b.subs[kind] == nil {
		b.subs[kind] = make(map[uint64]chan Event)
	}
	b.subs[kind][id] = ch
	return &Subscription{ch: ch, bus: b, kind: kind, id: id}
}

// Publish fans ev out to every current subscriber of kind. It never blocks:
// a subscriber whose buffer is full has its oldest queued event dropped to
// make room, rather than stalling the publisher.
func (b *Bus) Publish(kind Kind, payload any) {
	ev := Event{Kind: kind, Payload: payload}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for _, ch := range b.subs[kind] {
		select {
		case ch <- ev:
		default:
			// Buffer full: drop the oldest queued event for this
			// subscriber and retry once, so a burst never
			// permanently wedges it behind one slow consumer.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

// Close shuts the bus down: every open Subscription's channel is closed and
// further Publish/Subscribe calls are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, byID := range b.subs {
		for _, ch := range byID {
			close(ch)
		}
	}
	b.subs = nil
}

func (b *Bus) unsubscribe(kind Kind, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	byID, ok := b.subs[kind]
	if !ok {
		return
	}
	if ch, ok := byID[id]; ok {
		close(ch)
		delete(byID, id)
	}
}
