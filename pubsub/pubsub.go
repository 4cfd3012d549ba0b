// Package pubsub implements the node's gossipsub topics (component G): one
// topic per invite pair for invitation-channel rendezvous, and a shared
// "presence" topic for opportunistic freshness pings. Messages are signed
// at the libp2p-pubsub layer with the host's own identity key — the same
// Ed25519 IdentityKey used everywhere else — so a topic peer's message
// origin is authenticated without the application layer doing its own
// signing on top.
package pubsub

import (
	"context"
	"fmt"
	"sync"

	libp2phost "github.com/libp2p/go-libp2p/core/host"
	gossipsub "github.com/libp2p/go-libp2p-pubsub"

	"github.com/rchat-io/rchat-node/internal/logger"
)

// PresenceTopic is the shared topic nodes publish opportunistic freshness
// pings on, independent of any particular invite pair.
const PresenceTopic = "presence"

// PubSub wraps a gossipsub router, joining topics lazily and caching the
// *gossipsub.Topic handle so repeated Publish/Subscribe calls for the same
// topic reuse one topic handle; each Subscribe call opens its own
// subscription on it.
type PubSub struct {
	mu     sync.Mutex
	ps     *gossipsub.PubSub
	topics map[string]*gossipsub.Topic
	log    logger.Logger
}

// New builds a gossipsub router over h. h must already be listening;
// gossipsub discovers topic peers through the host's existing connections
// and any peers discovery/ has dialed.
func New(ctx context.Context, h libp2phost.Host, log logger.Logger) (*PubSub, error) {
	ps, err := gossipsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("pubsub: build gossipsub router: %w", err)
	}
	return &PubSub{ps: ps, topics: make(map[string]*gossipsub.Topic), log: log}, nil
}

func (p *PubSub) topic(name string) (*gossipsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.topics[name]; ok {
		return t, nil
	}
	t, err := p.ps.Join(name)
	if err != nil {
		return nil, fmt.Errorf("pubsub: join topic %q: %w", name, err)
	}
	p.topics[name] = t
	return t, nil
}

// Publish satisfies core/invite.Publisher and any other component that
// only needs to push bytes onto a named topic.
func (p *PubSub) Publish(ctx context.Context, topic string, data []byte) error {
	t, err := p.topic(topic)
	if err != nil {
		return err
	}
	if err := t.Publish(ctx, data); err != nil {
		return fmt.Errorf("pubsub: publish on %q: %w", topic, err)
	}
	return nil
}

// Subscribe returns a Subscription whose Next yields each message's raw
// payload in turn. It returns the concrete *Subscription, so node.InvitePubSub
// adapts it to core/invite.Subscriber.
func (p *PubSub) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	t, err := p.topic(topic)
	if err != nil {
		return nil, err
	}
	sub, err := t.Subscribe()
	if err != nil {
		return nil, fmt.Errorf("pubsub: subscribe to %q: %w", topic, err)
	}
	return &Subscription{sub: sub}, nil
}

// Subscription adapts a *gossipsub.Subscription to the minimal Next/Close
// surface core/invite.Subscription expects.
type Subscription struct {
	sub *gossipsub.Subscription
}

// Next blocks until the next message arrives on the topic, or ctx is
// canceled.
func (s *Subscription) Next(ctx context.Context) ([]byte, error) {
	msg, err := s.sub.Next(ctx)
	if err != nil {
		return nil, err
	}
	return msg.Data, nil
}

// Close cancels the subscription.
func (s *Subscription) Close() error {
	s.sub.Cancel()
	return nil
}
