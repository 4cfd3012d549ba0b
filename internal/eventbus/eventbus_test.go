package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := New()
	sub := b.Subscribe(KindPeerConnected)
	defer sub.Close()

	b.Publish(KindPeerConnected, "peer-1")

	select {
	case ev := <-sub.Events():
		assert.Equal(t, KindPeerConnected, ev.Kind)
		assert.Equal(t, "peer-1", ev.Payload)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscribersOnlySeeTheirOwnKind(t *testing.T) {
	b := New()
	connected := b.Subscribe(KindPeerConnected)
	defer connected.Close()
	disconnected := b.Subscribe(KindPeerDisconnected)
	defer disconnected.Close()

	b.Publish(KindPeerConnected, "peer-1")

	select {
	case ev := <-connected.Events():
		assert.Equal(t, "peer-1", ev.Payload)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case ev := <-disconnected.Events():
		t.Fatalf("unexpected event delivered to wrong kind: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMultipleSubscribersToSameKindEachGetTheEvent(t *testing.T) {
	b := New()
	sub1 := b.Subscribe(KindMessageReceived)
	defer sub1.Close()
	sub2 := b.Subscribe(KindMessageReceived)
	defer sub2.Close()

	b.Publish(KindMessageReceived, 42)

	for _, sub := range []*Subscription{sub1, sub2} {
		select {
		case ev := <-sub.Events():
			assert.Equal(t, 42, ev.Payload)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestPublishNeverBlocksWhenSubscriberBufferIsFull(t *testing.T) {
	b := New()
	sub := b.Subscribe(KindFileTransferProgress)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			b.Publish(KindFileTransferProgress, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked under a full subscriber buffer")
	}

	// The most recent event must have survived the drop-oldest policy even
	// though the buffer overflowed many times over.
	var last any
	drain := true
	for drain {
		select {
		case ev := <-sub.Events():
			last = ev.Payload
		default:
			drain = false
		}
	}
	require.NotNil(t, last)
	assert.Equal(t, subscriberBuffer*2-1, last)
}

func TestCloseSubscriptionStopsDelivery(t *testing.T) {
	b := New()
	sub := b.Subscribe(KindAuthStatus)
	sub.Close()

	b.Publish(KindAuthStatus, "unlocked")

	_, ok := <-sub.Events()
	assert.False(t, ok, "channel should be closed after Close")
}

func TestBusCloseClosesAllSubscriptions(t *testing.T) {
	b := New()
	sub1 := b.Subscribe(KindPeerConnected)
	sub2 := b.Subscribe(KindLocalPeerDiscovered)

	b.Close()

	_, ok1 := <-sub1.Events()
	_, ok2 := <-sub2.Events()
	assert.False(t, ok1)
	assert.False(t, ok2)
}

func TestSubscribeAfterCloseReturnsClosedChannel(t *testing.T) {
	b := New()
	b.Close()

	sub := b.Subscribe(KindPeerConnected)
	_, ok := <-sub.Events()
	assert.False(t, ok)
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	b := New()
	b.Close()

	assert.NotPanics(t, func() {
		b.Publish(KindPeerConnected, "peer-1")
	})
}
