package api

import (
	"context"

	"github.com/rchat-io/rchat-node/identity"
)

// SetFastDiscovery turns fast discovery on or off: while on, the node
// republishes its rendezvous record on a short interval, and it turns
// itself off after a fixed timeout.
func (d *Dispatcher) SetFastDiscovery(enabled bool) *Error {
	presence := d.presence()
	if presence == nil {
		return newError(KindUnavailable, "discovery not wired", nil)
	}
	if err := presence.SetFastDiscovery(enabled); err != nil {
		return newError(KindInternal, "set fast discovery", err)
	}
	return nil
}

// ToggleOnlineStatus flips whether this node advertises presence at all.
func (d *Dispatcher) ToggleOnlineStatus(enabled bool) *Error {
	presence := d.presence()
	if presence == nil {
		return newError(KindUnavailable, "presence not wired", nil)
	}
	if err := presence.SetOnline(enabled); err != nil {
		return newError(KindInternal, "set online status", err)
	}
	d.online = enabled
	return nil
}

// RequestConnection asks the transport to dial and open a session with an
// already-trusted peer, e.g. after it comes back online.
func (d *Dispatcher) RequestConnection(ctx context.Context, peerID string) *Error {
	connections := d.connections()
	if connections == nil {
		return newError(KindUnavailable, "connections not wired", nil)
	}
	if err := connections.RequestConnection(ctx, identity.PeerID(peerID)); err != nil {
		return classify(err, KindInternal)
	}
	return nil
}
