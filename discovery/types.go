// Package discovery implements the node's two peer-discovery paths
// (component F): an mDNS responder/browser for the local network, and a
// rendezvous directory client that publishes/polls signed presence records
// against a third-party blob store for discovery across networks.
package discovery

import (
	"time"

	"github.com/rchat-io/rchat-node/identity"
)

// ProtocolMajorVersion is this node's wire-protocol major version. The mDNS
// path advertises and browses only this version's service name, so local
// peers of another major version are never surfaced; rendezvous records
// carry no version and are not filtered by it.
const ProtocolMajorVersion = 1

// DefaultExpiryTTL is how long a discovered peer record (local or
// rendezvous) remains valid without being refreshed.
const DefaultExpiryTTL = 15 * time.Minute

// EventKind distinguishes a PeerEvent's reason.
type EventKind string

const (
	EventDiscovered EventKind = "discovered"
	EventExpired    EventKind = "expired"
)

// PeerEvent is emitted whenever a discovery path learns of a peer or
// stops hearing from one, for the command dispatcher's event stream.
type PeerEvent struct {
	Kind       EventKind
	PeerID     identity.PeerID
	Addrs      []string
	Source     string // "mdns" or "rendezvous"
	ObservedAt time.Time
}
