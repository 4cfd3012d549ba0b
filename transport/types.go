// Package transport builds the node's libp2p host: TCP and QUIC listeners,
// Noise-secured multiplexed streams, and the protocol-tagged stream
// handlers (/rchat/msg/1, /rchat/file/1, /rchat/invite/1, /rchat/handshake/1)
// the rest of the node dials into (component E).
package transport

import (
	"errors"
	"time"
)

// Protocol IDs for the node's sub-protocols, each carried over its own
// multiplexed stream once a connection is established.
const (
	ProtocolMessage   = "/rchat/msg/1"
	ProtocolFile      = "/rchat/file/1"
	ProtocolInvite    = "/rchat/invite/1"
	ProtocolHandshake = "/rchat/handshake/1"
)

// DialTimeout bounds how long a single outbound dial attempt may take
// before it is treated as a failure worth retrying with backoff.
const DialTimeout = 15 * time.Second

// Sentinel errors describing the ways a transport operation can fail.
var (
	ErrNoRoute         = errors.New("transport: no route to peer")
	ErrDialFailed      = errors.New("transport: dial failed")
	ErrHandshakeFailed = errors.New("transport: handshake failed")
	ErrTimeout         = errors.New("transport: timed out")
	ErrNotListening    = errors.New("transport: host not listening")
)
