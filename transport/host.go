package transport

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"io"

	libp2p "github.com/libp2p/go-libp2p"
	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	libp2phost "github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	multiaddr "github.com/multiformats/go-multiaddr"

	"github.com/rchat-io/rchat-node/identity"
	"github.com/rchat-io/rchat-node/internal/logger"
)

// Host wraps a libp2p host.Host, exposing the node's stream-protocol
// surface instead of libp2p's own general-purpose API.
type Host struct {
	h   libp2phost.Host
	log logger.Logger
}

// Config controls how the host listens for inbound connections.
type Config struct {
	// ListenPort is the TCP and QUIC port to bind. Zero picks an ephemeral
	// port for each transport independently.
	ListenPort int
}

// New builds a libp2p host whose identity is identityKey: the same
// long-lived Ed25519 key that derives the node's PeerID, so the transport
// layer's own identity and the application layer's identity are always the
// same value. Listens on TCP and QUIC; Noise security and stream
// multiplexing are libp2p's defaults.
func New(ctx context.Context, identityKey ed25519.PrivateKey, cfg Config, log logger.Logger) (*Host, error) {
	priv, err := libp2pcrypto.UnmarshalEd25519PrivateKey(identityKey)
	if err != nil {
		return nil, fmt.Errorf("transport: unmarshal identity key: %w", err)
	}

	tcpAddr := fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", cfg.ListenPort)
	quicAddr := fmt.Sprintf("/ip4/0.0.0.0/udp/%d/quic-v1", cfg.ListenPort)

	h, err := libp2p.New(
		libp2p.Identity(priv),
		libp2p.ListenAddrStrings(tcpAddr, quicAddr),
	)
	if err != nil {
		return nil, fmt.Errorf("transport: build host: %w", err)
	}

	if log != nil {
		log.Info("transport: host listening", logger.String("peer_id", h.ID().String()))
	}
	return &Host{h: h, log: log}, nil
}

// PeerID is this host's canonical PeerID.
func (t *Host) PeerID() identity.PeerID {
	return identity.PeerID(t.h.ID().String())
}

// Libp2pHost exposes the underlying libp2p host for collaborators that must
// be built directly against it (pubsub's gossipsub router, mDNS discovery),
// rather than through Host's own narrower stream-protocol surface.
func (t *Host) Libp2pHost() libp2phost.Host {
	return t.h
}

// Addrs returns this host's transport-level listen multiaddrs (no /p2p/
// suffix — the PeerID travels alongside separately), suitable for passing
// as Dial hints or embedding in a discovery record or invite offer.
func (t *Host) Addrs() []string {
	listen := t.h.Addrs()
	out := make([]string, len(listen))
	for i, a := range listen {
		out[i] = a.String()
	}
	return out
}

// FullAddrs returns this host's dialable multiaddrs with the /p2p/<peerID>
// suffix, suitable for display to a user (e.g. in logs or a QR code).
func (t *Host) FullAddrs() []string {
	info := peer.AddrInfo{ID: t.h.ID(), Addrs: t.h.Addrs()}
	full, err := peer.AddrInfoToP2pAddrs(&info)
	if err != nil {
		return nil
	}
	out := make([]string, len(full))
	for i, a := range full {
		out[i] = a.String()
	}
	return out
}

// RegisterHandler installs a stream handler for protoID. The handler owns
// the stream's lifecycle and must close it when done.
func (t *Host) RegisterHandler(protoID string, handler func(network.Stream)) {
	t.h.SetStreamHandler(protocol.ID(protoID), handler)
}

// Dial opens a new stream to peerID for protoID, first connecting if the
// host has no existing connection. addrs, if non-empty, are tried as
// dial hints (e.g. from a discovery record or invite offer) before falling
// back to the host's peerstore.
func (t *Host) Dial(ctx context.Context, peerID identity.PeerID, protoID string, addrs []string) (network.Stream, error) {
	p, err := peerID.Libp2pID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDialFailed, err)
	}

	connected := false
	if len(addrs) > 0 {
		if info, err := addrInfoFromStrings(p, addrs); err == nil {
			if err := t.h.Connect(ctx, info); err == nil {
				connected = true
			}
		}
	}
	if !connected {
		if len(t.h.Peerstore().Addrs(p)) == 0 {
			return nil, ErrNoRoute
		}
		if err := t.h.Connect(ctx, peer.AddrInfo{ID: p}); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDialFailed, err)
		}
	}

	s, err := t.h.NewStream(ctx, p, protocol.ID(protoID))
	if err != nil {
		if t.log != nil {
			t.log.Warn("transport: open stream failed", logger.String("peer_id", p.String()), logger.String("protocol", protoID), logger.Error(err))
		}
		return nil, fmt.Errorf("%w: %v", ErrDialFailed, err)
	}
	return s, nil
}

func addrInfoFromStrings(p peer.ID, addrs []string) (peer.AddrInfo, error) {
	mas := make([]multiaddr.Multiaddr, 0, len(addrs))
	for _, a := range addrs {
		ma, err := multiaddr.NewMultiaddr(a)
		if err != nil {
			continue
		}
		mas = append(mas, ma)
	}
	if len(mas) == 0 {
		return peer.AddrInfo{}, ErrNoRoute
	}
	return peer.AddrInfo{ID: p, Addrs: mas}, nil
}

// Close shuts down the host and every open connection.
func (t *Host) Close() error {
	return t.h.Close()
}

// AsReadWriteCloser exposes a network.Stream through the plain
// io.ReadWriteCloser surface the session/handshake/invite packages are
// written against, so they carry no libp2p dependency of their own.
func AsReadWriteCloser(s network.Stream) io.ReadWriteCloser {
	return s
}
