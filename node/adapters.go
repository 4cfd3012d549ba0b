package node

import (
	"context"
	"fmt"
	"io"

	libp2pnetwork "github.com/libp2p/go-libp2p/core/network"

	"github.com/rchat-io/rchat-node/core/message"
	"github.com/rchat-io/rchat-node/identity"
	"github.com/rchat-io/rchat-node/transport"
)

// MessageSender adapts *transport.Host to core/message.Dispatcher's
// PeerSender interface: dial the messaging protocol and write one sealed
// frame. The dispatcher holds no reference to libp2p of its own.
type MessageSender struct {
	host *transport.Host
}

// NewMessageSender wraps host for use as a core/message.Dispatcher dependency.
func NewMessageSender(host *transport.Host) *MessageSender {
	return &MessageSender{host: host}
}

func (s *MessageSender) SendFrame(ctx context.Context, peerID string, frame []byte) error {
	stream, err := s.host.Dial(ctx, identity.PeerID(peerID), transport.ProtocolMessage, nil)
	if err != nil {
		return fmt.Errorf("node: dial message stream: %w", err)
	}
	defer stream.Close()

	if err := message.WriteFrame(stream, frame); err != nil {
		return fmt.Errorf("node: write message frame: %w", err)
	}
	return nil
}

// FileDialer adapts *transport.Host to core/file.Transfer's Dialer
// interface, always dialing the file-transfer protocol stream.
type FileDialer struct {
	host *transport.Host
}

// NewFileDialer wraps host for use as a core/file.Transfer dependency.
func NewFileDialer(host *transport.Host) *FileDialer {
	return &FileDialer{host: host}
}

func (d *FileDialer) Dial(ctx context.Context, peerID string) (io.ReadWriteCloser, error) {
	s, err := d.host.Dial(ctx, identity.PeerID(peerID), transport.ProtocolFile, nil)
	if err != nil {
		return nil, fmt.Errorf("node: dial file stream: %w", err)
	}
	return transport.AsReadWriteCloser(s), nil
}

// ConnectionAdapter satisfies api.ConnectionRequester by dialing and
// handshaking a trusted peer outside of invite redemption, e.g. to
// re-establish a session after it comes back online.
type ConnectionAdapter struct {
	n *Node
}

// NewConnectionAdapter wraps n for use as an api.Dispatcher dependency.
func NewConnectionAdapter(n *Node) *ConnectionAdapter {
	return &ConnectionAdapter{n: n}
}

func (a *ConnectionAdapter) RequestConnection(ctx context.Context, peerID identity.PeerID) error {
	return a.n.dialAndHandshake(ctx, peerID, nil)
}

// PresenceAdapter satisfies api.PresenceToggler, controlling the node's two
// discovery paths and its advertised online status.
type PresenceAdapter struct {
	n *Node
}

// NewPresenceAdapter wraps n for use as an api.Dispatcher dependency.
func NewPresenceAdapter(n *Node) *PresenceAdapter {
	return &PresenceAdapter{n: n}
}

func (a *PresenceAdapter) SetFastDiscovery(enabled bool) error {
	return a.n.setFastDiscovery(enabled)
}

func (a *PresenceAdapter) SetOnline(enabled bool) error {
	return a.n.setOnline(enabled)
}

// asStreamHandler adapts a (context, io.ReadWriteCloser) handler into the
// libp2p SetStreamHandler shape *transport.Host.RegisterHandler expects,
// closing the stream once the handler returns.
func asStreamHandler(ctx context.Context, fn func(context.Context, io.ReadWriteCloser)) func(libp2pnetwork.Stream) {
	return func(s libp2pnetwork.Stream) {
		defer s.Close()
		fn(ctx, transport.AsReadWriteCloser(s))
	}
}
