package node

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	libp2pnetwork "github.com/libp2p/go-libp2p/core/network"

	"github.com/rchat-io/rchat-node/core/handshake"
	"github.com/rchat-io/rchat-node/core/message"
	"github.com/rchat-io/rchat-node/internal/eventbus"
	"github.com/rchat-io/rchat-node/internal/logger"
	"github.com/rchat-io/rchat-node/store"
)

// handleHandshakeStream runs the responder side of one inbound
// /rchat/handshake/1 stream and, only for a peer already in the trust
// store, installs the resulting session. A peer that completes the Noise
// handshake but isn't trusted gets no session and leaves no persisted
// trace beyond a rate-limited protocol event, per the trust gate.
func (n *Node) handleHandshakeStream(ctx context.Context, rw io.ReadWriteCloser) {
	sess, peerID, err := handshake.Respond(ctx, rw, n.identityKey, n.sessions.DefaultConfig())
	if err != nil {
		n.log.Warn("node: inbound handshake failed", logger.Error(err))
		return
	}

	if _, err := n.store.Peers().Get(ctx, peerID.String()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			n.reportUntrustedPeer(peerID.String())
			return
		}
		n.log.Warn("node: trust lookup failed", logger.String("peer_id", peerID.String()), logger.Error(err))
		return
	}

	n.sessions.Open(peerID.String(), sess)
	n.bus.Publish(eventbus.KindPeerConnected, peerID.String())
	n.log.Info("node: session established", logger.String("peer_id", peerID.String()))
}

// handleMessageStream reads every sealed frame off an inbound
// /rchat/msg/1 stream, decrypting and validating each under the sending
// peer's already-established session before persisting it.
func (n *Node) handleMessageStream(ctx context.Context, rw io.ReadWriteCloser) {
	peerID := remotePeerID(rw)
	if peerID == "" {
		n.log.Warn("node: message stream with no resolvable remote peer")
		return
	}

	sess, ok := n.sessions.Get(peerID)
	if !ok {
		n.log.Warn("node: message stream from peer with no session", logger.String("peer_id", peerID))
		return
	}

	for {
		sealed, err := message.ReadFrame(rw)
		if err != nil {
			if err != io.EOF {
				n.log.Warn("node: read message frame failed", logger.String("peer_id", peerID), logger.Error(err))
			}
			return
		}

		plaintext, err := sess.DecryptAndVerify(sealed)
		if err != nil {
			n.log.Warn("node: decrypt message frame failed", logger.String("peer_id", peerID), logger.Error(err))
			continue
		}

		var env message.Envelope
		if err := json.Unmarshal(plaintext, &env); err != nil {
			n.log.Warn("node: unmarshal envelope failed", logger.String("peer_id", peerID), logger.Error(err))
			continue
		}

		n.handleInboundEnvelope(ctx, peerID, env)
	}
}

func (n *Node) handleInboundEnvelope(ctx context.Context, peerID string, env message.Envelope) {
	result := n.validator.ValidateMessage(env.MessageControlHeader, peerID, env.MsgID.String())
	if !result.IsValid {
		n.log.Warn("node: inbound message rejected",
			logger.String("peer_id", peerID), logger.Bool("is_replay", result.IsReplay),
			logger.Bool("is_duplicate", result.IsDuplicate), logger.Error(result.Error))
		return
	}

	record := &store.ChatMessage{
		MsgID:        env.MsgID.String(),
		ChatID:       peerID,
		Direction:    store.DirectionIn,
		SenderPeerID: peerID,
		ContentType:  store.ContentType(env.ContentType),
		Text:         env.Text,
		FileHash:     env.FileHash,
		FileName:     env.FileName,
		CreatedAt:    env.Timestamp,
		Status:       store.StatusDelivered,
	}
	if err := n.store.Messages().Insert(ctx, record); err != nil {
		n.log.Warn("node: persist inbound message failed", logger.String("peer_id", peerID), logger.Error(err))
		return
	}
	n.bus.Publish(eventbus.KindMessageReceived, record)

	if env.FileHash != "" {
		go n.fetchInboundFile(ctx, peerID, env.FileHash)
	}
}

func (n *Node) fetchInboundFile(ctx context.Context, peerID, fileHash string) {
	if err := n.transfer.Fetch(ctx, peerID, fileHash); err != nil {
		n.log.Warn("node: inbound file fetch failed",
			logger.String("peer_id", peerID), logger.String("file_hash", fileHash), logger.Error(err))
		return
	}
	n.bus.Publish(eventbus.KindFileTransferComplete, fileHash)
}

// remotePeerID recovers which peer dialed an inbound stream.
// transport.AsReadWriteCloser narrows a network.Stream down to
// io.ReadWriteCloser for the session/handshake/file packages, but the
// stream's dynamic type still satisfies network.Stream underneath, so a
// type assertion back to it is enough to reach Conn().RemotePeer().
func remotePeerID(rw io.ReadWriteCloser) string {
	s, ok := rw.(libp2pnetwork.Stream)
	if !ok {
		return ""
	}
	return s.Conn().RemotePeer().String()
}
