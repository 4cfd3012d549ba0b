package api

import "context"

// GetTrustedPeers lists every peer ID this node trusts.
func (d *Dispatcher) GetTrustedPeers(ctx context.Context) ([]string, *Error) {
	peers, err := d.deps.Store.Peers().List(ctx)
	if err != nil {
		return nil, classify(err, KindInternal)
	}
	out := make([]string, len(peers))
	for i, p := range peers {
		out[i] = p.PeerID
	}
	return out, nil
}

// DeletePeer removes peerID from the trust list, closing any live session.
func (d *Dispatcher) DeletePeer(ctx context.Context, peerID string) *Error {
	if err := d.deps.Store.Peers().Delete(ctx, peerID); err != nil {
		return classify(err, KindInternal)
	}
	if msgDispatcher := d.messageDispatcher(); msgDispatcher != nil {
		msgDispatcher.ClosePeer(peerID)
	}
	return nil
}

// GetPinnedPeers lists trusted peers currently pinned.
func (d *Dispatcher) GetPinnedPeers(ctx context.Context) ([]string, *Error) {
	peers, err := d.deps.Store.Peers().List(ctx)
	if err != nil {
		return nil, classify(err, KindInternal)
	}
	var out []string
	for _, p := range peers {
		if p.Pinned {
			out = append(out, p.PeerID)
		}
	}
	return out, nil
}

// SetPeerPinned pins or unpins a trusted peer.
func (d *Dispatcher) SetPeerPinned(ctx context.Context, peerID string, pinned bool) *Error {
	if err := d.deps.Store.Peers().SetPinned(ctx, peerID, pinned); err != nil {
		return classify(err, KindInternal)
	}
	return nil
}
