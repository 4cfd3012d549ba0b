package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type sqlitePeers struct {
	db *sql.DB
}

// AddTrustedPeer backs core/invite.TrustStore through node.TrustStoreAdapter:
// a successful invitation redemption inserts the peer directly as trusted,
// pinned false, appended to the end of the order.
func (p *sqlitePeers) AddTrustedPeer(ctx context.Context, peerID, handle string) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO peers (peer_id, handle, added_at, pinned, order_index, envelope_id)
		VALUES (?, ?, ?, 0, (SELECT COALESCE(MAX(order_index), -1) + 1 FROM peers), '')
		ON CONFLICT (peer_id) DO UPDATE SET handle = excluded.handle
	`, peerID, handle, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("store: add trusted peer %s: %w", peerID, err)
	}
	return nil
}

func (p *sqlitePeers) Get(ctx context.Context, peerID string) (*TrustedPeer, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT peer_id, handle, added_at, pinned, order_index, envelope_id
		FROM peers WHERE peer_id = ?
	`, peerID)
	return scanPeer(row)
}

func (p *sqlitePeers) List(ctx context.Context) ([]*TrustedPeer, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT peer_id, handle, added_at, pinned, order_index, envelope_id
		FROM peers ORDER BY order_index ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list peers: %w", err)
	}
	defer rows.Close()

	var out []*TrustedPeer
	for rows.Next() {
		peer, err := scanPeerRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, peer)
	}
	return out, rows.Err()
}

func (p *sqlitePeers) SetPinned(ctx context.Context, peerID string, pinned bool) error {
	return p.exec(ctx, "UPDATE peers SET pinned = ? WHERE peer_id = ?", pinned, peerID)
}

func (p *sqlitePeers) SetEnvelope(ctx context.Context, peerID, envelopeID string) error {
	return p.exec(ctx, "UPDATE peers SET envelope_id = ? WHERE peer_id = ?", envelopeID, peerID)
}

func (p *sqlitePeers) Reorder(ctx context.Context, peerID string, orderIndex int) error {
	return p.exec(ctx, "UPDATE peers SET order_index = ? WHERE peer_id = ?", orderIndex, peerID)
}

func (p *sqlitePeers) Delete(ctx context.Context, peerID string) error {
	return p.exec(ctx, "DELETE FROM peers WHERE peer_id = ?", peerID)
}

func (p *sqlitePeers) exec(ctx context.Context, query string, args ...any) error {
	result, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("store: %s: %w", query, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPeer(row *sql.Row) (*TrustedPeer, error) {
	peer, err := scanPeerRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return peer, err
}

func scanPeerRows(rows *sql.Rows) (*TrustedPeer, error) {
	return scanPeerRow(rows)
}

func scanPeerRow(s rowScanner) (*TrustedPeer, error) {
	var peer TrustedPeer
	var addedAt int64
	var pinned int
	if err := s.Scan(&peer.PeerID, &peer.Handle, &addedAt, &pinned, &peer.OrderIndex, &peer.EnvelopeID); err != nil {
		return nil, err
	}
	peer.AddedAt = time.Unix(addedAt, 0).UTC()
	peer.Pinned = pinned != 0
	return &peer, nil
}
