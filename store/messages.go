package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type sqliteMessages struct {
	db *sql.DB
}

// Insert is idempotent on MsgID: INSERT OR IGNORE makes a repeat insert
// with the same primary key a no-op rather than a constraint error.
func (m *sqliteMessages) Insert(ctx context.Context, msg *ChatMessage) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO messages
			(msg_id, chat_id, direction, sender_peer_id, content_type, text, file_hash, file_name, created_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.MsgID, msg.ChatID, string(msg.Direction), msg.SenderPeerID, string(msg.ContentType),
		msg.Text, msg.FileHash, msg.FileName, msg.CreatedAt.Unix(), string(msg.Status))
	if err != nil {
		return fmt.Errorf("store: insert message %s: %w", msg.MsgID, err)
	}
	return nil
}

// UpdateStatus moves msg_id's status forward only. pending->failed is
// always allowed (the terminal sink); any other transition that would
// move backward relative to the happy path is discarded, not erroring.
func (m *sqliteMessages) UpdateStatus(ctx context.Context, msgID string, status Status) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin status update for %s: %w", msgID, err)
	}
	defer tx.Rollback()

	var current string
	if err := tx.QueryRowContext(ctx, "SELECT status FROM messages WHERE msg_id = ?", msgID).Scan(&current); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("store: read current status for %s: %w", msgID, err)
	}

	if status == StatusFailed {
		if Status(current) != StatusPending {
			return nil // failed only reachable from pending; silently discard
		}
	} else if statusRank[status] <= statusRank[Status(current)] {
		return nil // would move backward or stay put: discard, not an error
	}

	if _, err := tx.ExecContext(ctx, "UPDATE messages SET status = ? WHERE msg_id = ?", string(status), msgID); err != nil {
		return fmt.Errorf("store: update status for %s: %w", msgID, err)
	}
	return tx.Commit()
}

// History returns chatID's messages sorted by msg_id ascending (ULID-like
// IDs are time-sortable, so this is also chronological order).
func (m *sqliteMessages) History(ctx context.Context, chatID string) ([]*ChatMessage, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT msg_id, chat_id, direction, sender_peer_id, content_type, text, file_hash, file_name, created_at, status
		FROM messages WHERE chat_id = ? ORDER BY msg_id ASC
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("store: history for %s: %w", chatID, err)
	}
	defer rows.Close()

	var out []*ChatMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// LatestTimes returns chat_id -> max(created_at) as unix seconds.
func (m *sqliteMessages) LatestTimes(ctx context.Context) (map[string]int64, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT chat_id, MAX(created_at) FROM messages GROUP BY chat_id
	`)
	if err != nil {
		return nil, fmt.Errorf("store: latest times: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var chatID string
		var latest int64
		if err := rows.Scan(&chatID, &latest); err != nil {
			return nil, fmt.Errorf("store: scan latest time: %w", err)
		}
		out[chatID] = latest
	}
	return out, rows.Err()
}

func scanMessage(rows *sql.Rows) (*ChatMessage, error) {
	var msg ChatMessage
	var direction, contentType, status string
	var createdAt int64
	if err := rows.Scan(
		&msg.MsgID, &msg.ChatID, &direction, &msg.SenderPeerID, &contentType,
		&msg.Text, &msg.FileHash, &msg.FileName, &createdAt, &status,
	); err != nil {
		return nil, fmt.Errorf("store: scan message: %w", err)
	}
	msg.Direction = Direction(direction)
	msg.ContentType = ContentType(contentType)
	msg.Status = Status(status)
	msg.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &msg, nil
}
