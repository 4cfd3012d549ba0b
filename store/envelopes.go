package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type sqliteEnvelopes struct {
	db *sql.DB
}

func (e *sqliteEnvelopes) Create(ctx context.Context, env *Envelope) error {
	_, err := e.db.ExecContext(ctx, `
		INSERT INTO envelopes (id, name, icon, created_at) VALUES (?, ?, ?, ?)
	`, env.ID, env.Name, env.Icon, env.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("store: create envelope %s: %w", env.ID, err)
	}
	return nil
}

func (e *sqliteEnvelopes) Get(ctx context.Context, id string) (*Envelope, error) {
	row := e.db.QueryRowContext(ctx, `
		SELECT id, name, icon, created_at FROM envelopes WHERE id = ?
	`, id)

	var env Envelope
	var createdAt int64
	if err := row.Scan(&env.ID, &env.Name, &env.Icon, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get envelope %s: %w", id, err)
	}
	env.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &env, nil
}

func (e *sqliteEnvelopes) List(ctx context.Context) ([]*Envelope, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT id, name, icon, created_at FROM envelopes ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list envelopes: %w", err)
	}
	defer rows.Close()

	var out []*Envelope
	for rows.Next() {
		var env Envelope
		var createdAt int64
		if err := rows.Scan(&env.ID, &env.Name, &env.Icon, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan envelope: %w", err)
		}
		env.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, &env)
	}
	return out, rows.Err()
}

func (e *sqliteEnvelopes) Update(ctx context.Context, env *Envelope) error {
	result, err := e.db.ExecContext(ctx, `
		UPDATE envelopes SET name = ?, icon = ? WHERE id = ?
	`, env.Name, env.Icon, env.ID)
	if err != nil {
		return fmt.Errorf("store: update envelope %s: %w", env.ID, err)
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

// Delete removes envelope id and reassigns its member peers to the root
// bucket in the same transaction.
func (e *sqliteEnvelopes) Delete(ctx context.Context, id string) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin delete envelope %s: %w", id, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "UPDATE peers SET envelope_id = '' WHERE envelope_id = ?", id); err != nil {
		return fmt.Errorf("store: reassign peers from envelope %s: %w", id, err)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM envelopes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("store: delete envelope %s: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}
