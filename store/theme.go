package store

import (
	"context"
	"database/sql"
	"fmt"
)

type sqliteTheme struct {
	db *sql.DB
}

func (t *sqliteTheme) Get(ctx context.Context) (string, error) {
	row := t.db.QueryRowContext(ctx, "SELECT json FROM theme WHERE id = 1")
	var doc string
	if err := row.Scan(&doc); err != nil {
		if err == sql.ErrNoRows {
			return "{}", nil
		}
		return "", fmt.Errorf("store: get theme: %w", err)
	}
	return doc, nil
}

func (t *sqliteTheme) Set(ctx context.Context, json string) error {
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO theme (id, json) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET json = excluded.json
	`, json)
	if err != nil {
		return fmt.Errorf("store: set theme: %w", err)
	}
	return nil
}
