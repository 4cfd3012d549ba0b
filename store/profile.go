package store

import (
	"context"
	"database/sql"
	"fmt"
)

type sqliteProfile struct {
	db *sql.DB
}

func (p *sqliteProfile) Get(ctx context.Context) (*UserProfile, error) {
	row := p.db.QueryRowContext(ctx, "SELECT alias, avatar_ref FROM profile WHERE id = 1")
	var profile UserProfile
	if err := row.Scan(&profile.Alias, &profile.AvatarRef); err != nil {
		if err == sql.ErrNoRows {
			return &UserProfile{}, nil // no profile set yet: zero value, not an error
		}
		return nil, fmt.Errorf("store: get profile: %w", err)
	}
	return &profile, nil
}

func (p *sqliteProfile) Set(ctx context.Context, profile *UserProfile) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO profile (id, alias, avatar_ref) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET alias = excluded.alias, avatar_ref = excluded.avatar_ref
	`, profile.Alias, profile.AvatarRef)
	if err != nil {
		return fmt.Errorf("store: set profile: %w", err)
	}
	return nil
}
