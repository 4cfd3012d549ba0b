package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store over a local embedded SQLite database,
// split into per-concern sub-stores the way a multi-table repository
// composes its SessionStore/NonceStore/DIDStore, backed by
// modernc.org/sqlite, a pure-Go engine well suited to embedded local
// storage.
type SQLiteStore struct {
	db *sql.DB

	peers     *sqlitePeers
	envelopes *sqliteEnvelopes
	messages  *sqliteMessages
	files     *sqliteFiles
	stickers  *sqliteStickers
	profile   *sqliteProfile
	theme     *sqliteTheme
}

// Open creates or opens the SQLite database at path and applies the
// schema (idempotent: CREATE TABLE IF NOT EXISTS). path may be ":memory:"
// for tests.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	// SQLite only supports one writer at a time; serialize at the
	// connection-pool level rather than letting database/sql hand out
	// concurrent writer connections that would just contend on SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	return &SQLiteStore{
		db:        db,
		peers:     &sqlitePeers{db: db},
		envelopes: &sqliteEnvelopes{db: db},
		messages:  &sqliteMessages{db: db},
		files:     &sqliteFiles{db: db},
		stickers:  &sqliteStickers{db: db},
		profile:   &sqliteProfile{db: db},
		theme:     &sqliteTheme{db: db},
	}, nil
}

func (s *SQLiteStore) Peers() Peers         { return s.peers }
func (s *SQLiteStore) Envelopes() Envelopes { return s.envelopes }
func (s *SQLiteStore) Messages() Messages   { return s.messages }
func (s *SQLiteStore) Files() Files         { return s.files }
func (s *SQLiteStore) Stickers() Stickers   { return s.stickers }
func (s *SQLiteStore) Profile() Profile     { return s.profile }
func (s *SQLiteStore) Theme() Theme         { return s.theme }

// WipeAll erases every table in one transaction, for vault reset.
func (s *SQLiteStore) WipeAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin wipe: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"peers", "envelopes", "messages", "files", "profile", "theme"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("store: wipe %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit wipe: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
