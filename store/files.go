package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type sqliteFiles struct {
	db *sql.DB
}

func (f *sqliteFiles) Upsert(ctx context.Context, obj *FileObject) error {
	_, err := f.db.ExecContext(ctx, `
		INSERT INTO files (hash, size_bytes, mime_hint, local_path, first_seen, origin, sticker)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (hash) DO UPDATE SET
			size_bytes = excluded.size_bytes,
			mime_hint  = excluded.mime_hint,
			local_path = excluded.local_path,
			origin     = excluded.origin,
			sticker    = excluded.sticker
	`, obj.Hash, obj.SizeBytes, obj.MimeHint, obj.LocalPath, obj.FirstSeen.Unix(), obj.Origin, boolToInt(obj.Sticker))
	if err != nil {
		return fmt.Errorf("store: upsert file %s: %w", obj.Hash, err)
	}
	return nil
}

func (f *sqliteFiles) Get(ctx context.Context, hash string) (*FileObject, error) {
	row := f.db.QueryRowContext(ctx, `
		SELECT hash, size_bytes, mime_hint, local_path, first_seen, origin, sticker
		FROM files WHERE hash = ?
	`, hash)
	obj, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return obj, err
}

func (f *sqliteFiles) Delete(ctx context.Context, hash string) error {
	if _, err := f.db.ExecContext(ctx, `DELETE FROM files WHERE hash = ?`, hash); err != nil {
		return fmt.Errorf("store: delete file %s: %w", hash, err)
	}
	return nil
}

func scanFile(s rowScanner) (*FileObject, error) {
	var obj FileObject
	var firstSeen int64
	var sticker int
	if err := s.Scan(&obj.Hash, &obj.SizeBytes, &obj.MimeHint, &obj.LocalPath, &firstSeen, &obj.Origin, &sticker); err != nil {
		return nil, err
	}
	obj.FirstSeen = time.Unix(firstSeen, 0).UTC()
	obj.Sticker = sticker != 0
	return &obj, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type sqliteStickers struct {
	db *sql.DB
}

// List returns every file in the sticker namespace, realized here as a
// filtered view over the same content-addressed table Files uses rather
// than a duplicate table.
func (s *sqliteStickers) List(ctx context.Context) ([]*FileObject, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hash, size_bytes, mime_hint, local_path, first_seen, origin, sticker
		FROM files WHERE sticker = 1 ORDER BY first_seen DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list stickers: %w", err)
	}
	defer rows.Close()

	var out []*FileObject
	for rows.Next() {
		obj, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan sticker: %w", err)
		}
		out = append(out, obj)
	}
	return out, rows.Err()
}
