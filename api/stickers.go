package api

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/rchat-io/rchat-node/core/file"
	"github.com/rchat-io/rchat-node/store"
)

// GetStickers lists every sticker in the sticker namespace.
func (d *Dispatcher) GetStickers(ctx context.Context) ([]string, *Error) {
	objs, err := d.deps.Store.Stickers().List(ctx)
	if err != nil {
		return nil, classify(err, KindInternal)
	}
	out := make([]string, len(objs))
	for i, o := range objs {
		out[i] = o.Hash
	}
	return out, nil
}

// AddSticker ingests webp-encoded sticker bytes, enforcing the sticker size
// cap, and catalogs the result under the given display name.
func (d *Dispatcher) AddSticker(ctx context.Context, webp []byte, name string) (string, *Error) {
	hash, size, err := file.Ingest(d.deps.Files, bytes.NewReader(webp), true)
	if err != nil {
		if errors.Is(err, file.ErrTooLarge) {
			return "", newError(KindInvalidArgument, "sticker exceeds size cap", err)
		}
		return "", newError(KindInternal, "ingest sticker", err)
	}

	obj := &store.FileObject{
		Hash:      hash,
		SizeBytes: size,
		MimeHint:  "image/webp",
		LocalPath: name,
		FirstSeen: time.Now(),
		Origin:    "self",
		Sticker:   true,
	}
	if err := d.deps.Store.Files().Upsert(ctx, obj); err != nil {
		return "", classify(err, KindInternal)
	}
	return hash, nil
}

// DeleteSticker removes a sticker from the catalog and from disk.
func (d *Dispatcher) DeleteSticker(ctx context.Context, fileHash string) *Error {
	if err := d.deps.Store.Files().Delete(ctx, fileHash); err != nil {
		return classify(err, KindInternal)
	}
	if err := d.deps.Files.Delete(fileHash); err != nil {
		return newError(KindInternal, "delete sticker blob", err)
	}
	return nil
}

// GetStickerData returns a sticker's bytes as a data URL.
func (d *Dispatcher) GetStickerData(fileHash string) (string, *Error) {
	return d.dataURLFor(fileHash)
}
