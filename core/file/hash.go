package file

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

func randomTmpName() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("file: generate ingest buffer name: %w", err)
	}
	return "ingest-" + hex.EncodeToString(b[:]), nil
}

// ComputeHash returns the content address (hex sha256) a file-announce
// should advertise, and the byte count read along the way.
func ComputeHash(r io.Reader) (fileHash string, size int64, err error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", 0, fmt.Errorf("file: hash content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Ingest computes src's content hash while copying it into the local blob
// store, for files originated locally (outgoing file-announce) rather than
// received over the wire. It rejects content over StickerMaxSize when
// sticker is true.
func Ingest(store BlobStore, src io.Reader, sticker bool) (fileHash string, size int64, err error) {
	if sticker {
		src = io.LimitReader(src, StickerMaxSize+1)
	}

	h := sha256.New()
	tmpName, err := randomTmpName()
	if err != nil {
		return "", 0, err
	}
	w, err := store.Writer(tmpName, false)
	if err != nil {
		return "", 0, fmt.Errorf("file: open ingest buffer: %w", err)
	}

	n, err := io.Copy(io.MultiWriter(h, w), src)
	if err != nil {
		w.Close()
		return "", 0, fmt.Errorf("file: ingest content: %w", err)
	}
	w.Close()

	if sticker && n > StickerMaxSize {
		store.Quarantine(tmpName)
		return "", 0, ErrTooLarge
	}

	fileHash = hex.EncodeToString(h.Sum(nil))
	if err := store.CommitAs(tmpName, fileHash); err != nil {
		return "", 0, fmt.Errorf("file: commit ingested content: %w", err)
	}
	return fileHash, n, nil
}
