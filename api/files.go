package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/rchat-io/rchat-node/core/file"
	"github.com/rchat-io/rchat-node/core/message"
	"github.com/rchat-io/rchat-node/store"
)

// FileService is the subset of core/file.LocalBlobStore the dispatcher
// needs: ingesting a local path into the
// content-addressed store and opening a previously-ingested blob back up.
// Kept narrow and local to api/ so this package doesn't need a live
// transport.Host to compile and test against fakes.
type FileService interface {
	file.BlobStore
}

func mimeHintFor(path string) string {
	if hint := mime.TypeByExtension(filepath.Ext(path)); hint != "" {
		return hint
	}
	return "application/octet-stream"
}

// sendLocalFile ingests the file at path into the blob store, catalogs it,
// sends a file-content envelope to peerID, and records the outgoing
// ChatMessage, returning the content hash the UI tracks the transfer by.
func (d *Dispatcher) sendLocalFile(ctx context.Context, peerID, path string, contentType store.ContentType, msgContentType message.ContentType) (string, *Error) {
	f, err := os.Open(path)
	if err != nil {
		return "", newError(KindInvalidArgument, "open file", err)
	}
	defer f.Close()

	hash, size, err := file.Ingest(d.deps.Files, f, false)
	if err != nil {
		return "", newError(KindInternal, "ingest file", err)
	}

	obj := &store.FileObject{
		Hash:      hash,
		SizeBytes: size,
		MimeHint:  mimeHintFor(path),
		LocalPath: path,
		FirstSeen: time.Now(),
		Origin:    "self",
	}
	if err := d.deps.Store.Files().Upsert(ctx, obj); err != nil {
		return "", classify(err, KindInternal)
	}

	id, err := message.NewID()
	if err != nil {
		return "", newError(KindInternal, "generate message id", err)
	}

	// Persisted as pending before the send attempt, same as SendMessage: the
	// blob is already cataloged, so the outgoing record stays in history for
	// retry rather than vanishing if no session is open yet.
	record := &store.ChatMessage{
		MsgID:        id.String(),
		ChatID:       peerID,
		Direction:    store.DirectionOut,
		ContentType:  contentType,
		FileHash:     hash,
		FileName:     filepath.Base(path),
		CreatedAt:    time.Now(),
		Status:       store.StatusPending,
	}
	if err := d.deps.Store.Messages().Insert(ctx, record); err != nil {
		return "", classify(err, KindInternal)
	}

	env := message.Envelope{MsgID: id, ContentType: msgContentType, FileHash: hash, FileName: filepath.Base(path)}
	msgDispatcher := d.messageDispatcher()
	if msgDispatcher == nil {
		// No networking yet: the record stays pending for the outbox to
		// pick up once the dispatcher is wired, same as messaging.go.
		return hash, nil
	}

	hadSession := msgDispatcher.HasSession(peerID)
	if err := msgDispatcher.Send(ctx, peerID, env); err != nil {
		classified := classify(err, KindInternal)
		if updErr := d.deps.Store.Messages().UpdateStatus(ctx, record.MsgID, store.StatusFailed); updErr != nil {
			return "", classify(updErr, KindInternal)
		}
		return "", classified
	}
	if !hadSession {
		return hash, nil
	}

	if err := d.deps.Store.Messages().UpdateStatus(ctx, record.MsgID, store.StatusSent); err != nil {
		return "", classify(err, KindInternal)
	}
	return hash, nil
}

// SendImageMessage ingests and sends an image file.
func (d *Dispatcher) SendImageMessage(ctx context.Context, peerID, path string) (string, *Error) {
	return d.sendLocalFile(ctx, peerID, path, store.ContentImage, message.ContentImage)
}

// SendDocumentMessage ingests and sends an arbitrary document file.
func (d *Dispatcher) SendDocumentMessage(ctx context.Context, peerID, path string) (string, *Error) {
	return d.sendLocalFile(ctx, peerID, path, store.ContentDocument, message.ContentDocument)
}

// SendVideoMessage ingests and sends a video file.
func (d *Dispatcher) SendVideoMessage(ctx context.Context, peerID, path string) (string, *Error) {
	return d.sendLocalFile(ctx, peerID, path, store.ContentVideo, message.ContentVideo)
}

// dataURLFor reads fileHash's full content from the blob store and returns it
// as a base64 data: URL the UI can bind directly into an <img>/<video> tag.
func (d *Dispatcher) dataURLFor(fileHash string) (string, *Error) {
	obj, err := d.deps.Store.Files().Get(context.Background(), fileHash)
	if err != nil {
		return "", classify(err, KindNotFound)
	}

	r, _, err := d.deps.Files.Open(fileHash)
	if err != nil {
		return "", newError(KindNotFound, "open blob", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return "", newError(KindInternal, "read blob", err)
	}

	mimeType := obj.MimeHint
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data)), nil
}

// GetImageData returns fileHash's bytes as a data URL.
func (d *Dispatcher) GetImageData(fileHash string) (string, *Error) {
	return d.dataURLFor(fileHash)
}

// GetVideoData returns fileHash's bytes as a data URL.
func (d *Dispatcher) GetVideoData(fileHash string) (string, *Error) {
	return d.dataURLFor(fileHash)
}

// GetImageFromPath reads an arbitrary local file (not yet in the content
// store, e.g. a freshly picked avatar) and returns it as a data URL.
func (d *Dispatcher) GetImageFromPath(path string) (string, *Error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", newError(KindInvalidArgument, "read file", err)
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeHintFor(path), base64.StdEncoding.EncodeToString(data)), nil
}

// saveBlobToFile copies fileHash's content to targetPath.
func (d *Dispatcher) saveBlobToFile(fileHash, targetPath string) *Error {
	r, _, err := d.deps.Files.Open(fileHash)
	if err != nil {
		return newError(KindNotFound, "open blob", err)
	}
	defer r.Close()

	w, err := os.Create(targetPath)
	if err != nil {
		return newError(KindInvalidArgument, "create target file", err)
	}
	defer w.Close()

	if _, err := io.Copy(w, r); err != nil {
		return newError(KindInternal, "copy blob to target", err)
	}
	return nil
}

// SaveImageToFile copies an image blob to a path the UI chose via the OS
// file dialog (out of scope here; the dispatcher only receives the result).
func (d *Dispatcher) SaveImageToFile(fileHash, targetPath string) *Error {
	return d.saveBlobToFile(fileHash, targetPath)
}

// SaveDocumentToFile copies a document blob to targetPath.
func (d *Dispatcher) SaveDocumentToFile(fileHash, targetPath string) *Error {
	return d.saveBlobToFile(fileHash, targetPath)
}
