package file

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rchat-io/rchat-node/core/message"
	"github.com/rchat-io/rchat-node/internal/logger"
	"github.com/rchat-io/rchat-node/internal/metrics"
)

// Dialer opens a fresh /rchat/file/1 stream to peerID. The transport layer
// implements this; Transfer never touches libp2p directly.
type Dialer interface {
	Dial(ctx context.Context, peerID string) (io.ReadWriteCloser, error)
}

// Transfer drives the requester side of the file transfer protocol:
// REQUEST -> RESPONSE_HEADER -> CHUNK* -> END, with resumable offsets and a
// verified running hash.
type Transfer struct {
	store    BlobStore
	dialer   Dialer
	progress *ProgressReporter
	log      logger.Logger

	// sf coalesces concurrent Fetch calls for the same peer+file_hash so a
	// burst of file-announce frames referencing one file doesn't open
	// redundant dials.
	sf singleflight.Group
}

// NewTransfer builds a Transfer backed by store for local persistence and
// dialer for opening outbound streams. onProgress may be nil.
func NewTransfer(store BlobStore, dialer Dialer, onProgress func(ProgressEvent), log logger.Logger) *Transfer {
	return &Transfer{
		store:    store,
		dialer:   dialer,
		progress: NewProgressReporter(onProgress),
		log:      log,
	}
}

// Fetch retrieves fileHash from peerID, resuming a prior partial download
// if one exists, and verifies the assembled bytes against fileHash before
// committing. Concurrent Fetch calls for the same (peerID, fileHash) share
// one in-flight transfer.
func (t *Transfer) Fetch(ctx context.Context, peerID, fileHash string) error {
	if t.store.Has(fileHash) {
		return nil
	}

	key := peerID + "|" + fileHash
	_, err, _ := t.sf.Do(key, func() (any, error) {
		return nil, t.fetch(ctx, peerID, fileHash)
	})
	return err
}

func (t *Transfer) fetch(ctx context.Context, peerID, fileHash string) (err error) {
	metrics.TransfersStarted.WithLabelValues("requester").Inc()
	metrics.ActiveTransfers.Inc()
	start := time.Now()
	defer func() {
		metrics.ActiveTransfers.Dec()
		metrics.TransferDuration.Observe(time.Since(start).Seconds())
		switch {
		case err == nil:
			metrics.TransfersCompleted.WithLabelValues("success").Inc()
		case errors.Is(err, ErrHashMismatch):
			metrics.TransfersCompleted.WithLabelValues("hash_mismatch").Inc()
		default:
			metrics.TransfersCompleted.WithLabelValues("failure").Inc()
		}
	}()

	offset := t.store.PartialSize(fileHash)
	resume := offset > 0

	conn, err := t.dialer.Dial(ctx, peerID)
	if err != nil {
		return fmt.Errorf("file: dial %s for %s: %w", peerID, fileHash, err)
	}
	defer conn.Close()

	reqEnv := Envelope{Kind: KindRequest, Request: &Request{FileHash: fileHash, Offset: offset}}
	if err := writeEnvelope(conn, reqEnv); err != nil {
		return fmt.Errorf("file: send request: %w", err)
	}

	headerEnv, err := readEnvelope(conn)
	if err != nil {
		return fmt.Errorf("file: read response header: %w", err)
	}
	if headerEnv.Kind != KindResponseHeader || headerEnv.Header == nil {
		return fmt.Errorf("file: expected response_header, got %s", headerEnv.Kind)
	}
	header := headerEnv.Header
	if header.Size < 0 {
		return ErrNotFound
	}

	// The responder may have restarted from 0 instead of honoring our
	// resume offset; fall back cleanly rather than corrupt the blob.
	if !resume || header.Size < offset {
		offset = 0
		resume = false
	}

	writer, err := t.store.Writer(fileHash, resume)
	if err != nil {
		return fmt.Errorf("file: open write target: %w", err)
	}

	hasher := sha256.New()
	if resume {
		partial, err := t.store.OpenPartial(fileHash)
		if err != nil {
			return fmt.Errorf("file: read partial download: %w", err)
		}
		if _, err := io.Copy(hasher, partial); err != nil {
			partial.Close()
			return fmt.Errorf("file: hash partial download: %w", err)
		}
		partial.Close()
	}

	bytesDone := offset
	t.progress.Report(ProgressEvent{FileHash: fileHash, BytesDone: bytesDone, Total: header.Size}, true)

	chunks := make(chan *Chunk, WindowSize)
	readErrCh := make(chan error, 1)
	go func() {
		defer close(chunks)
		for {
			env, err := readEnvelopeWithTimeout(conn, ChunkTimeout)
			if err != nil {
				if errors.Is(err, io.EOF) {
					err = ErrUnexpectedEnd
				}
				readErrCh <- err
				return
			}
			switch env.Kind {
			case KindChunk:
				chunks <- env.Chunk
			case KindEnd:
				readErrCh <- nil
				return
			default:
				readErrCh <- fmt.Errorf("file: unexpected frame kind %s mid-transfer", env.Kind)
				return
			}
		}
	}()

	for c := range chunks {
		if _, err := writer.Write(c.Bytes); err != nil {
			writer.Close()
			return fmt.Errorf("file: write chunk: %w", err)
		}
		hasher.Write(c.Bytes)
		bytesDone += int64(len(c.Bytes))
		t.progress.Report(ProgressEvent{FileHash: fileHash, BytesDone: bytesDone, Total: header.Size}, false)
	}
	writer.Close()
	t.progress.Forget(fileHash)

	if err := <-readErrCh; err != nil {
		return fmt.Errorf("file: stream ended early: %w", err)
	}

	if hex.EncodeToString(hasher.Sum(nil)) != fileHash {
		if qErr := t.store.Quarantine(fileHash); qErr != nil && t.log != nil {
			t.log.Warn("file: quarantine failed", logger.String("file_hash", fileHash), logger.Error(qErr))
		}
		return ErrHashMismatch
	}

	t.progress.Report(ProgressEvent{FileHash: fileHash, BytesDone: bytesDone, Total: header.Size}, true)
	metrics.TransferBytes.Observe(float64(bytesDone))
	return t.store.Commit(fileHash)
}

func writeEnvelope(w io.Writer, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return message.WriteFrame(w, payload)
}

func readEnvelope(r io.Reader) (*Envelope, error) {
	payload, err := message.ReadFrame(r)
	if err != nil {
		return nil, err
	}
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return &env, nil
}

// deadliner is satisfied by net.Conn and libp2p's network.Stream, both of
// which Dialer implementations hand back wrapped as io.ReadWriteCloser.
type deadliner interface {
	SetReadDeadline(time.Time) error
}

func readEnvelopeWithTimeout(r io.Reader, timeout time.Duration) (*Envelope, error) {
	if d, ok := r.(deadliner); ok {
		d.SetReadDeadline(time.Now().Add(timeout))
	}
	return readEnvelope(r)
}
