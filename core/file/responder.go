package file

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rchat-io/rchat-node/internal/logger"
	"github.com/rchat-io/rchat-node/internal/metrics"
)

// Responder serves the peer side of the file transfer protocol: it reads
// one Request off an inbound /rchat/file/1 stream and streams the
// corresponding blob back as a ResponseHeader followed by Chunk frames and
// a terminating End.
type Responder struct {
	store     BlobStore
	chunkSize int32
	log       logger.Logger
}

// NewResponder serves blobs out of store, negotiating chunkSize (falling
// back to DefaultChunkSize if non-positive).
func NewResponder(store BlobStore, chunkSize int32, log logger.Logger) *Responder {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Responder{store: store, chunkSize: chunkSize, log: log}
}

// HandleStream reads one Request from conn and serves it to completion.
// Callers are expected to invoke this once per accepted stream and close
// conn afterward.
func (r *Responder) HandleStream(ctx context.Context, conn io.ReadWriteCloser) {
	env, err := readEnvelope(conn)
	if err != nil {
		if r.log != nil {
			r.log.Warn("file: read request failed", logger.Error(err))
		}
		return
	}
	if env.Kind != KindRequest || env.Request == nil {
		if r.log != nil {
			r.log.Warn("file: expected request frame", logger.String("kind", string(env.Kind)))
		}
		return
	}

	metrics.TransfersStarted.WithLabelValues("responder").Inc()
	if err := r.serve(ctx, conn, *env.Request); err != nil {
		metrics.TransfersCompleted.WithLabelValues("failure").Inc()
		if r.log != nil {
			r.log.Warn("file: serve failed", logger.String("file_hash", env.Request.FileHash), logger.Error(err))
		}
		return
	}
	metrics.TransfersCompleted.WithLabelValues("success").Inc()
}

func (r *Responder) serve(ctx context.Context, conn io.ReadWriteCloser, req Request) error {
	rc, size, err := r.store.Open(req.FileHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return writeEnvelope(conn, Envelope{Kind: KindResponseHeader, Header: &ResponseHeader{Size: -1, ChunkSize: r.chunkSize}})
		}
		return err
	}
	defer rc.Close()

	offset := req.Offset
	if offset < 0 || offset > size {
		offset = 0 // restart from 0 rather than honor a nonsensical offset
	}
	if offset > 0 {
		if _, err := rc.Seek(offset, io.SeekStart); err != nil {
			return fmt.Errorf("seek to resume offset: %w", err)
		}
	}

	if err := writeEnvelope(conn, Envelope{Kind: KindResponseHeader, Header: &ResponseHeader{Size: size, ChunkSize: r.chunkSize}}); err != nil {
		return fmt.Errorf("write response header: %w", err)
	}

	buf := make([]byte, r.chunkSize)
	var index uint32
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, readErr := rc.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if err := writeEnvelope(conn, Envelope{Kind: KindChunk, Chunk: &Chunk{Index: index, Bytes: chunk}}); err != nil {
				return fmt.Errorf("write chunk %d: %w", index, err)
			}
			index++
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("read blob: %w", readErr)
		}
	}

	return writeEnvelope(conn, Envelope{Kind: KindEnd})
}
