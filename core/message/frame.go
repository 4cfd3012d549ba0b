// Package message implements the wire framing, ordering, and validation for
// the node's messaging protocol (component I): a length-prefixed envelope
// carrying a sequence/nonce/timestamp control header plus an AEAD-sealed
// payload, exchanged over the session established in core/session.
package message

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// ContentType enumerates the payload kinds a ChatMessage may carry.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentImage    ContentType = "image"
	ContentDocument ContentType = "document"
	ContentVideo    ContentType = "video"
	ContentSticker  ContentType = "sticker"
)

// MaxFrameSize bounds a single frame to guard against a misbehaving peer
// claiming an enormous length prefix.
const MaxFrameSize = 16 << 20 // 16 MiB

// ErrFrameTooLarge is returned when a claimed frame length exceeds MaxFrameSize.
var ErrFrameTooLarge = errors.New("message: frame exceeds maximum size")

// MessageControlHeader is the replay/order metadata carried by every frame.
type MessageControlHeader struct {
	Sequence  uint64    `json:"sequence"`
	Nonce     string    `json:"nonce"`
	Timestamp time.Time `json:"timestamp"`
}

func (h MessageControlHeader) GetSequence() uint64     { return h.Sequence }
func (h MessageControlHeader) GetNonce() string         { return h.Nonce }
func (h MessageControlHeader) GetTimestamp() time.Time { return h.Timestamp }

// ControlHeader is implemented by anything carrying replay/order metadata.
type ControlHeader interface {
	GetSequence() uint64
	GetNonce() string
	GetTimestamp() time.Time
}

// Envelope is the logical unit exchanged over /rchat/msg/1, before AEAD
// sealing. MsgID is assigned by the sender and is the unit of idempotent
// storage at both ends.
type Envelope struct {
	MessageControlHeader
	MsgID       ID          `json:"msg_id"`
	ContentType ContentType `json:"content_type"`
	Text        string      `json:"text,omitempty"`
	FileHash    string      `json:"file_hash,omitempty"`
	FileName    string      `json:"file_name,omitempty"`
}

// WriteFrame writes a length-prefixed frame: a 4-byte big-endian length
// followed by payload. payload is normally an AEAD-sealed Envelope.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame, rejecting claimed lengths above
// MaxFrameSize before allocating a buffer for them.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	return payload, nil
}
