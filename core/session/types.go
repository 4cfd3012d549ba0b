package session

import "time"

// State is the lifecycle stage of a Session, per the handshaking/established/closed model.
type State string

const (
	StateHandshaking State = "handshaking"
	StateEstablished State = "established"
	StateClosed      State = "closed"
)

// Session represents an active, in-memory cryptographic session with one peer.
// Sessions are never persisted: on restart, peers must re-handshake.
type Session interface {
	GetID() string
	PeerID() string
	GetCreatedAt() time.Time
	GetLastUsedAt() time.Time
	State() State

	IsExpired() bool
	UpdateLastUsed()
	Close() error

	// Encrypt/Decrypt operate on a single AEAD frame (nonce || ciphertext).
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(data []byte) ([]byte, error)
	EncryptAndSign(plaintext []byte) ([]byte, error)
	DecryptAndVerify(ciphertext []byte) ([]byte, error)

	// NextTxSeq returns the next outgoing sequence number, incrementing the counter.
	NextTxSeq() uint64
	// ObserveRxSeq validates an inbound sequence number against the replay window,
	// returning ErrReplay if seq is not greater than the last observed value.
	ObserveRxSeq(seq uint64) error

	GetMessageCount() int
	GetConfig() Config
}

// Config defines session policies and limits.
type Config struct {
	MaxAge      time.Duration `json:"maxAge"`      // absolute expiration
	IdleTimeout time.Duration `json:"idleTimeout"`  // idle expiration
	MaxMessages int           `json:"maxMessages"` // message count limit
}

// DefaultConfig mirrors the Session Manager's default policy.
var DefaultConfig = Config{
	MaxAge:      24 * time.Hour,
	IdleTimeout: 30 * time.Minute,
	MaxMessages: 0, // unbounded
}

// Stats reports aggregate session manager state.
type Stats struct {
	TotalSessions   int `json:"totalSessions"`
	ActiveSessions  int `json:"activeSessions"`
	ExpiredSessions int `json:"expiredSessions"`
}
