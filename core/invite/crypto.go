package invite

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// inviteKeyInfo is the HKDF info string binding a derived key to this
// protocol and version.
const inviteKeyInfo = "rchat-invite-v1"

// GenerateInvitePassword returns a fresh PasswordLength-character
// high-entropy code from libp2p's own base58btc alphabet (no ambiguous
// glyphs like 0/O or l/I), comfortably exceeding 70 bits of entropy.
func GenerateInvitePassword() (string, error) {
	var password string
	for len(password) < PasswordLength {
		raw := make([]byte, PasswordLength)
		if _, err := rand.Read(raw); err != nil {
			return "", fmt.Errorf("invite: generate password: %w", err)
		}
		password += base58.Encode(raw)
	}
	return password[:PasswordLength], nil
}

func hashPassword(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	return sum[:]
}

// deriveInviteKey turns the invite password into a ChaCha20-Poly1305 key,
// never transmitted or persisted itself — only the AEAD-sealed offer is.
func deriveInviteKey(password string) ([]byte, error) {
	h := hkdf.New(sha256.New, []byte(password), nil, []byte(inviteKeyInfo))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, fmt.Errorf("invite: derive key: %w", err)
	}
	return key, nil
}

func sealWithPassword(password string, plaintext []byte) ([]byte, error) {
	key, err := deriveInviteKey(password)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("invite: init aead: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("invite: generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, sealed...), nil
}

func openWithPassword(password string, sealed []byte) ([]byte, error) {
	key, err := deriveInviteKey(password)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("invite: init aead: %w", err)
	}

	if len(sealed) < aead.NonceSize() {
		return nil, ErrInviteMismatch
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInviteMismatch
	}
	return plaintext, nil
}
