// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later


package keys

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"time"

	sagecrypto "github.com/rchat-io/rchat-node/crypto"
	"github.com/rchat-io/rchat-node/identity"
	"github.com/rchat-io/rchat-node/internal/metrics"
)

// ed25519KeyPair implements the KeyPair interface for Ed25519 keys
type ed25519KeyPair struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	id         string
}

// GenerateEd25519KeyPair generates a new Ed25519 key pair. ID() on the
// returned pair is the node's canonical PeerID, derived from the public key.
func GenerateEd25519KeyPair() (sagecrypto.KeyPair, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	peerID, err := identity.FromEd25519PublicKey(publicKey)
	if err != nil {
		return nil, err
	}

	return &ed25519KeyPair{
		privateKey: privateKey,
		publicKey:  publicKey,
		id:         peerID.String(),
	}, nil
}

// NewEd25519KeyPairFromPrivateKey wraps an existing Ed25519 private key
// (e.g. one just decrypted from the vault) as a KeyPair.
func NewEd25519KeyPairFromPrivateKey(priv ed25519.PrivateKey) (sagecrypto.KeyPair, error) {
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, sagecrypto.ErrInvalidKeyType
	}

	peerID, err := identity.FromEd25519PublicKey(pub)
	if err != nil {
		return nil, err
	}

	return &ed25519KeyPair{
		privateKey: priv,
		publicKey:  pub,
		id:         peerID.String(),
	}, nil
}

// PublicKey returns the public key
func (kp *ed25519KeyPair) PublicKey() crypto.PublicKey {
	return kp.publicKey
}

// PrivateKey returns the private key
func (kp *ed25519KeyPair) PrivateKey() crypto.PrivateKey {
	return kp.privateKey
}

// Type returns the key type
func (kp *ed25519KeyPair) Type() sagecrypto.KeyType {
	return sagecrypto.KeyTypeEd25519
}

// Sign signs the given message
func (kp *ed25519KeyPair) Sign(message []byte) ([]byte, error) {
	start := time.Now()
	signature := ed25519.Sign(kp.privateKey, message)
	metrics.CryptoOperations.WithLabelValues("sign", "ed25519").Inc()
	metrics.CryptoOperationDuration.WithLabelValues("sign", "ed25519").Observe(time.Since(start).Seconds())
	return signature, nil
}

// Verify verifies the signature
func (kp *ed25519KeyPair) Verify(message, signature []byte) error {
	start := time.Now()
	metrics.CryptoOperations.WithLabelValues("verify", "ed25519").Inc()
	defer func() {
		metrics.CryptoOperationDuration.WithLabelValues("verify", "ed25519").Observe(time.Since(start).Seconds())
	}()
	if !ed25519.Verify(kp.publicKey, message, signature) {
		metrics.CryptoErrors.WithLabelValues("verify").Inc()
		return sagecrypto.ErrInvalidSignature
	}
	return nil
}

// ID returns a unique identifier for this key pair
func (kp *ed25519KeyPair) ID() string {
	return kp.id
}