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

// Package vault provides passphrase-encrypted at-rest storage for raw key
// material: a per-item FileVault/MemoryVault pair, and on top of that the
// single-record node identity vault (setup/unlock/reset) described by the
// node's identity component.
package vault

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Errors returned by both vault implementations.
var (
	ErrInvalidPassphrase = errors.New("vault: invalid passphrase")
	ErrKeyNotFound       = errors.New("vault: key not found")
	ErrInvalidKeyID      = errors.New("vault: invalid key id")
)

const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // 64 MiB
	argonThreads = 1
	argonKeyLen  = chacha20poly1305.KeySize
	saltSize     = 16
)

// sealedRecord is the on-disk / in-memory encrypted representation of one
// stored key: enough to re-derive the KEK and authenticate the ciphertext.
type sealedRecord struct {
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

func seal(plaintext []byte, passphrase string) (*sealedRecord, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("vault: generate salt: %w", err)
	}

	kek := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, fmt.Errorf("vault: init aead: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("vault: generate nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, nil)
	return &sealedRecord{Salt: salt, Nonce: nonce, Ciphertext: ciphertext}, nil
}

func (r *sealedRecord) open(passphrase string) ([]byte, error) {
	kek := argon2.IDKey([]byte(passphrase), r.Salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, fmt.Errorf("vault: init aead: %w", err)
	}

	plaintext, err := aead.Open(nil, r.Nonce, r.Ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidPassphrase
	}
	return plaintext, nil
}

// FileVault persists each sealed record as its own JSON file on disk,
// permissioned 0600 by default.
type FileVault struct {
	mu  sync.Mutex
	dir string
}

// NewFileVault opens (creating if necessary) a FileVault rooted at dir.
func NewFileVault(dir string) (*FileVault, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("vault: create dir: %w", err)
	}
	return &FileVault{dir: dir}, nil
}

func (v *FileVault) path(keyID string) string {
	return filepath.Join(v.dir, keyID+".json")
}

// StoreEncrypted encrypts key under passphrase and writes it to keyID.json.
func (v *FileVault) StoreEncrypted(keyID string, key []byte, passphrase string) error {
	if keyID == "" {
		return ErrInvalidKeyID
	}

	record, err := seal(key, passphrase)
	if err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("vault: marshal record: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	return os.WriteFile(v.path(keyID), data, 0600)
}

// LoadDecrypted reads keyID.json and decrypts it under passphrase.
func (v *FileVault) LoadDecrypted(keyID, passphrase string) ([]byte, error) {
	if keyID == "" {
		return nil, ErrInvalidKeyID
	}

	v.mu.Lock()
	data, err := os.ReadFile(v.path(keyID))
	v.mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("vault: read record: %w", err)
	}

	var record sealedRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("vault: unmarshal record: %w", err)
	}
	return record.open(passphrase)
}

// SetPermissions changes the mode bits of the file backing keyID.
func (v *FileVault) SetPermissions(keyID string, mode os.FileMode) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, err := os.Stat(v.path(keyID)); err != nil {
		if os.IsNotExist(err) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("vault: stat record: %w", err)
	}
	return os.Chmod(v.path(keyID), mode)
}

// Delete removes the stored record for keyID.
func (v *FileVault) Delete(keyID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := os.Remove(v.path(keyID)); err != nil {
		if os.IsNotExist(err) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("vault: delete record: %w", err)
	}
	return nil
}

// Exists reports whether a record is stored for keyID.
func (v *FileVault) Exists(keyID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	_, err := os.Stat(v.path(keyID))
	return err == nil
}

// ListKeys returns the IDs of every record currently stored.
func (v *FileVault) ListKeys() []string {
	v.mu.Lock()
	defer v.mu.Unlock()

	entries, err := os.ReadDir(v.dir)
	if err != nil {
		return nil
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		keys = append(keys, name[:len(name)-len(".json")])
	}
	return keys
}

// MemoryVault is the in-process equivalent of FileVault, used in tests and
// for the ephemeral "run without persisting a vault" mode.
type MemoryVault struct {
	mu      sync.Mutex
	records map[string]*sealedRecord
}

// NewMemoryVault creates an empty MemoryVault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{records: make(map[string]*sealedRecord)}
}

// StoreEncrypted encrypts key under passphrase and keeps it in memory.
func (v *MemoryVault) StoreEncrypted(keyID string, key []byte, passphrase string) error {
	if keyID == "" {
		return ErrInvalidKeyID
	}

	record, err := seal(key, passphrase)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.records[keyID] = record
	return nil
}

// LoadDecrypted decrypts the record for keyID under passphrase.
func (v *MemoryVault) LoadDecrypted(keyID, passphrase string) ([]byte, error) {
	if keyID == "" {
		return nil, ErrInvalidKeyID
	}

	v.mu.Lock()
	record, ok := v.records[keyID]
	v.mu.Unlock()
	if !ok {
		return nil, ErrKeyNotFound
	}
	return record.open(passphrase)
}

// SetPermissions is a no-op for MemoryVault beyond existence checking, since
// there is no filesystem mode to change.
func (v *MemoryVault) SetPermissions(keyID string, _ os.FileMode) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.records[keyID]; !ok {
		return ErrKeyNotFound
	}
	return nil
}

// Delete removes the record for keyID.
func (v *MemoryVault) Delete(keyID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.records[keyID]; !ok {
		return ErrKeyNotFound
	}
	delete(v.records, keyID)
	return nil
}

// Exists reports whether a record is stored for keyID.
func (v *MemoryVault) Exists(keyID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	_, ok := v.records[keyID]
	return ok
}

// ListKeys returns the IDs of every record currently stored.
func (v *MemoryVault) ListKeys() []string {
	v.mu.Lock()
	defer v.mu.Unlock()

	keys := make([]string, 0, len(v.records))
	for id := range v.records {
		keys = append(keys, id)
	}
	return keys
}
