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


// Package crypto provides the node's key-pair types and the interfaces
// (KeyPair, KeyExporter, KeyImporter, KeyStorage) its concrete
// implementations satisfy.
package crypto

// This file is intentionally minimal to avoid circular dependencies.
// The actual implementations are in the subpackages:
// - crypto/keys: key pair generation (Ed25519, Secp256k1, X25519, RSA)
// - crypto/formats: JWK/PEM export and import
// - crypto/vault: passphrase-encrypted at-rest storage
// - identity/did: optional blockchain DID anchoring
//
// crypto/memory_storage.go implements KeyStorage directly; the
// generator/exporter/importer constructors instead go through the
// function-variable indirection in wrappers.go, wired at process start by
// internal/cryptoinit.