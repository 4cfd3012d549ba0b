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

package solana

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rchat-io/rchat-node/config"
)

func TestNewSucceedsWithoutDialing(t *testing.T) {
	// rpc.New never dials eagerly, so an unreachable endpoint is fine here;
	// only Lookup/Publish/Ping actually hit the network.
	anchor, err := New(&config.DIDConfig{
		Network:    "solana",
		NetworkRPC: "http://127.0.0.1:0",
		ProgramID:  "11111111111111111111111111111111",
	})
	require.NoError(t, err)
	assert.NotNil(t, anchor)
}

func TestNewFailsOnInvalidProgramID(t *testing.T) {
	_, err := New(&config.DIDConfig{
		Network:    "solana",
		NetworkRPC: "http://127.0.0.1:0",
		ProgramID:  "not-a-valid-base58-program-id!!",
	})
	assert.Error(t, err)
}

func TestNewFailsOnInvalidRelayKey(t *testing.T) {
	_, err := New(&config.DIDConfig{
		Network:         "solana",
		NetworkRPC:      "http://127.0.0.1:0",
		ProgramID:       "11111111111111111111111111111111",
		RelayPrivateKey: "not-a-valid-base58-key",
	})
	assert.Error(t, err)
}

func TestPublishFailsWithoutRelayKey(t *testing.T) {
	anchor, err := New(&config.DIDConfig{
		Network:    "solana",
		NetworkRPC: "http://127.0.0.1:0",
		ProgramID:  "11111111111111111111111111111111",
	})
	require.NoError(t, err)

	_, err = anchor.Publish(context.Background(), "alice", "", nil)
	assert.Error(t, err)
}
