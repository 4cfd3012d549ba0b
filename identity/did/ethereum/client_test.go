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

package ethereum

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rchat-io/rchat-node/config"
)

func TestHandleRegistryABIParses(t *testing.T) {
	assert.Contains(t, handleRegistryABI, "getBinding")
	assert.Contains(t, handleRegistryABI, "publishBinding")
}

func TestNewFailsOnUnreachableEndpoint(t *testing.T) {
	_, err := New(&config.DIDConfig{
		Network:         "ethereum",
		NetworkRPC:      "http://127.0.0.1:0",
		RegistryAddress: "0x1234567890123456789012345678901234567890",
	})
	require.Error(t, err)
}

func TestNewFailsOnInvalidRelayKey(t *testing.T) {
	_, err := New(&config.DIDConfig{
		Network:         "ethereum",
		NetworkRPC:      "http://127.0.0.1:0",
		RegistryAddress: "0x1234567890123456789012345678901234567890",
		RelayPrivateKey: "not-hex",
	})
	require.Error(t, err)
}

func TestPublishFailsWithoutRelayKey(t *testing.T) {
	// transactOpts is exercised directly since New requires a live dial for
	// NetworkID, which isn't available in this test environment.
	c := &Client{}
	_, err := c.transactOpts(context.Background())
	assert.Error(t, err)
}
