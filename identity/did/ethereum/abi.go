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

// handleRegistryABI is the ABI of the minimal on-chain binding registry:
// getBinding resolves a handle hash to its current peer id and the block
// timestamp it was last published at; publishBinding lets the owner of a
// handle (proven by signature, checked by the contract) set it.
const handleRegistryABI = `[
	{
		"type": "function",
		"name": "getBinding",
		"stateMutability": "view",
		"inputs": [{"name": "handleHash", "type": "bytes32"}],
		"outputs": [
			{"name": "peerId", "type": "bytes"},
			{"name": "updatedAt", "type": "uint64"},
			{"name": "exists", "type": "bool"}
		]
	},
	{
		"type": "function",
		"name": "publishBinding",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "handleHash", "type": "bytes32"},
			{"name": "peerId", "type": "bytes"},
			{"name": "signature", "type": "bytes"}
		],
		"outputs": []
	}
]`
