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

// Package ethereum resolves and publishes handle->PeerID bindings against an
// Ethereum smart contract, for use as an identity.did.Anchor.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/rchat-io/rchat-node/config"
	"github.com/rchat-io/rchat-node/identity"
	"github.com/rchat-io/rchat-node/identity/did"
)

// Client implements did.Anchor against a deployed handle-binding registry
// contract.
type Client struct {
	eth             *ethclient.Client
	contract        *bind.BoundContract
	contractABI     abi.ABI
	contractAddress common.Address
	chainID         *big.Int
	relayKey        *ecdsa.PrivateKey // nil when RelayPrivateKey is unset; Publish then fails
}

// New dials cfg.NetworkRPC and binds to cfg.RegistryAddress. Registered with
// identity/did via internal/didinit so that package can build this Client
// without importing it directly (which would cycle, since this package
// imports identity/did for the Anchor/HandleBinding types).
func New(cfg *config.DIDConfig) (did.Anchor, error) {
	eth, err := ethclient.Dial(cfg.NetworkRPC)
	if err != nil {
		return nil, fmt.Errorf("did/ethereum: dial %s: %w", cfg.NetworkRPC, err)
	}

	chainID, err := eth.NetworkID(context.Background())
	if err != nil {
		return nil, fmt.Errorf("did/ethereum: fetch chain id: %w", err)
	}

	contractABI, err := abi.JSON(strings.NewReader(handleRegistryABI))
	if err != nil {
		return nil, fmt.Errorf("did/ethereum: parse abi: %w", err)
	}

	var relayKey *ecdsa.PrivateKey
	if cfg.RelayPrivateKey != "" {
		relayKey, err = crypto.HexToECDSA(cfg.RelayPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("did/ethereum: invalid relay private key: %w", err)
		}
	}

	address := common.HexToAddress(cfg.RegistryAddress)
	contract := bind.NewBoundContract(address, contractABI, eth, eth, eth)

	return &Client{
		eth:             eth,
		contract:        contract,
		contractABI:     contractABI,
		contractAddress: address,
		chainID:         chainID,
		relayKey:        relayKey,
	}, nil
}

// Lookup calls the registry's getBinding view function for handle's hash.
func (c *Client) Lookup(ctx context.Context, handle string) (*did.HandleBinding, error) {
	handleHash := did.HashHandle(handle)

	callData, err := c.contractABI.Pack("getBinding", handleHash)
	if err != nil {
		return nil, fmt.Errorf("did/ethereum: pack getBinding: %w", err)
	}

	output, err := c.eth.CallContract(ctx, ethereum.CallMsg{
		To:   &c.contractAddress,
		Data: callData,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("did/ethereum: call getBinding: %w", err)
	}

	var result struct {
		PeerId    []byte
		UpdatedAt uint64
		Exists    bool
	}
	if err := c.contractABI.UnpackIntoInterface(&result, "getBinding", output); err != nil {
		return nil, fmt.Errorf("did/ethereum: unpack getBinding: %w", err)
	}
	if !result.Exists {
		return nil, did.ErrHandleNotFound
	}

	return &did.HandleBinding{
		HandleHash: handleHash,
		PeerID:     identity.PeerID(result.PeerId),
		UpdatedAt:  time.Unix(int64(result.UpdatedAt), 0),
	}, nil
}

// Publish signs {handle_hash, peer_id} with signer and submits a
// publishBinding transaction. The contract itself is responsible for
// recovering and checking the signature against whatever ownership rule it
// enforces; this client only packages the call.
func (c *Client) Publish(ctx context.Context, handle string, peerID identity.PeerID, signer did.AnchorSigner) (string, error) {
	handleHash := did.HashHandle(handle)
	peerIDBytes := []byte(peerID.String())

	message := append(append([]byte{}, handleHash[:]...), peerIDBytes...)
	signature, err := signer.Sign(crypto.Keccak256(message))
	if err != nil {
		return "", fmt.Errorf("did/ethereum: sign binding: %w", err)
	}

	auth, err := c.transactOpts(ctx)
	if err != nil {
		return "", err
	}

	tx, err := c.contract.Transact(auth, "publishBinding", handleHash, peerIDBytes, signature)
	if err != nil {
		return "", fmt.Errorf("did/ethereum: publishBinding: %w", err)
	}
	return tx.Hash().Hex(), nil
}

// Ping reports whether the RPC endpoint is reachable, for
// health.DIDAnchorHealthCheck.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("did/ethereum: ping: %w", err)
	}
	return nil
}

// transactOpts builds the gas-paying transaction signer. The binding's own
// ownership proof is the AnchorSigner signature passed to Publish; this key
// only needs to be funded, never the node's identity key.
func (c *Client) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if c.relayKey == nil {
		return nil, fmt.Errorf("did/ethereum: no relay private key configured for publishing")
	}
	auth, err := bind.NewKeyedTransactorWithChainID(c.relayKey, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("did/ethereum: build transactor: %w", err)
	}
	auth.Context = ctx
	return auth, nil
}
