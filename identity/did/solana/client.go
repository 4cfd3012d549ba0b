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

// Package solana resolves and publishes handle->PeerID bindings against a
// Solana program account, for use as an identity.did.Anchor.
package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/rchat-io/rchat-node/config"
	"github.com/rchat-io/rchat-node/identity"
	"github.com/rchat-io/rchat-node/identity/did"
)

// bindingAccount is the on-chain layout a handle's PDA decodes to.
type bindingAccount struct {
	PeerID    []byte `json:"peer_id"`
	UpdatedAt int64  `json:"updated_at"`
	Exists    bool   `json:"exists"`
}

// Client implements did.Anchor against a deployed binding-registry program.
type Client struct {
	rpcClient *rpc.Client
	programID solana.PublicKey
	feePayer  solana.PrivateKey // zero value when RelayPrivateKey is unset; Publish then fails
}

// New dials cfg.NetworkRPC and targets the program at cfg.ProgramID.
// Registered with identity/did via internal/didinit to break the import
// cycle this package would otherwise form with it.
func New(cfg *config.DIDConfig) (did.Anchor, error) {
	programID, err := solana.PublicKeyFromBase58(cfg.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("did/solana: invalid program id: %w", err)
	}

	var feePayer solana.PrivateKey
	if cfg.RelayPrivateKey != "" {
		feePayer, err = solana.PrivateKeyFromBase58(cfg.RelayPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("did/solana: invalid relay private key: %w", err)
		}
	}

	return &Client{
		rpcClient: rpc.New(cfg.NetworkRPC),
		programID: programID,
		feePayer:  feePayer,
	}, nil
}

func (c *Client) bindingPDA(handleHash [32]byte) (solana.PublicKey, error) {
	pda, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("binding"), handleHash[:]},
		c.programID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("did/solana: derive binding pda: %w", err)
	}
	return pda, nil
}

// Lookup fetches and decodes the handle's binding PDA.
func (c *Client) Lookup(ctx context.Context, handle string) (*did.HandleBinding, error) {
	handleHash := did.HashHandle(handle)
	pda, err := c.bindingPDA(handleHash)
	if err != nil {
		return nil, err
	}

	info, err := c.rpcClient.GetAccountInfo(ctx, pda)
	if err != nil {
		return nil, fmt.Errorf("did/solana: get account info: %w", err)
	}
	if info == nil || info.Value == nil {
		return nil, did.ErrHandleNotFound
	}

	var account bindingAccount
	if err := json.Unmarshal(info.Value.Data.GetBinary(), &account); err != nil {
		return nil, fmt.Errorf("did/solana: decode binding account: %w", err)
	}
	if !account.Exists {
		return nil, did.ErrHandleNotFound
	}

	return &did.HandleBinding{
		HandleHash: handleHash,
		PeerID:     identity.PeerID(account.PeerID),
		UpdatedAt:  time.Unix(account.UpdatedAt, 0),
	}, nil
}

// Publish signs {handle_hash, peer_id} with signer and submits a transaction
// writing the handle's binding PDA. Serialization here is JSON rather than
// the program's real Borsh layout, matching the placeholder (de)serializeInstruction
// helpers the on-chain program itself still needs: wiring against a real
// deployed program is future work once one exists.
func (c *Client) Publish(ctx context.Context, handle string, peerID identity.PeerID, signer did.AnchorSigner) (string, error) {
	if len(c.feePayer) == 0 {
		return "", fmt.Errorf("did/solana: no relay private key configured for publishing")
	}

	handleHash := did.HashHandle(handle)
	pda, err := c.bindingPDA(handleHash)
	if err != nil {
		return "", err
	}
	peerIDBytes := []byte(peerID.String())

	message := append(append([]byte{}, handleHash[:]...), peerIDBytes...)
	signature, err := signer.Sign(message)
	if err != nil {
		return "", fmt.Errorf("did/solana: sign binding: %w", err)
	}

	instructionData, err := json.Marshal(struct {
		HandleHash [32]byte
		PeerID     []byte
		Signature  []byte
	}{HandleHash: handleHash, PeerID: peerIDBytes, Signature: signature})
	if err != nil {
		return "", fmt.Errorf("did/solana: encode instruction: %w", err)
	}

	recent, err := c.rpcClient.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return "", fmt.Errorf("did/solana: get recent blockhash: %w", err)
	}

	instruction := solana.NewInstruction(
		c.programID,
		solana.AccountMetaSlice{
			{PublicKey: pda, IsWritable: true, IsSigner: false},
			{PublicKey: c.feePayer.PublicKey(), IsWritable: true, IsSigner: true},
			{PublicKey: solana.SystemProgramID, IsWritable: false, IsSigner: false},
		},
		instructionData,
	)

	tx, err := solana.NewTransaction(
		[]solana.Instruction{instruction},
		recent.Value.Blockhash,
		solana.TransactionPayer(c.feePayer.PublicKey()),
	)
	if err != nil {
		return "", fmt.Errorf("did/solana: build transaction: %w", err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(c.feePayer.PublicKey()) {
			return &c.feePayer
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("did/solana: sign transaction: %w", err)
	}

	sig, err := c.rpcClient.SendTransaction(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("did/solana: send transaction: %w", err)
	}
	return sig.String(), nil
}

// Ping reports whether the RPC endpoint is reachable, for
// health.DIDAnchorHealthCheck.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.rpcClient.GetHealth(ctx); err != nil {
		return fmt.Errorf("did/solana: ping: %w", err)
	}
	return nil
}
