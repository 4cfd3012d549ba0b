package config

import (
	"fmt"
	"os"
	"strings"
)

// DIDNetworkPresets gives sane connection defaults per DID anchor network,
// overridable by DIDConfig fields or environment variables.
var DIDNetworkPresets = map[string]*DIDConfig{
	"ethereum": {
		Network:    "ethereum",
		NetworkRPC: "http://localhost:8545",
	},
	"solana": {
		Network:    "solana",
		NetworkRPC: "https://api.mainnet-beta.solana.com",
	},
}

// LoadDIDConfig resolves a DIDConfig for network, applying the preset for
// that network and then RCHAT_DID_* environment overrides. network == ""
// returns a disabled config (no on-chain anchor checked).
func LoadDIDConfig(network string) (*DIDConfig, error) {
	network = strings.ToLower(network)
	if network == "" {
		return &DIDConfig{}, nil
	}

	preset, ok := DIDNetworkPresets[network]
	if !ok {
		return nil, fmt.Errorf("config: unknown DID network %q", network)
	}
	cfg := *preset

	if rpc := os.Getenv("RCHAT_DID_RPC"); rpc != "" {
		cfg.NetworkRPC = rpc
	}
	if addr := os.Getenv("RCHAT_DID_REGISTRY"); addr != "" {
		cfg.RegistryAddress = addr
	}
	if programID := os.Getenv("RCHAT_DID_PROGRAM_ID"); programID != "" {
		cfg.ProgramID = programID
	}
	if relayKey := os.Getenv("RCHAT_DID_RELAY_KEY"); relayKey != "" {
		cfg.RelayPrivateKey = relayKey
	}

	return &cfg, nil
}

// Validate checks that a non-disabled DID anchor config is complete enough
// to dial: ethereum needs a registry contract address, solana needs a
// program account id.
func (c *DIDConfig) Validate() error {
	switch c.Network {
	case "":
		return nil
	case "ethereum":
		if c.RegistryAddress == "" {
			return fmt.Errorf("config: ethereum DID anchor requires registry_address")
		}
	case "solana":
		if c.ProgramID == "" {
			return fmt.Errorf("config: solana DID anchor requires program_id")
		}
	default:
		return fmt.Errorf("config: unknown DID network %q", c.Network)
	}
	if c.NetworkRPC == "" {
		return fmt.Errorf("config: DID anchor network %q requires network_rpc", c.Network)
	}
	return nil
}
