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

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the node's full configuration surface, loaded from a
// config.toml-equivalent YAML document.
type Config struct {
	Environment string           `yaml:"environment" json:"environment"`
	Vault       *VaultConfig     `yaml:"vault" json:"vault"`
	Store       *StoreConfig     `yaml:"store" json:"store"`
	Files       *FilesConfig     `yaml:"files" json:"files"`
	Discovery   *DiscoveryConfig `yaml:"discovery" json:"discovery"`
	DID         *DIDConfig       `yaml:"did" json:"did"`
	Theme       *ThemeConfig     `yaml:"theme" json:"theme"`
	Logging     *LoggingConfig   `yaml:"logging" json:"logging"`
	Metrics     *MetricsConfig   `yaml:"metrics" json:"metrics"`
	Health      *HealthConfig    `yaml:"health" json:"health"`
}

// VaultConfig locates the encrypted identity vault on disk.
type VaultConfig struct {
	Directory     string `yaml:"directory" json:"directory"`
	PassphraseEnv string `yaml:"passphrase_env" json:"passphrase_env"`
}

// StoreConfig locates the embedded SQLite database.
type StoreConfig struct {
	Path string `yaml:"path" json:"path"`
}

// FilesConfig locates the content-addressed blob root.
type FilesConfig struct {
	BlobRoot string `yaml:"blob_root" json:"blob_root"`
}

// DiscoveryConfig toggles and points at the two peer-discovery paths.
type DiscoveryConfig struct {
	MDNSEnabled        bool   `yaml:"mdns_enabled" json:"mdns_enabled"`
	RendezvousEnabled  bool   `yaml:"rendezvous_enabled" json:"rendezvous_enabled"`
	RendezvousEndpoint string `yaml:"rendezvous_endpoint" json:"rendezvous_endpoint"`
	OnlineByDefault    bool   `yaml:"online_by_default" json:"online_by_default"`
}

// DIDConfig selects the optional on-chain DID anchor used to cross-check
// handle->PeerID bindings during invite redemption. Network "" disables
// the anchor and falls back to rendezvous-only verification.
type DIDConfig struct {
	Network         string        `yaml:"network" json:"network"` // "", "ethereum", "solana"
	NetworkRPC      string        `yaml:"network_rpc" json:"network_rpc"`
	RegistryAddress string        `yaml:"registry_address" json:"registry_address"` // ethereum contract
	ProgramID       string        `yaml:"program_id" json:"program_id"`             // solana program account
	CacheSize       int           `yaml:"cache_size" json:"cache_size"`
	CacheTTL        time.Duration `yaml:"cache_ttl" json:"cache_ttl"`

	// RelayPrivateKey pays gas/fees for Publish calls: a hex-encoded ECDSA
	// key for ethereum, a base58-encoded keypair for solana. It is distinct
	// from the node's own IdentityKey, which instead signs the binding
	// payload itself to prove handle ownership. Empty disables Publish;
	// Lookup and Ping never need it.
	RelayPrivateKey string `yaml:"relay_private_key" json:"-"`
}

// ThemeConfig names the UI theme document applied on first run.
type ThemeConfig struct {
	Default string `yaml:"default" json:"default"`
}

// LoggingConfig configures internal/logger's output.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// MetricsConfig configures the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// HealthConfig configures the operational health-check endpoint.
type HealthConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Port    int      `yaml:"port" json:"port"`
	Path    string   `yaml:"path" json:"path"`
	Checks  []string `yaml:"checks" json:"checks"`
}

// LoadFromFile loads configuration from path, trying YAML then JSON.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse file (tried YAML and JSON): %w", err)
		}
	}

	setDefaults(cfg)
	return cfg, nil
}

// SaveToFile writes cfg to path, choosing JSON for a .json extension and
// YAML otherwise.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error

	if len(path) > 5 && path[len(path)-5:] == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write file: %w", err)
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Vault == nil {
		cfg.Vault = &VaultConfig{}
	}
	if cfg.Vault.Directory == "" {
		cfg.Vault.Directory = ".rchat/vault"
	}
	if cfg.Vault.PassphraseEnv == "" {
		cfg.Vault.PassphraseEnv = "RCHAT_VAULT_PASSWORD"
	}

	if cfg.Store == nil {
		cfg.Store = &StoreConfig{}
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = ".rchat/store.db"
	}

	if cfg.Files == nil {
		cfg.Files = &FilesConfig{}
	}
	if cfg.Files.BlobRoot == "" {
		cfg.Files.BlobRoot = ".rchat/files"
	}

	if cfg.Discovery == nil {
		cfg.Discovery = &DiscoveryConfig{MDNSEnabled: true, OnlineByDefault: true}
	}

	if cfg.DID == nil {
		cfg.DID = &DIDConfig{}
	}
	if cfg.DID.Network != "" {
		if cfg.DID.CacheSize == 0 {
			cfg.DID.CacheSize = 100
		}
		if cfg.DID.CacheTTL == 0 {
			cfg.DID.CacheTTL = 5 * time.Minute
		}
	}

	if cfg.Theme == nil {
		cfg.Theme = &ThemeConfig{}
	}
	if cfg.Theme.Default == "" {
		cfg.Theme.Default = "system"
	}

	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{}
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Health == nil {
		cfg.Health = &HealthConfig{}
	}
	if cfg.Health.Port == 0 {
		cfg.Health.Port = 9091
	}
	if cfg.Health.Path == "" {
		cfg.Health.Path = "/healthz"
	}
}
