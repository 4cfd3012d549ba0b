// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoaderOptions configures the configuration loader
type LoaderOptions struct {
	// ConfigDir is the directory containing config files (default: ./config)
	ConfigDir string
	// Environment overrides automatic environment detection
	Environment string
	// SkipEnvSubstitution disables environment variable substitution
	SkipEnvSubstitution bool
	// SkipValidation disables configuration validation
	SkipValidation bool
}

// DefaultLoaderOptions returns default loader options
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{
		ConfigDir:           "config",
		Environment:         "",
		SkipEnvSubstitution: false,
		SkipValidation:      false,
	}
}

// Load loads configuration with automatic environment detection. It first
// loads any .env file in the current directory (ignored if absent) so
// RCHAT_VAULT_PASSWORD-style secrets reach os.Getenv without a config file.
func Load(opts ...LoaderOptions) (*Config, error) {
	_ = godotenv.Load()

	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	env := options.Environment
	if env == "" {
		env = GetEnvironment()
	}

	envConfigPath := filepath.Join(options.ConfigDir, fmt.Sprintf("%s.toml", env))
	cfg, err := loadConfigFile(envConfigPath)
	if err != nil {
		defaultConfigPath := filepath.Join(options.ConfigDir, "default.toml")
		cfg, err = loadConfigFile(defaultConfigPath)
		if err != nil {
			configPath := filepath.Join(options.ConfigDir, "config.toml")
			cfg, err = loadConfigFile(configPath)
			if err != nil {
				cfg = &Config{}
				setDefaults(cfg)
			}
		}
	}

	if cfg.Environment == "" {
		cfg.Environment = env
	}

	if !options.SkipEnvSubstitution {
		SubstituteEnvVarsInConfig(cfg)
	}

	applyEnvironmentOverrides(cfg)

	if !options.SkipValidation {
		if errs := ValidateConfiguration(cfg); len(errs) > 0 {
			for _, e := range errs {
				if e.Level == "error" {
					return nil, fmt.Errorf("config: validation failed: %s - %s", e.Field, e.Message)
				}
			}
		}
	}

	return cfg, nil
}

// loadConfigFile loads a single config file (config.toml's content is YAML;
// the .toml suffix is for on-disk familiarity only, per LoadFromFile's
// format-tolerant parse).
func loadConfigFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config: file not found: %s", path)
	}
	return LoadFromFile(path)
}

// applyEnvironmentOverrides overrides config with environment variables,
// taking priority over both file contents and ${VAR} substitution.
func applyEnvironmentOverrides(cfg *Config) {
	if dir := os.Getenv("RCHAT_VAULT_DIR"); dir != "" && cfg.Vault != nil {
		cfg.Vault.Directory = dir
	}
	if path := os.Getenv("RCHAT_STORE_PATH"); path != "" && cfg.Store != nil {
		cfg.Store.Path = path
	}
	if root := os.Getenv("RCHAT_FILES_ROOT"); root != "" && cfg.Files != nil {
		cfg.Files.BlobRoot = root
	}
	if endpoint := os.Getenv("RCHAT_RENDEZVOUS_ENDPOINT"); endpoint != "" && cfg.Discovery != nil {
		cfg.Discovery.RendezvousEndpoint = endpoint
	}
	if network := os.Getenv("RCHAT_DID_NETWORK"); network != "" && cfg.DID != nil {
		cfg.DID.Network = network
	}
	if logLevel := os.Getenv("RCHAT_LOG_LEVEL"); logLevel != "" && cfg.Logging != nil {
		cfg.Logging.Level = logLevel
	}
	if logFormat := os.Getenv("RCHAT_LOG_FORMAT"); logFormat != "" && cfg.Logging != nil {
		cfg.Logging.Format = logFormat
	}
	if v := os.Getenv("RCHAT_METRICS_ENABLED"); v == "true" && cfg.Metrics != nil {
		cfg.Metrics.Enabled = true
	}
	if v := os.Getenv("RCHAT_METRICS_ENABLED"); v == "false" && cfg.Metrics != nil {
		cfg.Metrics.Enabled = false
	}
}

// ValidationIssue describes one configuration field that failed validation.
type ValidationIssue struct {
	Field   string
	Message string
	Level   string // "error" or "warning"
}

// ValidateConfiguration checks cfg for values that would prevent the node
// from starting or would silently misbehave. "error"-level issues should
// abort startup; "warning"-level issues are surfaced but not fatal.
func ValidateConfiguration(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Vault == nil || cfg.Vault.Directory == "" {
		issues = append(issues, ValidationIssue{"vault.directory", "vault directory is required", "error"})
	}
	if cfg.Store == nil || cfg.Store.Path == "" {
		issues = append(issues, ValidationIssue{"store.path", "store path is required", "error"})
	}
	if cfg.Files == nil || cfg.Files.BlobRoot == "" {
		issues = append(issues, ValidationIssue{"files.blob_root", "files blob root is required", "error"})
	}
	if cfg.DID != nil && cfg.DID.Network != "" {
		if err := cfg.DID.Validate(); err != nil {
			issues = append(issues, ValidationIssue{"did", err.Error(), "error"})
		}
	}
	if cfg.Metrics != nil && cfg.Health != nil && cfg.Metrics.Enabled && cfg.Health.Enabled && cfg.Metrics.Port == cfg.Health.Port {
		issues = append(issues, ValidationIssue{"metrics.port", "metrics and health ports must differ", "warning"})
	}

	return issues
}

// LoadForEnvironment loads configuration for a specific environment
func LoadForEnvironment(environment string) (*Config, error) {
	return Load(LoaderOptions{
		ConfigDir:   "config",
		Environment: environment,
	})
}

// MustLoad loads configuration or panics on error
func MustLoad(opts ...LoaderOptions) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}
