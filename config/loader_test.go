package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadFallsBackToDefaultsWithNoConfigDir(t *testing.T) {
	cfg, err := Load(LoaderOptions{ConfigDir: filepath.Join(t.TempDir(), "missing")})
	require.NoError(t, err)
	require.Equal(t, ".rchat/vault", cfg.Vault.Directory)
}

func TestLoadPrefersEnvironmentSpecificFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "staging.toml"), []byte("vault:\n  directory: /staging/vault\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.toml"), []byte("vault:\n  directory: /default/vault\n"), 0o600))

	cfg, err := Load(LoaderOptions{ConfigDir: dir, Environment: "staging"})
	require.NoError(t, err)
	require.Equal(t, "/staging/vault", cfg.Vault.Directory)
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	t.Setenv("RCHAT_VAULT_DIR", "/override/vault")
	cfg, err := Load(LoaderOptions{ConfigDir: filepath.Join(t.TempDir(), "missing")})
	require.NoError(t, err)
	require.Equal(t, "/override/vault", cfg.Vault.Directory)
}

func TestLoadFailsValidationOnIncompleteDIDAnchor(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.toml"), []byte("did:\n  network: ethereum\n"), 0o600))

	_, err := Load(LoaderOptions{ConfigDir: dir})
	require.Error(t, err)
}

func TestLoadSkipValidationBypassesDIDCheck(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.toml"), []byte("did:\n  network: ethereum\n"), 0o600))

	cfg, err := Load(LoaderOptions{ConfigDir: dir, SkipValidation: true})
	require.NoError(t, err)
	require.Equal(t, "ethereum", cfg.DID.Network)
}

func TestValidateConfigurationFlagsMissingRequiredPaths(t *testing.T) {
	issues := ValidateConfiguration(&Config{})
	require.NotEmpty(t, issues)
	var fields []string
	for _, i := range issues {
		fields = append(fields, i.Field)
	}
	require.Contains(t, fields, "vault.directory")
	require.Contains(t, fields, "store.path")
	require.Contains(t, fields, "files.blob_root")
}

func TestValidateConfigurationPassesOnDefaults(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)
	issues := ValidateConfiguration(cfg)
	for _, i := range issues {
		require.NotEqual(t, "error", i.Level, i.Message)
	}
}

func TestMustLoadPanicsOnValidationFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.toml"), []byte("did:\n  network: solana\n"), 0o600))

	require.Panics(t, func() {
		MustLoad(LoaderOptions{ConfigDir: dir})
	})
}
