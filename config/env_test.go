package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubstituteEnvVarsUsesEnvValue(t *testing.T) {
	t.Setenv("RCHAT_TEST_VAR", "resolved")
	require.Equal(t, "resolved", SubstituteEnvVars("${RCHAT_TEST_VAR}"))
}

func TestSubstituteEnvVarsFallsBackToDefault(t *testing.T) {
	require.Equal(t, "fallback", SubstituteEnvVars("${RCHAT_UNSET_VAR:fallback}"))
}

func TestSubstituteEnvVarsNoMatchIsUnchanged(t *testing.T) {
	require.Equal(t, "plain string", SubstituteEnvVars("plain string"))
}

func TestSubstituteEnvVarsInConfigWalksNestedFields(t *testing.T) {
	t.Setenv("RCHAT_TEST_DIR", "/resolved/vault")
	cfg := &Config{Vault: &VaultConfig{Directory: "${RCHAT_TEST_DIR}"}}
	SubstituteEnvVarsInConfig(cfg)
	require.Equal(t, "/resolved/vault", cfg.Vault.Directory)
}

func TestSubstituteEnvVarsInConfigNilIsNoop(t *testing.T) {
	SubstituteEnvVarsInConfig(nil) // must not panic
}

func TestGetEnvironmentDefaultsToDevelopment(t *testing.T) {
	require.Equal(t, "development", GetEnvironment())
}

func TestGetEnvironmentReadsRchatEnv(t *testing.T) {
	t.Setenv("RCHAT_ENV", "Production")
	require.Equal(t, "production", GetEnvironment())
}

func TestIsProductionAndIsDevelopment(t *testing.T) {
	t.Setenv("RCHAT_ENV", "production")
	require.True(t, IsProduction())
	require.False(t, IsDevelopment())

	t.Setenv("RCHAT_ENV", "local")
	require.False(t, IsProduction())
	require.True(t, IsDevelopment())
}
