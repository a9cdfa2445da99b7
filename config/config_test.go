package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, "https://api.mainnet-beta.solana.com", cfg.RPCEndpoint)
	assert.Equal(t, ":3000", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParseConfigFromEnv(t *testing.T) {
	t.Setenv("ORE_RPC_ENDPOINT", "http://localhost:8899")
	t.Setenv("ORE_LISTEN_ADDR", ":9090")

	cfg, err := ParseConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8899", cfg.RPCEndpoint)
	assert.Equal(t, ":9090", cfg.ListenAddr)
}

func TestParseConfigMissingEnvFile(t *testing.T) {
	_, err := ParseConfig(&ConfigOptions{EnvFilePath: "does-not-exist.env"})
	require.Error(t, err)
}
