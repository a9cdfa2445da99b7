// Package config loads server configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	// -- Chain access --

	RPCEndpoint string `env:"ORE_RPC_ENDPOINT" envDefault:"https://api.mainnet-beta.solana.com"`

	// -- Keypair --

	// Path the active miner keypair is persisted at (base58, one line).
	KeypairPath string `env:"ORE_KEYPAIR_PATH" envDefault:".ore/id.key"`

	// -- HTTP --

	ListenAddr string `env:"ORE_LISTEN_ADDR" envDefault:":3000"`

	// -- Logging --

	LogLevel string `env:"ORE_LOG_LEVEL" envDefault:"info"`
}

type ConfigOptions struct {
	EnvFilePath string
}

// ParseConfig parses environment variables to a valid Config.
func ParseConfig(opt *ConfigOptions) (*Config, error) {
	if opt != nil && opt.EnvFilePath != "" {
		// Load variables from a file, do not override existing ones.
		if err := godotenv.Load(opt.EnvFilePath); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", opt.EnvFilePath, err)
		}
	}

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
