package config

import "fmt"

// Validate checks runtime node config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.Mining.Enabled && cfg.Mining.Threads <= 0 {
		return fmt.Errorf("mining.threads must be positive when mining is enabled")
	}
	if cfg.Mining.Enabled && cfg.Mining.Coinbase == "" {
		return fmt.Errorf("mining.coinbase is required when mining is enabled")
	}
	return nil
}
