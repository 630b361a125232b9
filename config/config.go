// Package config handles application configuration.
//
// Configuration is split into two categories:
//   - Protocol rules: Defined in genesis, immutable, must match across all nodes
//   - Node settings: Runtime configuration, can vary per node
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// =============================================================================
// Node Configuration (runtime, per-node settings)
// =============================================================================

// Config holds node-specific runtime configuration.
// These settings can vary between nodes without breaking consensus.
// The node core has no built-in peer or RPC transport (see spec.md §6);
// those are external collaborators that embed this module, so Config
// carries nothing for them.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Mining/Validation (operational, not consensus rules)
	Mining MiningConfig

	// Logging
	Log LogConfig
}

// MiningConfig holds block production settings.
type MiningConfig struct {
	Enabled  bool   `conf:"mining.enabled"`
	Coinbase string `conf:"mining.coinbase"` // address credited with block rewards
	Threads  int    `conf:"mining.threads"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.astram
//	macOS:   ~/Library/Application Support/Astram
//	Windows: %APPDATA%\Astram
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".astram"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Astram")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Astram")
		}
		return filepath.Join(home, "AppData", "Roaming", "Astram")
	default:
		return filepath.Join(home, ".astram")
	}
}

// ChainDataDir returns the chain-specific data directory.
func (c *Config) ChainDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// LedgerDir returns the ledger database directory.
func (c *Config) LedgerDir() string {
	return filepath.Join(c.ChainDataDir(), "ledger")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "astram.conf")
}
