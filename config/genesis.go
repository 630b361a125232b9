package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/astram-chain/astram/pkg/crypto"
	"github.com/astram-chain/astram/pkg/types"
)

// Genesis holds the genesis block configuration and protocol rules.
// This is immutable after chain launch - changes require a hard fork.
// The reward halving schedule itself is consensus-fixed (see package
// reward) and not configurable here; genesis only supplies identity,
// the initial allocation, and the starting PoW difficulty.
type Genesis struct {
	// Chain identity
	ChainID   string `json:"chain_id"`
	ChainName string `json:"chain_name"`
	Symbol    string `json:"symbol,omitempty"`

	// Genesis block
	Timestamp int64  `json:"timestamp"`
	ExtraData string `json:"extra_data,omitempty"`

	// Initial allocation: bech32 or hex address -> decimal base-unit amount.
	Alloc map[string]string `json:"alloc"`

	// InitialDifficulty is the compact difficulty field (spec.md §4.5)
	// the genesis header and the first epoch's blocks target.
	InitialDifficulty uint32 `json:"initial_difficulty"`
}

// =============================================================================
// Pre-defined genesis configurations
// =============================================================================

// MainnetGenesis returns the mainnet genesis configuration.
func MainnetGenesis() *Genesis {
	return &Genesis{
		ChainID:           "astram-mainnet-1",
		ChainName:         "Astram Mainnet",
		Symbol:            "ASTR",
		Timestamp:         1770734103, // 2026-02-10
		ExtraData:         "Astram Genesis",
		InitialDifficulty: 0x1e000000,
		Alloc:             map[string]string{},
	}
}

// TestnetGenesis returns the testnet genesis configuration.
func TestnetGenesis() *Genesis {
	g := MainnetGenesis()
	g.ChainID = "astram-testnet-1"
	g.ChainName = "Astram Testnet"
	g.ExtraData = "Astram Testnet Genesis"
	g.InitialDifficulty = 0x1c000000
	return g
}

// GenesisFor returns the genesis config for the given network.
func GenesisFor(network NetworkType) *Genesis {
	switch network {
	case Testnet:
		return TestnetGenesis()
	default:
		return MainnetGenesis()
	}
}

// =============================================================================
// Genesis file I/O
// =============================================================================

// LoadGenesis loads genesis configuration from a file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading genesis file: %w", err)
	}

	var g Genesis
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing genesis file: %w", err)
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}

	return &g, nil
}

// Save writes the genesis configuration to a file.
func (g *Genesis) Save(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding genesis: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing genesis file: %w", err)
	}

	return nil
}

// Validate checks that the genesis configuration is well formed:
// addresses parse and allocation amounts are valid nonnegative 128-bit
// decimals.
func (g *Genesis) Validate() error {
	if g.ChainID == "" {
		return fmt.Errorf("chain_id is required")
	}
	if g.InitialDifficulty == 0 {
		return fmt.Errorf("initial_difficulty must be nonzero")
	}

	addrs := make([]string, 0, len(g.Alloc))
	for addrStr, amountStr := range g.Alloc {
		if _, err := types.ParseAddress(addrStr); err != nil {
			return fmt.Errorf("invalid alloc address %q: %w", addrStr, err)
		}
		var amt types.Amount
		if err := json.Unmarshal([]byte(`"`+amountStr+`"`), &amt); err != nil {
			return fmt.Errorf("invalid alloc amount for %q: %w", addrStr, err)
		}
		addrs = append(addrs, addrStr)
	}
	sort.Strings(addrs) // deterministic iteration is the caller's job; this just exercises parsing

	return nil
}

// Hash returns a BLAKE3 hash of the genesis configuration, used to
// identify the chain and detect genesis mismatches between nodes.
func (g *Genesis) Hash() (types.Hash, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return types.Hash{}, err
	}
	return crypto.Blake3(data), nil
}
