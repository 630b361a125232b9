// Package reward implements the block subsidy halving schedule.
package reward

import "github.com/astram-chain/astram/pkg/types"

// InitialSubsidyUnits is the coinbase reward at height 0: 8 coins at 18
// decimals (spec.md §4.9, §9 Open Questions — 18-decimal units fixed).
const InitialSubsidyUnits = 8_000_000_000_000_000_000

// HalvingInterval is the number of blocks between successive halvings.
const HalvingInterval = 210_000

// MaxHalvings is the shift count at which the subsidy reaches zero and
// stays there forever after.
const MaxHalvings = 33

// Reward returns the block subsidy at height: InitialSubsidyUnits right-shifted
// once per HalvingInterval blocks, floored at zero once the shift count
// reaches MaxHalvings.
func Reward(height uint64) types.Amount {
	halvings := height / HalvingInterval
	if halvings >= MaxHalvings {
		return types.ZeroAmount()
	}
	initial := types.NewAmount(InitialSubsidyUnits)
	return initial.Rsh(uint(halvings))
}
