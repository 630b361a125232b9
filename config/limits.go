package config

// Block and transaction size limits (consensus-critical). Unlike the
// rest of this package these are not per-node configuration: every
// node must agree on them or it will reject blocks the rest of the
// network accepts.
const (
	MaxBlockSize  = 2_000_000 // 2 MB max block size (header + full encoding of every tx)
	MaxBlockTxs   = 500       // Max transactions per block (including coinbase)
	MaxTxInputs   = 2500      // Max inputs per transaction
	MaxTxOutputs  = 2500      // Max outputs per transaction
	MaxScriptData = 65_536    // 64 KB max script data per output
)

// Decimals is the number of base-unit digits per whole coin (18-decimal
// fixed per spec.md's Open Questions resolution).
const Decimals = 18

// Coin is the number of base units in one whole coin.
const Coin = 1_000_000_000_000_000_000
