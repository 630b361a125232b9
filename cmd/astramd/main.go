// Astram node daemon: the ledger engine and block/transaction
// validation pipeline of spec.md, wired into a runnable process. There
// is no peer transport, HTTP/JSON query server, or wallet here — those
// are external collaborators per spec.md §1; this binary only exercises
// the core directly, sealing and accepting its own blocks when run with
// --mine.
//
// Usage:
//
//	astramd [--mine --coinbase=<address>]   Run node
//	astramd --help                          Show help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/astram-chain/astram/config"
	"github.com/astram-chain/astram/internal/chain"
	"github.com/astram-chain/astram/internal/dag"
	"github.com/astram-chain/astram/internal/ledger"
	klog "github.com/astram-chain/astram/internal/log"
	"github.com/astram-chain/astram/internal/mempool"
	"github.com/astram-chain/astram/internal/miner"
	"github.com/astram-chain/astram/internal/pow"
	"github.com/astram-chain/astram/internal/storage"
	"github.com/astram-chain/astram/internal/validator"
	"github.com/astram-chain/astram/pkg/types"
)

func main() {
	// ── 1. Load config (defaults → file → flags) ────────────────────────
	cfg, flags, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// ── 1a. Set address HRP based on network ─────────────────────────────
	if cfg.Network == config.Testnet {
		types.SetAddressHRP(types.TestnetHRP)
	} else {
		types.SetAddressHRP(types.MainnetHRP)
	}

	// ── 2. Init logger ────────────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating logs dir: %v\n", err)
			os.Exit(1)
		}
		logFile = logsDir + "/astram.log"
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	logger := klog.WithComponent("node")

	genesis := config.GenesisFor(cfg.Network)
	logger.Info().
		Str("network", string(cfg.Network)).
		Str("chain_id", genesis.ChainID).
		Msg("starting astramd")

	// ── 3. Open storage and the ledger store ─────────────────────────────
	db, err := storage.NewBadger(cfg.LedgerDir())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open ledger database")
	}
	defer db.Close()

	store := ledger.Open(db)
	datasets := dag.NewManager()
	v := validator.New(store, datasets)
	pool := mempool.New(store, 0)

	ch, err := chain.New(store, v, pool)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize chain")
	}

	// ── 4. Install genesis if this is a fresh data directory ────────────
	if _, hasTip := ch.Tip(); !hasTip {
		logger.Info().Msg("no existing chain found, installing genesis block")
		if err := installGenesis(ch, genesis, datasets); err != nil {
			logger.Fatal().Err(err).Msg("failed to install genesis block")
		}
	}
	logger.Info().Uint64("height", ch.Height()).Msg("chain ready")

	// ── 5. Graceful shutdown context ─────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info().Msg("shutdown signal received")
		cancel()
	}()

	// ── 6. Optional CPU mining ────────────────────────────────────────────
	if cfg.Mining.Enabled {
		coinbase, err := resolveCoinbase(flags.Coinbase, cfg.Mining.Coinbase)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid mining coinbase address")
		}
		m := miner.New(store, ch, pool, datasets, coinbase)
		minerLogger := klog.WithComponent("miner")
		logger.Info().Str("coinbase", coinbase.String()).Msg("mining enabled")
		go m.Run(ctx, minerLogger)
	}

	<-ctx.Done()
	logger.Info().Msg("astramd stopped")
}

// installGenesis builds, seals, and installs the genesis block for gen.
func installGenesis(ch *chain.Chain, gen *config.Genesis, datasets *dag.Manager) error {
	blk, err := chain.CreateGenesisBlock(gen)
	if err != nil {
		return fmt.Errorf("build genesis block: %w", err)
	}
	ds := datasets.Get(dag.Epoch(0))
	if err := pow.Seal(context.Background(), blk.Header, ds); err != nil {
		return fmt.Errorf("seal genesis block: %w", err)
	}
	return ch.InitFromGenesis(blk)
}

func resolveCoinbase(flagValue, cfgValue string) (types.Address, error) {
	addrStr := flagValue
	if addrStr == "" {
		addrStr = cfgValue
	}
	if addrStr == "" {
		return types.Address{}, fmt.Errorf("mining is enabled but no coinbase address was provided (--coinbase or mining.coinbase)")
	}
	return types.ParseAddress(addrStr)
}
