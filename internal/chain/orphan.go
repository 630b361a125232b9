package chain

import (
	"time"

	"github.com/astram-chain/astram/pkg/block"
	"github.com/astram-chain/astram/pkg/types"
)

// orphanEntry is a block held because its parent hasn't been seen yet.
type orphanEntry struct {
	blk        *block.Block
	receivedAt time.Time
}

// addOrphan stores blk pending its parent's arrival, evicting the
// oldest held orphan first if the pool is already at capacity. c.mu
// must be held.
func (c *Chain) addOrphan(blk *block.Block) {
	hash := blk.Header.Hash()
	if _, exists := c.orphans[hash]; exists {
		return
	}
	if len(c.orphans) >= c.maxOrphans {
		c.evictOldestOrphan()
	}
	c.orphans[hash] = orphanEntry{blk: blk, receivedAt: time.Now()}
}

// evictOldestOrphan drops the longest-held orphan. c.mu must be held.
func (c *Chain) evictOldestOrphan() {
	var oldestHash types.Hash
	var oldestAt time.Time
	first := true
	for h, e := range c.orphans {
		if first || e.receivedAt.Before(oldestAt) {
			oldestHash, oldestAt, first = h, e.receivedAt, false
		}
	}
	if !first {
		delete(c.orphans, oldestHash)
	}
}

// cleanupOrphans drops every orphan held longer than c.orphanTTL. c.mu
// must be held.
func (c *Chain) cleanupOrphans() {
	if len(c.orphans) == 0 {
		return
	}
	cutoff := time.Now().Add(-c.orphanTTL)
	for h, e := range c.orphans {
		if e.receivedAt.Before(cutoff) {
			delete(c.orphans, h)
		}
	}
}

// resolveOrphans repeatedly sweeps the orphan pool, admitting any
// orphan whose parent now resolves in the store. Each successful
// admission can itself unblock further orphans (a chain of blocks that
// arrived out of order), so it loops until a full pass makes no
// progress. The pass count is bounded by the orphan count, so it always
// terminates even if orphans reference each other in a cycle that never
// closes. c.mu must be held.
func (c *Chain) resolveOrphans() {
	for pass := 0; pass <= len(c.orphans); pass++ {
		progressed := false
		for hash, e := range c.orphans {
			has, err := c.store.HasHeader(e.blk.Header.PreviousHash)
			if err != nil || !has {
				continue
			}
			delete(c.orphans, hash)
			if err := c.processBlockLocked(e.blk); err == nil {
				progressed = true
			}
		}
		if !progressed {
			return
		}
	}
}
