package chain

import (
	"fmt"

	"github.com/astram-chain/astram/pkg/block"
	"github.com/astram-chain/astram/pkg/tx"
	"github.com/astram-chain/astram/pkg/types"
	"github.com/astram-chain/astram/pkg/wire"
)

// OnBlock admits a block delivered by an external transport. It is
// ProcessBlock under the name spec.md §6 gives the peer-layer callback;
// the transport never touches validation or storage directly.
func (c *Chain) OnBlock(blk *block.Block) error {
	return c.ProcessBlock(blk)
}

// OnTx admits a transaction relayed by an external transport into the
// mempool. Returns an error if this chain was built without one (pool
// is nil), or if t fails mempool admission.
func (c *Chain) OnTx(t *tx.Transaction) error {
	if c.pool == nil {
		return fmt.Errorf("chain: no mempool configured")
	}
	_, err := c.pool.Add(t)
	return err
}

// OnGetHeaders answers a peer's GetHeaders request: it walks locator
// hashes to find the most recent one on the best chain, then returns up
// to wire.MaxHeadersPerMessage consecutive headers starting just after
// it, stopping early at stopHash if given. An empty or entirely-unknown
// locator set yields headers from height 0 (a full sync from genesis).
func (c *Chain) OnGetHeaders(locatorHashes []types.Hash, stopHash *types.Hash) ([]*block.Header, error) {
	tipHeight := c.Height()

	startHeight := uint64(0)
	for _, h := range locatorHashes {
		hdr, err := c.store.LoadHeader(h)
		if err != nil {
			continue
		}
		onBestChain, err := c.store.HeightHash(hdr.Index)
		if err != nil || onBestChain != h {
			continue
		}
		startHeight = hdr.Index + 1
		break
	}

	headers := make([]*block.Header, 0, wire.MaxHeadersPerMessage)
	for height := startHeight; height <= tipHeight && len(headers) < wire.MaxHeadersPerMessage; height++ {
		hash, err := c.store.HeightHash(height)
		if err != nil {
			break
		}
		hdr, err := c.store.LoadHeader(hash)
		if err != nil {
			break
		}
		headers = append(headers, hdr)
		if stopHash != nil && hash == *stopHash {
			break
		}
	}
	return headers, nil
}
