package dag

import (
	"runtime"
	"sync"
)

// Generate builds the full consensus-sized dataset for an epoch.
func Generate(epoch uint64) *Dataset {
	return GenerateSize(epoch, ItemCount)
}

// GenerateSize builds a dataset for an epoch with a caller-chosen item
// count. Production code always calls Generate (ItemCount items, 4 GiB);
// tests use a small count to exercise the same mixing logic without
// allocating the full dataset. Each item depends only on (index, seed),
// so generation is split into GOMAXPROCS contiguous shards and filled
// concurrently.
func GenerateSize(epoch uint64, itemCount int) *Dataset {
	seed := Seed(epoch)
	items := make([]Item, itemCount)

	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}

	shard := (len(items) + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * shard
		if start >= len(items) {
			break
		}
		end := start + shard
		if end > len(items) {
			end = len(items)
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				items[i] = GenerateItem(uint64(i), seed)
			}
		}(start, end)
	}
	wg.Wait()

	return &Dataset{Epoch: epoch, Seed: seed, items: items}
}
