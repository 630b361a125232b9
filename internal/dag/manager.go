package dag

import "sync"

// Manager serves the active epoch's dataset, generating it at most once
// per epoch even under concurrent callers, and keeps the previous
// epoch's dataset around until the new one is ready so a lookup racing
// an epoch boundary never stalls (spec.md §5, §9).
type Manager struct {
	mu      sync.Mutex
	current *epochSlot
	prev    *Dataset

	// newDataset is overridable in tests to avoid generating the full
	// 4 GiB dataset.
	newDataset func(epoch uint64) *Dataset
}

// epochSlot coalesces concurrent Get calls for the same epoch behind a
// single generation via sync.Once.
type epochSlot struct {
	epoch uint64
	once  sync.Once
	ds    *Dataset
}

// NewManager returns a Manager that generates production-sized (4 GiB)
// datasets.
func NewManager() *Manager {
	return &Manager{newDataset: Generate}
}

// Get returns the dataset for epoch, generating it if necessary.
// Concurrent calls for the same epoch share a single generation.
func (m *Manager) Get(epoch uint64) *Dataset {
	m.mu.Lock()
	slot := m.current
	if slot == nil || slot.epoch != epoch {
		if slot != nil {
			// The epoch just advanced: retain the outgoing dataset so
			// in-flight lookups for the old epoch keep working while the
			// new one generates.
			m.prev = slot.ds
		}
		slot = &epochSlot{epoch: epoch}
		m.current = slot
	}
	gen := m.newDataset
	m.mu.Unlock()

	slot.once.Do(func() {
		slot.ds = gen(epoch)
	})
	return slot.ds
}

// Previous returns the most recently superseded dataset, or nil if the
// manager has not yet advanced past its first epoch.
func (m *Manager) Previous() *Dataset {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prev
}
