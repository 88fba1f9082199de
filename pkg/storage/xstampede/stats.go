package xstampede

import "sync/atomic"

// Stats 是 Controller 计数器的快照。
type Stats struct {
	Hits           uint64 `json:"hits"`
	Misses         uint64 `json:"misses"`
	StaleHits      uint64 `json:"stale_hits"`
	Loads          uint64 `json:"loads"`
	LoadErrors     uint64 `json:"load_errors"`
	LockAcquired   uint64 `json:"lock_acquired"`
	LockContended  uint64 `json:"lock_contended"`
	SpinWaits      uint64 `json:"spin_waits"`
	Fallbacks      uint64 `json:"fallbacks"`
	EarlyRefreshes uint64 `json:"early_refreshes"`
}

type counters struct {
	hits           atomic.Uint64
	misses         atomic.Uint64
	staleHits      atomic.Uint64
	loads          atomic.Uint64
	loadErrors     atomic.Uint64
	lockAcquired   atomic.Uint64
	lockContended  atomic.Uint64
	spinWaits      atomic.Uint64
	fallbacks      atomic.Uint64
	earlyRefreshes atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Hits:           c.hits.Load(),
		Misses:         c.misses.Load(),
		StaleHits:      c.staleHits.Load(),
		Loads:          c.loads.Load(),
		LoadErrors:     c.loadErrors.Load(),
		LockAcquired:   c.lockAcquired.Load(),
		LockContended:  c.lockContended.Load(),
		SpinWaits:      c.spinWaits.Load(),
		Fallbacks:      c.fallbacks.Load(),
		EarlyRefreshes: c.earlyRefreshes.Load(),
	}
}
