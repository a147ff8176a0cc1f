package enginepebble

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// expiryCache throttles how often the read-time TTL check (see Get/Exists
// in engine.go) schedules an opportunistic async delete for the same hot,
// already-expired key. Pebble exposes no RocksDB-style compaction filter
// hook (the original engine's TTL expiry mechanism), so expiry here is
// read-time-checked plus proactively swept by engine.TTLSweeper; without
// this cache, a hot expired key read in a loop would enqueue a delete on
// every single read.
//
// A fixed-size array of xxhash-keyed slots is enough: a collision just
// means two different expired keys occasionally share a cooldown window,
// which only costs a redundant delete, never correctness (the read-path
// check doesn't depend on the cache — it decides the decision is the
// cache).
type expiryCache struct {
	mu    sync.Mutex
	slots []expirySlot
}

type expirySlot struct {
	hash       uint64
	lastTick   int64
}

func newExpiryCache(size int) *expiryCache {
	if size <= 0 {
		size = 4096
	}
	return &expiryCache{slots: make([]expirySlot, size)}
}

// shouldSchedule reports whether an async delete should be scheduled for
// rawKey at logical time tick, given cooldownTicks between repeat
// schedules of the same key.
func (c *expiryCache) shouldSchedule(rawKey []byte, tick int64, cooldownTicks int64) bool {
	h := xxhash.Sum64(rawKey)
	idx := h % uint64(len(c.slots))

	c.mu.Lock()
	defer c.mu.Unlock()
	slot := &c.slots[idx]
	if slot.hash == h && tick-slot.lastTick < cooldownTicks {
		return false
	}
	slot.hash = h
	slot.lastTick = tick
	return true
}
