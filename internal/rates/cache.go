package rates

import (
	"sync"
	"time"

	"kursbot/internal/currency"
)

// Cache keeps the latest snapshot per currency. Entries expire lazily and
// are only ever replaced, never removed.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[currency.Symbol]Snapshot
}

func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{ttl: ttl, now: now, entries: map[currency.Symbol]Snapshot{}}
}

// Get returns the snapshot while now - FetchedAt < ttl.
func (c *Cache) Get(sym currency.Symbol) (Snapshot, bool) {
	c.mu.RLock()
	snap, ok := c.entries[sym]
	c.mu.RUnlock()
	if !ok || c.now().Sub(snap.FetchedAt) >= c.ttl {
		return Snapshot{}, false
	}
	return snap, true
}

func (c *Cache) Put(snap Snapshot) {
	c.mu.Lock()
	c.entries[snap.Symbol] = snap
	c.mu.Unlock()
}
