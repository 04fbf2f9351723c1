package pricefeed

import (
	"sync"
	"time"

	"PaperPulse/internal/domain/models"
)

// priceEntry holds the freshest point for one symbol behind its own lock so
// writers for different symbols never contend.
type priceEntry struct {
	mu    sync.RWMutex
	point models.PricePoint
	set   bool
}

// PriceCache keeps the last known price per symbol with staleness metadata.
// Entries are created and overwritten by the source chain only; consumers
// read copies.
type PriceCache struct {
	mu      sync.RWMutex
	entries map[string]*priceEntry
}

// NewPriceCache creates an empty cache.
func NewPriceCache() *PriceCache {
	return &PriceCache{entries: make(map[string]*priceEntry)}
}

func (c *PriceCache) entry(symbol string) *priceEntry {
	c.mu.RLock()
	e, ok := c.entries[symbol]
	c.mu.RUnlock()
	if ok {
		return e
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok = c.entries[symbol]; ok {
		return e
	}
	e = &priceEntry{}
	c.entries[symbol] = e
	return e
}

// Put stores p unless a newer point is already cached for the symbol.
// Returns false when p was discarded by the out-of-order guard.
func (c *PriceCache) Put(p models.PricePoint) bool {
	if p.Symbol == "" || p.Price <= 0 {
		return false
	}
	e := c.entry(p.Symbol)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.set && !p.ObservedAt.After(e.point.ObservedAt) {
		return false
	}
	e.point = p
	e.set = true
	return true
}

// Get returns the freshest point for symbol. ok is false when no point
// exists or the point is older than maxAge, so callers treat the price as
// unknown rather than stale-but-present.
func (c *PriceCache) Get(symbol string, maxAge time.Duration) (models.PricePoint, bool) {
	c.mu.RLock()
	e, ok := c.entries[symbol]
	c.mu.RUnlock()
	if !ok {
		return models.PricePoint{}, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.set {
		return models.PricePoint{}, false
	}
	if maxAge > 0 && e.point.Age(time.Now()) > maxAge {
		return models.PricePoint{}, false
	}
	return e.point, true
}

// Last returns the cached point regardless of age.
func (c *PriceCache) Last(symbol string) (models.PricePoint, bool) {
	return c.Get(symbol, 0)
}

// Snapshot copies the whole cache, fresh or not.
func (c *PriceCache) Snapshot() map[string]models.PricePoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]models.PricePoint, len(c.entries))
	for sym, e := range c.entries {
		e.mu.RLock()
		if e.set {
			out[sym] = e.point
		}
		e.mu.RUnlock()
	}
	return out
}
