// Package pricecache implements the Price Cache: an in-memory,
// concurrency-safe store of the freshest known price per
// (venue, marketId, outcome). It performs no I/O; the hot path is pure
// memory access guarded by sharded locks.
package pricecache

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arbworker/livearb/internal/domain"
)

const shardCount = 32

type shard struct {
	mu     sync.RWMutex
	points map[domain.PriceKey]domain.PricePoint
}

// Cache is the concurrency-safe, in-memory implementation of
// domain.PriceCache.
type Cache struct {
	shards [shardCount]*shard

	handlersMu    sync.RWMutex
	handlers      map[int]func(domain.PriceKey, domain.PricePoint)
	nextHandlerID int64

	startedAt time.Time

	statsMu        sync.Mutex
	updatesByVenue map[domain.Venue]int64
	totalUpdates   int64
}

// New creates an empty Price Cache.
func New() *Cache {
	c := &Cache{
		handlers:       make(map[int]func(domain.PriceKey, domain.PricePoint)),
		startedAt:      time.Now(),
		updatesByVenue: make(map[domain.Venue]int64),
	}
	for i := range c.shards {
		c.shards[i] = &shard{points: make(map[domain.PriceKey]domain.PricePoint)}
	}
	return c
}

func (c *Cache) shardFor(key domain.PriceKey) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.Venue))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(key.MarketID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(key.Outcome))
	return c.shards[h.Sum32()%shardCount]
}

// Put accepts a PriceUpdate. It discards updates strictly older than the
// stored point (monotonic-observed rule) and otherwise replaces it,
// triggering the complementary-outcome auto-update for prediction venues and
// firing subscribed handlers. It returns true when the update was accepted.
func (c *Cache) Put(update domain.PriceUpdate) bool {
	accepted := c.put(update.Key, update.ToPoint())
	if !accepted {
		return false
	}

	c.recordUpdate(update.Key.Venue)
	c.fire(update.Key, update.ToPoint())

	if update.Key.Venue != domain.VenueC {
		c.applyComplement(update)
	}

	return true
}

// put stores a point for key if it is not older than the existing one.
// Returns whether the write was applied.
func (c *Cache) put(key domain.PriceKey, point domain.PricePoint) bool {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.points[key]
	if ok && point.ObservedAt.Before(existing.ObservedAt) {
		return false
	}
	s.points[key] = point
	return true
}

// applyComplement mirrors a prediction-market update onto the complementary
// outcome, unless a fresher independent reading for the complement already
// exists.
func (c *Cache) applyComplement(update domain.PriceUpdate) {
	compKey := update.Key
	compKey.Outcome = update.Key.Outcome.Complement()

	s := c.shardFor(compKey)
	s.mu.Lock()
	existing, ok := s.points[compKey]
	if ok && existing.ObservedAt.After(update.ObservedAt) {
		s.mu.Unlock()
		return
	}

	compPoint := domain.PricePoint{
		Price:              100 - update.Price,
		ImpliedProbability: 1 - update.ImpliedProbability,
		Source:             update.Source,
		ObservedAt:         update.ObservedAt,
	}
	s.points[compKey] = compPoint
	s.mu.Unlock()

	c.recordUpdate(update.Key.Venue)
	c.fire(compKey, compPoint)
}

// Get returns the PricePoint for key, if present.
func (c *Cache) Get(key domain.PriceKey) (domain.PricePoint, bool) {
	s := c.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.points[key]
	return p, ok
}

// GetEffective returns the freshest usable PricePoint for (market, outcome)
// in cents, falling back to the market's embedded snapshot price when no
// cached point exists or the cached point exceeds maxAge. A cached point
// keeps its own ObservedAt and top-of-book quote; a snapshot fallback is
// stamped now and carries no quote.
func (c *Cache) GetEffective(market domain.VenueMarket, outcome domain.Outcome, maxAge time.Duration) (domain.PricePoint, bool) {
	key := domain.PriceKey{Venue: market.Venue, MarketID: market.ID, Outcome: outcome}
	now := time.Now()

	if p, ok := c.Get(key); ok {
		if now.Sub(p.ObservedAt) <= maxAge {
			return p, true
		}
	}

	cents := market.SnapshotCents(outcome)
	if cents <= 0 {
		return domain.PricePoint{}, false
	}
	return domain.PricePoint{
		Price:              cents,
		ImpliedProbability: cents / 100,
		Source:             domain.SourceSnapshot,
		ObservedAt:         now,
	}, true
}

// IsStale reports whether key is missing or older than maxAge.
func (c *Cache) IsStale(key domain.PriceKey, maxAge time.Duration) bool {
	p, ok := c.Get(key)
	if !ok {
		return true
	}
	return time.Since(p.ObservedAt) > maxAge
}

// Stats returns a snapshot of cache activity for the heartbeat.
func (c *Cache) Stats() domain.CacheStats {
	c.statsMu.Lock()
	byVenue := make(map[domain.Venue]int64, len(c.updatesByVenue))
	for k, v := range c.updatesByVenue {
		byVenue[k] = v
	}
	total := c.totalUpdates
	c.statsMu.Unlock()

	var oldest, newest int64
	now := time.Now()
	first := true
	for _, s := range c.shards {
		s.mu.RLock()
		for _, p := range s.points {
			age := now.Sub(p.ObservedAt).Milliseconds()
			if first {
				oldest, newest = age, age
				first = false
				continue
			}
			if age > oldest {
				oldest = age
			}
			if age < newest {
				newest = age
			}
		}
		s.mu.RUnlock()
	}

	return domain.CacheStats{
		UpdatesByVenue: byVenue,
		TotalUpdates:   total,
		OldestAgeMs:    oldest,
		NewestAgeMs:    newest,
	}
}

// Subscribe registers a handler invoked synchronously after every accepted
// Put. Handlers must not block; the cache does not enforce this but callers
// are expected to keep handlers O(1) (e.g. send onto a buffered channel).
func (c *Cache) Subscribe(handler func(domain.PriceKey, domain.PricePoint)) func() {
	c.handlersMu.Lock()
	id := int(atomic.AddInt64(&c.nextHandlerID, 1))
	c.handlers[id] = handler
	c.handlersMu.Unlock()

	return func() {
		c.handlersMu.Lock()
		delete(c.handlers, id)
		c.handlersMu.Unlock()
	}
}

// Clear removes every stored point. Used only on shutdown.
func (c *Cache) Clear() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.points = make(map[domain.PriceKey]domain.PricePoint)
		s.mu.Unlock()
	}
}

func (c *Cache) recordUpdate(venue domain.Venue) {
	c.statsMu.Lock()
	c.updatesByVenue[venue]++
	c.totalUpdates++
	c.statsMu.Unlock()
}

func (c *Cache) fire(key domain.PriceKey, point domain.PricePoint) {
	c.handlersMu.RLock()
	defer c.handlersMu.RUnlock()
	for _, h := range c.handlers {
		func() {
			defer func() { recover() }()
			h(key, point)
		}()
	}
}

var _ domain.PriceCache = (*Cache)(nil)
