// Package symbolindex is the process-wide TTL cache of distinct-symbol
// snapshots (spec §4.4). It is a small value-typed struct behind a
// Get/Invalidate interface, held at process scope — per spec §9's
// "global in-process cache" design note — rather than a generic
// caching library: there is exactly one cached value, and no library in
// the retrieval pack fits a single-value TTL snapshot better than a
// mutex-guarded struct (see DESIGN.md).
package symbolindex

import (
	"context"
	"sync"
	"time"
)

// Entry is one row of the distinct-symbols aggregation.
type Entry struct {
	Symbol       string
	SecurityName string
	Count        int64
}

// Source recomputes the symbol index from the price store. It is the
// only thing this package depends on, keeping it decoupled from the
// price store's concrete type.
type Source interface {
	DistinctSymbols(ctx context.Context) ([]Entry, error)
}

const defaultTTL = 60 * time.Second

// Cache holds the most recent DistinctSymbols() snapshot with a fixed
// TTL. Readers that observe an expired or empty cache recompute with no
// required mutual exclusion: duplicate recomputation is acceptable
// because the aggregation is pure (spec §4.4).
type Cache struct {
	source Source
	ttl    time.Duration

	mu        sync.Mutex
	entries   []Entry
	computedAt time.Time
}

// New builds a Cache backed by source, with the spec's fixed 60s TTL.
func New(source Source) *Cache {
	return &Cache{source: source, ttl: defaultTTL}
}

// Get returns the cached snapshot, recomputing it if expired or empty.
// Last-writer-wins: a concurrent recompute may overwrite this one's
// result, which is fine since both compute the same pure aggregation.
func (c *Cache) Get(ctx context.Context) ([]Entry, error) {
	c.mu.Lock()
	stale := len(c.entries) == 0 || time.Since(c.computedAt) > c.ttl
	c.mu.Unlock()

	if !stale {
		c.mu.Lock()
		entries := c.entries
		c.mu.Unlock()
		return entries, nil
	}

	entries, err := c.source.DistinctSymbols(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries = entries
	c.computedAt = time.Now()
	c.mu.Unlock()

	return entries, nil
}

// Invalidate clears the snapshot, forcing the next Get to recompute.
// Called after every completed ingestion and after every import
// deletion (spec §4.4).
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
	c.computedAt = time.Time{}
}
