// Package topologycache provides a size- and TTL-bounded cache of positioned topology graphs
// per (mode, theme). The whole cache is purged whenever a new snapshot is applied.
package topologycache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kubilitics/kubilitics-fleet/internal/models"
	"github.com/kubilitics/kubilitics-fleet/internal/pkg/metrics"
)

// DefaultSize is used when New is given a non-positive size.
const DefaultSize = 16

// Cache holds positioned graphs keyed by view. Thread-safe.
type Cache struct {
	ttl   time.Duration
	store *expirable.LRU[string, *models.TopologyGraph]
}

// New returns a cache with the given size and TTL. If ttl <= 0, Get always misses (cache disabled).
func New(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	return &Cache{
		ttl:   ttl,
		store: expirable.NewLRU[string, *models.TopologyGraph](size, nil, ttl),
	}
}

func key(opts models.TopologyOptions) string {
	opts = opts.Normalize()
	return string(opts.Mode) + "|" + string(opts.Theme)
}

// Get returns a cached graph if present and not expired. Records hit/miss.
func (c *Cache) Get(opts models.TopologyOptions) (*models.TopologyGraph, bool) {
	if c.ttl <= 0 {
		metrics.TopologyCacheMissesTotal.Inc()
		return nil, false
	}
	g, ok := c.store.Get(key(opts))
	if !ok {
		metrics.TopologyCacheMissesTotal.Inc()
		return nil, false
	}
	metrics.TopologyCacheHitsTotal.Inc()
	return g, true
}

// Set stores the graph for the view.
func (c *Cache) Set(opts models.TopologyOptions, graph *models.TopologyGraph) {
	if c.ttl <= 0 || graph == nil {
		return
	}
	c.store.Add(key(opts), graph)
}

// Invalidate drops every cached view.
func (c *Cache) Invalidate() {
	c.store.Purge()
}

// Len returns the number of cached views.
func (c *Cache) Len() int {
	return c.store.Len()
}
