package topology

import (
	"strconv"

	"github.com/kubilitics/kubilitics-fleet/internal/models"
	"github.com/kubilitics/kubilitics-fleet/internal/pkg/metrics"
)

// Cache keeps the nodes and edges of the previous transform keyed by id so unchanged
// elements are reused between refreshes. Cached elements carry theme-dependent styles,
// so the cache is dropped whenever the theme or the grouping mode changes.
// Cache is not safe for concurrent use; the owning service serializes transforms.
type Cache struct {
	theme models.Theme
	mode  models.GroupingMode
	nodes map[string]models.TopologyNode
	edges map[string]models.TopologyEdge

	// edgeCounter disambiguates edges of resources without a UID. It restarts every
	// pass so the same snapshot yields the same edge ids.
	edgeCounter int

	seenNodes map[string]struct{}
	seenEdges map[string]struct{}

	stats CacheStats
}

// CacheStats counts reuse across the lifetime of the cache.
type CacheStats struct {
	NodeHits   int `json:"nodeHits"`
	NodeMisses int `json:"nodeMisses"`
	EdgeHits   int `json:"edgeHits"`
	EdgeMisses int `json:"edgeMisses"`
	Clears     int `json:"clears"`
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		nodes:     make(map[string]models.TopologyNode),
		edges:     make(map[string]models.TopologyEdge),
		seenNodes: make(map[string]struct{}),
		seenEdges: make(map[string]struct{}),
	}
}

// Prepare starts a transform pass for the given view. It clears the cache when the theme
// or grouping mode differs from the previous pass and reports whether it did.
func (c *Cache) Prepare(theme models.Theme, mode models.GroupingMode) bool {
	cleared := false
	if (c.theme != "" && c.theme != theme) || (c.mode != "" && c.mode != mode) {
		c.Clear()
		cleared = true
	}
	c.theme = theme
	c.mode = mode
	c.edgeCounter = 0
	c.seenNodes = make(map[string]struct{})
	c.seenEdges = make(map[string]struct{})
	return cleared
}

// Clear drops every cached node and edge.
func (c *Cache) Clear() {
	c.nodes = make(map[string]models.TopologyNode)
	c.edges = make(map[string]models.TopologyEdge)
	c.edgeCounter = 0
	c.stats.Clears++
	metrics.TransformCacheClearsTotal.Inc()
}

// Finish evicts elements that were not part of the pass that just ended.
func (c *Cache) Finish() {
	for id := range c.nodes {
		if _, ok := c.seenNodes[id]; !ok {
			delete(c.nodes, id)
		}
	}
	for id := range c.edges {
		if _, ok := c.seenEdges[id]; !ok {
			delete(c.edges, id)
		}
	}
}

// node returns the cached node for n.ID when it is unchanged, otherwise stores n.
func (c *Cache) node(n models.TopologyNode) models.TopologyNode {
	c.seenNodes[n.ID] = struct{}{}
	if cached, ok := c.nodes[n.ID]; ok && sameNode(cached, n) {
		c.stats.NodeHits++
		metrics.TransformCacheLookupsTotal.WithLabelValues("node", "hit").Inc()
		return cached
	}
	c.stats.NodeMisses++
	metrics.TransformCacheLookupsTotal.WithLabelValues("node", "miss").Inc()
	c.nodes[n.ID] = n
	return n
}

// edge returns the cached edge for e.ID when it is unchanged, otherwise stores e.
func (c *Cache) edge(e models.TopologyEdge) models.TopologyEdge {
	c.seenEdges[e.ID] = struct{}{}
	if cached, ok := c.edges[e.ID]; ok && cached == e {
		c.stats.EdgeHits++
		metrics.TransformCacheLookupsTotal.WithLabelValues("edge", "hit").Inc()
		return cached
	}
	c.stats.EdgeMisses++
	metrics.TransformCacheLookupsTotal.WithLabelValues("edge", "miss").Inc()
	c.edges[e.ID] = e
	return e
}

// edgeSuffix returns uid, or the next counter value when uid is empty.
func (c *Cache) edgeSuffix(uid string) string {
	if uid != "" {
		return uid
	}
	s := strconv.Itoa(c.edgeCounter)
	c.edgeCounter++
	return s
}

// Len returns the number of cached nodes and edges.
func (c *Cache) Len() (nodes, edges int) {
	return len(c.nodes), len(c.edges)
}

// Stats returns reuse counters for this cache. The same lookups are exported process-wide
// as kubilitics_fleet_transform_cache_lookups_total.
func (c *Cache) Stats() CacheStats {
	return c.stats
}

// sameNode compares two nodes ignoring position, which every layout pass recomputes.
func sameNode(a, b models.TopologyNode) bool {
	a.Position = models.Position{}
	b.Position = models.Position{}
	return a == b
}
