package model

// NodeCache is a frequency table of canonical labeled patterns. Two
// labeled nodes whose clauses are equal up to variable renaming share
// one counter; the cache keeps exactly one representative per pattern
// and never deletes an entry. Pruning by minimum size or occurrence is
// the orchestrator's business, applied when consuming CollectNodes.
type NodeCache struct {
	entries map[string]*cacheEntry
	order   []string
	dirty   bool
}

type cacheEntry struct {
	node  *Node
	count int
}

// NewNodeCache returns an empty cache.
func NewNodeCache() *NodeCache {
	return &NodeCache{entries: make(map[string]*cacheEntry)}
}

// Merge folds labeled, non-empty nodes into the cache. Canonically
// equal nodes increment a shared counter instead of creating a new
// entry. Merging is associative; unlabeled or empty nodes are ignored.
// Returns the cache for chaining.
func (c *NodeCache) Merge(nodes ...*Node) *NodeCache {
	for _, n := range nodes {
		if n == nil || !n.IsLabeled() || n.IsEmpty() {
			continue
		}
		key := n.CanonicalKey()
		if entry, ok := c.entries[key]; ok {
			entry.count++
			c.dirty = true
			continue
		}
		c.entries[key] = &cacheEntry{node: n, count: 1}
		c.order = append(c.order, key)
		c.dirty = true
	}
	return c
}

// CollectNodes returns one representative node per distinct canonical
// pattern, in first-seen order.
func (c *NodeCache) CollectNodes() []*Node {
	out := make([]*Node, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.entries[key].node)
	}
	return out
}

// GetOrElse returns the occurrence count for the node's canonical
// pattern, or fallback when absent. Callers that require presence
// treat an absent pattern as a fatal consistency violation.
func (c *NodeCache) GetOrElse(n *Node, fallback int) int {
	if entry, ok := c.entries[n.CanonicalKey()]; ok {
		return entry.count
	}
	return fallback
}

// Contains reports whether the node's pattern has been cached.
func (c *NodeCache) Contains(n *Node) bool {
	_, ok := c.entries[n.CanonicalKey()]
	return ok
}

// Len is the number of distinct patterns.
func (c *NodeCache) Len() int {
	return len(c.entries)
}

// Dirty reports whether the labeled set changed since the last
// feature-selection pass.
func (c *NodeCache) Dirty() bool {
	return c.dirty
}

// MarkClean clears the dirty flag after a feature-selection pass.
func (c *NodeCache) MarkClean() {
	c.dirty = false
}

// HasBothPolarities reports whether positive and negative patterns are
// both present, a precondition for feature selection.
func (c *NodeCache) HasBothPolarities() bool {
	var pos, neg bool
	for _, entry := range c.entries {
		if entry.node.IsPositive() {
			pos = true
		}
		if entry.node.IsNegative() {
			neg = true
		}
		if pos && neg {
			return true
		}
	}
	return false
}
