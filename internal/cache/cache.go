// Package cache holds per-session lookup state shared by the event
// handlers.
package cache

import (
	"sync"
	"sync/atomic"

	"github.com/Softhook/elite-sub000/pkg/core"
)

// DescriptorCache keeps the session's descriptor records by id so the
// handlers can fill in event fields without a storage read.
type DescriptorCache struct {
	mu   sync.RWMutex
	byID map[int]core.DescriptorInfo
}

func NewDescriptorCache() *DescriptorCache {
	return &DescriptorCache{byID: make(map[int]core.DescriptorInfo)}
}

func (c *DescriptorCache) Reset() {
	c.Load(nil)
}

// Load replaces the cached descriptors.
func (c *DescriptorCache) Load(descs []core.DescriptorInfo) {
	next := make(map[int]core.DescriptorInfo, len(descs))
	for _, d := range descs {
		next[d.ID] = d
	}
	c.mu.Lock()
	c.byID = next
	c.mu.Unlock()
}

func (c *DescriptorCache) Add(d core.DescriptorInfo) {
	c.mu.Lock()
	c.byID[d.ID] = d
	c.mu.Unlock()
}

func (c *DescriptorCache) Get(id int) (core.DescriptorInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.byID[id]
	return d, ok
}

func (c *DescriptorCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

// Counter counts handler outcomes across worker goroutines.
type Counter struct {
	v atomic.Int64
}

func (c *Counter) Inc() { c.v.Add(1) }
func (c *Counter) Set(v int) { c.v.Store(int64(v)) }
func (c *Counter) Value() int { return int(c.v.Load()) }
