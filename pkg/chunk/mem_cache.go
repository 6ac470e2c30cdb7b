// pkg/chunk/mem_cache.go

package chunk

import (
	"sync"
	"time"
)

type memItem struct {
	atime time.Time
	page  *Page
}

// memCache keeps released pages around so that a store growing again after a
// reclaim does not go back to the runtime for every chunk.
type memCache struct {
	sync.Mutex
	capacity int64
	used     int64
	pages    []memItem
}

func newMemCache(capacity int64) *memCache {
	return &memCache{capacity: capacity}
}

func (c *memCache) stats() (int64, int64) {
	c.Lock()
	defer c.Unlock()
	return int64(len(c.pages)), c.used
}

// put keeps p for reuse, returns false if the cache is full and p was not taken.
func (c *memCache) put(p *Page) bool {
	if c.capacity == 0 {
		return false
	}
	c.Lock()
	defer c.Unlock()
	size := int64(cap(p.Data))
	if c.used+size > c.capacity {
		c.cleanup(size)
		if c.used+size > c.capacity {
			return false
		}
	}
	c.pages = append(c.pages, memItem{time.Now(), p})
	c.used += size
	return true
}

// get returns a zero-filled page of size bytes, or nil if none is cached.
func (c *memCache) get(size int) *Page {
	c.Lock()
	defer c.Unlock()
	for i := len(c.pages) - 1; i >= 0; i-- {
		p := c.pages[i].page
		if cap(p.Data) < size {
			continue
		}
		c.pages = append(c.pages[:i], c.pages[i+1:]...)
		c.used -= int64(cap(p.Data))
		p.Data = p.Data[:size]
		p.Zero(0, size)
		return p
	}
	return nil
}

// drain releases every cached page.
func (c *memCache) drain() int {
	c.Lock()
	defer c.Unlock()
	n := len(c.pages)
	for _, item := range c.pages {
		item.page.Release()
	}
	c.pages = nil
	c.used = 0
	return n
}

// locked
func (c *memCache) cleanup(need int64) {
	// pages are appended in release order, so the oldest ones go first
	now := time.Now()
	var i int
	for i < len(c.pages) && c.used+need > c.capacity {
		item := c.pages[i]
		logger.Debugf("drop cached page, age: %s", now.Sub(item.atime))
		c.used -= int64(cap(item.page.Data))
		item.page.Release()
		i++
	}
	c.pages = c.pages[i:]
}
