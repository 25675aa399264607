package report

import (
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Key identifies a cached builders report
type Key struct {
	Branch string
	Start  int64
	End    int64
}

func (k Key) String() string {
	return fmt.Sprintf("%s\x00%d\x00%d", k.Branch, k.Start, k.End)
}

// Cache keeps builders reports for a fixed time. Expired entries stay until
// Purge drops them
type Cache struct {
	mu    sync.Mutex
	ttl   time.Duration
	items *gocache.Cache
	// gen counts resets; loads started before a reset are not stored
	gen uint64
}

// NewCache creates a cache whose entries expire after ttl. A ttl of zero
// disables caching
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:   ttl,
		items: gocache.New(ttl, 0),
	}
}

// Get returns the report stored under key if it has not expired
func (c *Cache) Get(key Key) (*BuildersReport, bool) {
	v, ok := c.items.Get(key.String())
	if !ok {
		return nil, false
	}
	return v.(*BuildersReport), true
}

// Put stores report under key
func (c *Cache) Put(key Key, report *BuildersReport) {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	c.put(key, report, gen)
}

func (c *Cache) put(key Key, report *BuildersReport, gen uint64) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.items.Set(key.String(), report, c.ttl)
}

// GetOrLoad returns the cached report for key or stores the result of load
// A Reset during load keeps the loaded report out of the cache
func (c *Cache) GetOrLoad(key Key, load func() (*BuildersReport, error)) (*BuildersReport, error) {
	if r, ok := c.Get(key); ok {
		return r, nil
	}

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	r, err := load()
	if err != nil {
		return nil, err
	}
	c.put(key, r, gen)
	return r, nil
}

// Purge drops expired entries and returns how many were removed
func (c *Cache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := c.items.ItemCount()
	c.items.DeleteExpired()
	return before - c.items.ItemCount()
}

// Reset drops every entry
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.items.Flush()
}

// Len returns the number of stored entries, expired ones included
func (c *Cache) Len() int {
	return c.items.ItemCount()
}
