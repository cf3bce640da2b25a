package kfs

import (
	"strings"
	"sync"
	"time"
)

// DefaultRevalidateTime is how long a cached attribute stays valid.
const DefaultRevalidateTime = 30 * time.Second

type cachedAttr struct {
	attr    Attr
	expires time.Time
}

// AttrCache holds attribute snapshots by absolute path for the revalidate
// time. A ttl of zero or less disables caching.
type AttrCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cachedAttr
	now     func() time.Time
}

// NewAttrCache creates a cache with the given revalidate time.
func NewAttrCache(ttl time.Duration) *AttrCache {
	return &AttrCache{
		ttl:     ttl,
		entries: make(map[string]cachedAttr),
		now:     time.Now,
	}
}

// SetTTL changes the revalidate time. Entries already cached keep their old
// expiry; disabling the cache drops everything.
func (c *AttrCache) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
	if ttl <= 0 {
		clear(c.entries)
	}
}

// TTL reports the current revalidate time.
func (c *AttrCache) TTL() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl
}

func (c *AttrCache) Get(path string) (Attr, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	if !ok {
		return Attr{}, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, path)
		return Attr{}, false
	}
	return e.attr, true
}

func (c *AttrCache) Put(path string, attr Attr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ttl <= 0 {
		return
	}
	c.entries[path] = cachedAttr{attr: attr, expires: c.now().Add(c.ttl)}
}

// Invalidate drops path and everything below it.
func (c *AttrCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
	prefix := strings.TrimSuffix(path, "/") + "/"
	for p := range c.entries {
		if strings.HasPrefix(p, prefix) {
			delete(c.entries, p)
		}
	}
}

func (c *AttrCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
