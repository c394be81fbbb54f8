package cache

import (
	"container/list"
	"sync"
	"time"
)

// MemoryCache is an LRU of clips bounded by total byte size.
type MemoryCache struct {
	capacity int64
	size     int64

	items map[string]*list.Element
	lru   *list.List // front is most recently used

	mu    sync.Mutex
	stats Stats
}

type memoryEntry struct {
	key string
	pcm []byte
}

// NewMemoryCache creates a cache holding at most capacity bytes.
func NewMemoryCache(capacity int64) *MemoryCache {
	return &MemoryCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
		stats:    Stats{Tier: TierMemory, Capacity: capacity},
	}
}

// Get returns the clip stored under key and marks it recently used.
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	c.lru.MoveToFront(elem)
	c.stats.Hits++
	return elem.Value.(*memoryEntry).pcm, true
}

// Put stores pcm under key, evicting the least recently used clips to make
// room.
func (c *MemoryCache) Put(key string, pcm []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := int64(len(pcm))
	if n > c.capacity {
		return ErrTooLarge
	}

	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
	for c.size+n > c.capacity && c.lru.Len() > 0 {
		c.remove(c.lru.Back())
		c.stats.Evictions++
		c.stats.LastEvict = time.Now()
	}

	c.items[key] = c.lru.PushFront(&memoryEntry{key: key, pcm: pcm})
	c.size += n
	return nil
}

// Delete drops key if present.
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
}

// Len returns the number of cached clips.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns a snapshot of the counters.
func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Size = c.size
	s.Items = c.lru.Len()
	return s
}

// Close drops every clip.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.lru.Init()
	c.size = 0
	return nil
}

// remove must be called with the lock held.
func (c *MemoryCache) remove(elem *list.Element) {
	entry := c.lru.Remove(elem).(*memoryEntry)
	delete(c.items, entry.key)
	c.size -= int64(len(entry.pcm))
}
