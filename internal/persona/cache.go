package persona

import "sync"

// DefaultReplyCacheSize bounds the translated-reply cache. Old entries are
// evicted least-recently-used once the cap is reached.
const DefaultReplyCacheSize = 512

type cacheEntry struct {
	final    string
	original string
	prev     *cacheEntry
	next     *cacheEntry
}

// replyCache maps a delivered (post-translated) reply back to the raw engine
// output that produced it, so quoted replies can be resolved later. Bounded
// LRU with sentinel head/tail nodes for O(1) updates.
type replyCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*cacheEntry // final reply -> entry
	head     *cacheEntry            // most recently used (sentinel)
	tail     *cacheEntry            // least recently used (sentinel)
}

func newReplyCache(capacity int) *replyCache {
	if capacity < 1 {
		capacity = DefaultReplyCacheSize
	}
	head := &cacheEntry{}
	tail := &cacheEntry{}
	head.next = tail
	tail.prev = head
	return &replyCache{
		capacity: capacity,
		entries:  make(map[string]*cacheEntry, capacity),
		head:     head,
		tail:     tail,
	}
}

func (c *replyCache) put(final, original string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[final]; ok {
		e.original = original
		c.moveToFront(e)
		return
	}

	if len(c.entries) >= c.capacity {
		victim := c.tail.prev
		c.unlink(victim)
		delete(c.entries, victim.final)
	}

	e := &cacheEntry{final: final, original: original}
	c.entries[final] = e
	c.pushFront(e)
}

// original resolves a delivered reply back to the raw engine output.
func (c *replyCache) original(final string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[final]
	if !ok {
		return "", false
	}
	c.moveToFront(e)
	return e.original, true
}

func (c *replyCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *replyCache) unlink(e *cacheEntry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev = nil
	e.next = nil
}

func (c *replyCache) pushFront(e *cacheEntry) {
	e.next = c.head.next
	e.prev = c.head
	c.head.next.prev = e
	c.head.next = e
}

func (c *replyCache) moveToFront(e *cacheEntry) {
	c.unlink(e)
	c.pushFront(e)
}
