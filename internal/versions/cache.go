package versions

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"audittrail/internal/textdiff"
)

// diffCache is a bounded LRU of diff results with per-entry expiry. A nil cache is a valid no-op.
type diffCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	maxEntries int
	ttl        time.Duration
}

type diffCacheEntry struct {
	key       string
	result    textdiff.DiffResult
	expiresAt time.Time
}

func newDiffCache(maxEntries int, ttl time.Duration) *diffCache {
	if maxEntries <= 0 || ttl <= 0 {
		return nil
	}

	return &diffCache{
		entries:    make(map[string]*list.Element, maxEntries),
		order:      list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// diffCacheKey derives the key from content hashes so equal text pairs share an entry across tasks.
func diffCacheKey(oldText, newText string) string {
	oldSum := sha256.Sum256([]byte(oldText))
	newSum := sha256.Sum256([]byte(newText))

	return hex.EncodeToString(oldSum[:]) + ":" + hex.EncodeToString(newSum[:])
}

func (c *diffCache) get(key string, now time.Time) (textdiff.DiffResult, bool) {
	if c == nil || key == "" {
		return textdiff.DiffResult{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return textdiff.DiffResult{}, false
	}

	entry, ok := elem.Value.(*diffCacheEntry)
	if !ok {
		return textdiff.DiffResult{}, false
	}

	if now.After(entry.expiresAt) {
		c.removeElement(elem)

		return textdiff.DiffResult{}, false
	}

	c.order.MoveToFront(elem)

	return entry.result, true
}

func (c *diffCache) set(key string, result textdiff.DiffResult, now time.Time) {
	if c == nil || key == "" {
		return
	}

	expiresAt := now.Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry, castOk := elem.Value.(*diffCacheEntry)
		if !castOk {
			return
		}

		entry.result = result
		entry.expiresAt = expiresAt
		c.order.MoveToFront(elem)

		return
	}

	elem := c.order.PushFront(&diffCacheEntry{
		key:       key,
		result:    result,
		expiresAt: expiresAt,
	})
	c.entries[key] = elem

	c.evictExpiredLocked(now)
	c.enforceSizeLimitLocked()
}

func (c *diffCache) len() int {
	if c == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

func (c *diffCache) evictExpiredLocked(now time.Time) {
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()

		if entry, ok := elem.Value.(*diffCacheEntry); ok && now.After(entry.expiresAt) {
			c.removeElement(elem)
		}

		elem = prev
	}
}

func (c *diffCache) enforceSizeLimitLocked() {
	for len(c.entries) > c.maxEntries {
		elem := c.order.Back()
		if elem == nil {
			return
		}
		c.removeElement(elem)
	}
}

func (c *diffCache) removeElement(elem *list.Element) {
	entry, ok := elem.Value.(*diffCacheEntry)
	if !ok {
		return
	}

	delete(c.entries, entry.key)
	c.order.Remove(elem)
}
