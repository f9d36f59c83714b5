package archive

import (
	"container/list"
	"strings"
	"sync"

	"neoview/internal/metrics"
)

const (
	// defaultExtractBudget bounds total resident extracted bytes.
	defaultExtractBudget = 200 * 1024 * 1024
	// defaultItemCeiling is the largest blob admitted into the cache.
	// Oversized reads bypass the cache entirely.
	defaultItemCeiling = 20 * 1024 * 1024
	// defaultExtractEntries bounds the entry count independently of bytes.
	defaultExtractEntries = 200
)

type extractItem struct {
	key  string
	data []byte
}

// extractCache holds previously extracted entry payloads, keyed by
// "archivePath::innerPath". It is bounded both by entry count (LRU) and
// by a cumulative byte budget. An insertion that would exceed the byte
// budget evicts the oldest half of resident entries, repeating until
// the new blob fits; resident bytes never exceed the budget.
type extractCache struct {
	mu         sync.Mutex
	order      *list.List // front = oldest
	items      map[string]*list.Element
	bytes      int64
	budget     int64
	ceiling    int64
	maxEntries int
}

func newExtractCache(budget, ceiling int64, maxEntries int) *extractCache {
	if budget <= 0 {
		budget = defaultExtractBudget
	}
	if ceiling <= 0 {
		ceiling = defaultItemCeiling
	}
	if maxEntries <= 0 {
		maxEntries = defaultExtractEntries
	}
	return &extractCache{
		order:      list.New(),
		items:      make(map[string]*list.Element),
		budget:     budget,
		ceiling:    ceiling,
		maxEntries: maxEntries,
	}
}

func extractKey(archivePath, innerPath string) string {
	return archivePath + "::" + innerPath
}

// get returns the cached payload and refreshes its recency.
func (c *extractCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		metrics.ArchiveCacheMisses.WithLabelValues("extract").Inc()
		return nil, false
	}
	c.order.MoveToBack(el)
	metrics.ArchiveCacheHits.WithLabelValues("extract").Inc()
	return el.Value.(*extractItem).data, true
}

// put admits data under key. Blobs above the per-item ceiling are
// rejected; the caller keeps the bytes either way.
func (c *extractCache) put(key string, data []byte) {
	if int64(len(data)) >= c.ceiling {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.bytes += int64(len(data)) - int64(len(el.Value.(*extractItem).data))
		el.Value.(*extractItem).data = data
		c.order.MoveToBack(el)
		for c.bytes > c.budget && c.order.Len() > 1 {
			c.evictOldestHalf()
		}
		c.updateGauge()
		return
	}

	for c.bytes+int64(len(data)) > c.budget && c.order.Len() > 0 {
		c.evictOldestHalf()
	}
	for c.order.Len() >= c.maxEntries {
		c.evictFront()
	}

	el := c.order.PushBack(&extractItem{key: key, data: data})
	c.items[key] = el
	c.bytes += int64(len(data))
	c.updateGauge()
}

// evictOldestHalf drops the oldest half of resident entries. Callers
// repeat it until the blob being admitted fits the byte budget.
func (c *extractCache) evictOldestHalf() {
	n := c.order.Len() / 2
	if n == 0 && c.order.Len() > 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		c.evictFront()
	}
}

func (c *extractCache) evictFront() {
	el := c.order.Front()
	if el == nil {
		return
	}
	item := el.Value.(*extractItem)
	c.order.Remove(el)
	delete(c.items, item.key)
	c.bytes -= int64(len(item.data))
	metrics.ExtractCacheEvictions.Inc()
}

// purgePrefix removes every entry whose key starts with prefix
// (used for per-archive invalidation with "{path}::").
func (c *extractCache) purgePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var next *list.Element
	for el := c.order.Front(); el != nil; el = next {
		next = el.Next()
		item := el.Value.(*extractItem)
		if strings.HasPrefix(item.key, prefix) {
			c.order.Remove(el)
			delete(c.items, item.key)
			c.bytes -= int64(len(item.data))
		}
	}
	c.updateGauge()
}

// purgeAll empties the cache.
func (c *extractCache) purgeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.items = make(map[string]*list.Element)
	c.bytes = 0
	c.updateGauge()
}

// residentBytes reports total bytes currently cached.
func (c *extractCache) residentBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// len reports the number of cached entries.
func (c *extractCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *extractCache) updateGauge() {
	metrics.ExtractCacheBytes.Set(float64(c.bytes))
}
