package archive

import (
	"archive/zip"
	"fmt"
	"sync"

	"neoview/internal/logging"
	"neoview/internal/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
)

// defaultHandleCapacity bounds the number of archives kept open at once.
const defaultHandleCapacity = 10

// handleCache keeps zip archives open across repeated extractions.
// Handles are owned exclusively by the cache: they are closed on
// eviction and on explicit invalidation, never by callers.
//
// Every check-then-act sequence (lookup, possible open, insert) runs
// under one critical section so concurrent extractions cannot open the
// same archive twice or race an eviction.
type handleCache struct {
	mu  sync.Mutex
	lru *lru.Cache[string, *zip.ReadCloser]
}

func newHandleCache(capacity int) *handleCache {
	if capacity <= 0 {
		capacity = defaultHandleCapacity
	}
	c, err := lru.NewWithEvict(capacity, func(path string, rc *zip.ReadCloser) {
		// Housekeeping only: a close failure affects reclaim timing,
		// not correctness.
		if err := rc.Close(); err != nil {
			logging.Warn("archive: closing evicted handle %s: %v", path, err)
		}
	})
	if err != nil {
		// Only reachable with a non-positive capacity, which is
		// guarded above.
		panic(fmt.Sprintf("archive: handle cache: %v", err))
	}
	return &handleCache{lru: c}
}

// get returns an open handle for path, opening and caching one on miss.
func (h *handleCache) get(path string) (*zip.ReadCloser, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rc, ok := h.lru.Get(path); ok {
		metrics.ArchiveCacheHits.WithLabelValues("handle").Inc()
		return rc, nil
	}
	metrics.ArchiveCacheMisses.WithLabelValues("handle").Inc()

	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	h.lru.Add(path, rc)
	return rc, nil
}

// evict closes and drops the handle for path, if cached.
func (h *handleCache) evict(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lru.Remove(path)
}

// evictAll closes and drops every cached handle.
func (h *handleCache) evictAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lru.Purge()
}
