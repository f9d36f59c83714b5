package archive

import (
	"fmt"
	"testing"
)

func TestExtractCachePutGet(t *testing.T) {
	c := newExtractCache(0, 0, 0)

	c.put("a::1", []byte("one"))
	data, ok := c.get("a::1")
	if !ok || string(data) != "one" {
		t.Fatalf("get = %q, %v", data, ok)
	}
	if _, ok := c.get("a::2"); ok {
		t.Fatal("unexpected hit")
	}
	if c.residentBytes() != 3 {
		t.Fatalf("residentBytes = %d, want 3", c.residentBytes())
	}
}

func TestExtractCacheRejectsOversizedItems(t *testing.T) {
	c := newExtractCache(100, 10, 0)

	c.put("big", make([]byte, 10))
	if _, ok := c.get("big"); ok {
		t.Fatal("blob at the ceiling was admitted")
	}
	c.put("fits", make([]byte, 9))
	if _, ok := c.get("fits"); !ok {
		t.Fatal("blob under the ceiling was rejected")
	}
}

func TestExtractCacheBudgetEvictsOldestHalf(t *testing.T) {
	// Budget of 100 bytes, items of 10 bytes each.
	c := newExtractCache(100, 50, 0)

	for i := 0; i < 10; i++ {
		c.put(fmt.Sprintf("k%d", i), make([]byte, 10))
	}
	if c.len() != 10 || c.residentBytes() != 100 {
		t.Fatalf("len=%d bytes=%d, want 10/100", c.len(), c.residentBytes())
	}

	// One more overflows the budget: the oldest five go.
	c.put("k10", make([]byte, 10))

	if c.len() != 6 {
		t.Fatalf("len = %d after batch eviction, want 6", c.len())
	}
	for i := 0; i < 5; i++ {
		if _, ok := c.get(fmt.Sprintf("k%d", i)); ok {
			t.Errorf("k%d survived batch eviction", i)
		}
	}
	for i := 5; i < 11; i++ {
		if _, ok := c.get(fmt.Sprintf("k%d", i)); !ok {
			t.Errorf("k%d missing after batch eviction", i)
		}
	}
}

func TestExtractCacheBudgetHoldsWithSkewedSizes(t *testing.T) {
	// Many tiny entries followed by large ones: one eviction batch of
	// small blobs is not enough room, so eviction must repeat until the
	// new blob fits.
	c := newExtractCache(100, 50, 0)

	for i := 0; i < 20; i++ {
		c.put(fmt.Sprintf("small%d", i), make([]byte, 1))
	}
	for i := 0; i < 3; i++ {
		c.put(fmt.Sprintf("large%d", i), make([]byte, 40))
		if got := c.residentBytes(); got > 100 {
			t.Fatalf("residentBytes = %d after large%d, budget 100 breached", got, i)
		}
	}

	// The newest blob is always admitted.
	if _, ok := c.get("large2"); !ok {
		t.Fatal("most recent large blob missing")
	}
}

func TestExtractCacheUpdateGrowthRespectsBudget(t *testing.T) {
	c := newExtractCache(100, 60, 0)

	c.put("a", make([]byte, 50))
	c.put("b", make([]byte, 40))

	// Growing b past the budget evicts a rather than overshooting.
	c.put("b", make([]byte, 59))

	if got := c.residentBytes(); got != 59 {
		t.Fatalf("residentBytes = %d, want 59", got)
	}
	if c.len() != 1 {
		t.Fatalf("len = %d, want 1", c.len())
	}
	if _, ok := c.get("a"); ok {
		t.Error("oldest entry survived an over-budget update")
	}
	if data, ok := c.get("b"); !ok || len(data) != 59 {
		t.Errorf("updated entry = %d bytes, %v", len(data), ok)
	}
}

func TestExtractCacheEntryCountBound(t *testing.T) {
	c := newExtractCache(1<<20, 1<<10, 3)

	for i := 0; i < 5; i++ {
		c.put(fmt.Sprintf("k%d", i), []byte("x"))
	}
	if c.len() != 3 {
		t.Fatalf("len = %d, want 3", c.len())
	}
	// The newest three survive.
	for i := 2; i < 5; i++ {
		if _, ok := c.get(fmt.Sprintf("k%d", i)); !ok {
			t.Errorf("k%d missing", i)
		}
	}
}

func TestExtractCacheGetRefreshesRecency(t *testing.T) {
	c := newExtractCache(1<<20, 1<<10, 2)

	c.put("a", []byte("1"))
	c.put("b", []byte("2"))

	// Touch a so b becomes the eviction candidate.
	if _, ok := c.get("a"); !ok {
		t.Fatal("a missing")
	}
	c.put("c", []byte("3"))

	if _, ok := c.get("a"); !ok {
		t.Error("recently used entry evicted")
	}
	if _, ok := c.get("b"); ok {
		t.Error("least recently used entry survived")
	}
}

func TestExtractCachePurgePrefix(t *testing.T) {
	c := newExtractCache(0, 0, 0)

	c.put("/x/a.zip::1.png", []byte("1"))
	c.put("/x/a.zip::2.png", []byte("2"))
	c.put("/x/b.zip::1.png", []byte("3"))

	c.purgePrefix("/x/a.zip::")

	if c.len() != 1 {
		t.Fatalf("len = %d, want 1", c.len())
	}
	if _, ok := c.get("/x/b.zip::1.png"); !ok {
		t.Fatal("unrelated entry purged")
	}
	if c.residentBytes() != 1 {
		t.Fatalf("residentBytes = %d, want 1", c.residentBytes())
	}
}

func TestExtractCachePutUpdatesExisting(t *testing.T) {
	c := newExtractCache(0, 0, 0)

	c.put("k", []byte("short"))
	c.put("k", []byte("a longer payload"))

	data, ok := c.get("k")
	if !ok || string(data) != "a longer payload" {
		t.Fatalf("get = %q, %v", data, ok)
	}
	if c.len() != 1 {
		t.Fatalf("len = %d, want 1", c.len())
	}
	if c.residentBytes() != int64(len("a longer payload")) {
		t.Fatalf("residentBytes = %d", c.residentBytes())
	}
}
