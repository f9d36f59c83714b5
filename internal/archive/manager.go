package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"neoview/internal/logging"
	"neoview/internal/metrics"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// defaultIndexTTL is how long a cached entry listing stays valid.
	defaultIndexTTL = time.Hour
	// defaultIndexCapacity bounds the number of cached listings.
	defaultIndexCapacity = 100
)

// Config tunes the manager's cache layers. Zero values select the
// defaults from the respective cache.
type Config struct {
	IndexTTL           time.Duration
	IndexCapacity      int
	HandleCapacity     int
	ExtractBudget      int64
	ExtractItemCeiling int64
	ExtractMaxEntries  int
	// TempDir is where ExtractToTemp writes. Empty means os.TempDir().
	TempDir string
	// TempTTL is how long issued temp files live before SweepTemp
	// reclaims them.
	TempTTL time.Duration
}

// Manager orchestrates format detection, the three cache layers and the
// extraction strategy chain. Construct one at startup and share it; the
// caches are not package globals.
type Manager struct {
	index   *expirable.LRU[string, []Entry]
	handles *handleCache
	extract *extractCache
	temp    *tempRegistry
	readers []reader
}

// NewManager builds a Manager with the given cache configuration.
func NewManager(cfg Config) *Manager {
	if cfg.IndexTTL <= 0 {
		cfg.IndexTTL = defaultIndexTTL
	}
	if cfg.IndexCapacity <= 0 {
		cfg.IndexCapacity = defaultIndexCapacity
	}

	handles := newHandleCache(cfg.HandleCapacity)
	m := &Manager{
		index:   expirable.NewLRU[string, []Entry](cfg.IndexCapacity, nil, cfg.IndexTTL),
		handles: handles,
		extract: newExtractCache(cfg.ExtractBudget, cfg.ExtractItemCeiling, cfg.ExtractMaxEntries),
		temp:    newTempRegistry(cfg.TempDir, cfg.TempTTL),
		readers: []reader{
			genericReader{},
			&zipReader{handles: handles},
			sevenZipReader{},
			rarReader{},
		},
	}
	return m
}

// ListEntries returns the sorted entry listing for an archive. On cache
// hit the cached listing is returned as-is. Backend read errors yield
// an empty listing, never a partial one. Unsupported formats fail with
// ErrUnsupportedFormat.
func (m *Manager) ListEntries(ctx context.Context, path string, useCache bool) ([]Entry, error) {
	format := DetectFormat(path)
	if format == FormatUnsupported {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	if useCache {
		if entries, ok := m.index.Get(path); ok {
			metrics.ArchiveCacheHits.WithLabelValues("index").Inc()
			return entries, nil
		}
		metrics.ArchiveCacheMisses.WithLabelValues("index").Inc()
	}

	var entries []Entry
	var err error
	switch format {
	case FormatZip:
		entries, err = m.listZip(path)
	case FormatSevenZip:
		entries, err = listSevenZip(path)
	case FormatRar:
		entries, err = listRar(path)
	}
	if err != nil {
		logging.Warn("archive: listing %s failed: %v", path, err)
		metrics.ArchiveListTotal.WithLabelValues(string(format), "error").Inc()
		entries = []Entry{}
	} else {
		metrics.ArchiveListTotal.WithLabelValues(string(format), "success").Inc()
	}

	sortEntries(entries)

	if useCache {
		m.index.Add(path, entries)
	}
	return entries, nil
}

// Extract returns the uncompressed bytes of one inner entry. The
// extract cache is consulted first; on miss the strategy chain runs in
// order (generic backend, then the format-specific reader). Successful
// reads below the per-item ceiling are admitted into the cache.
func (m *Manager) Extract(ctx context.Context, path, inner string) ([]byte, error) {
	format := DetectFormat(path)
	if format == FormatUnsupported {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	inner = normalizeInner(inner)

	key := extractKey(path, inner)
	if data, ok := m.extract.get(key); ok {
		return data, nil
	}

	start := time.Now()
	var lastErr error
	for _, r := range m.readers {
		if !r.canRead(format) {
			continue
		}
		data, err := r.read(ctx, path, inner)
		if err != nil {
			logging.Debug("archive: %s reader failed for %s::%s: %v", r.name(), path, inner, err)
			metrics.ArchiveExtractTotal.WithLabelValues(string(format), r.name(), "error").Inc()
			lastErr = err
			continue
		}
		metrics.ArchiveExtractTotal.WithLabelValues(string(format), r.name(), "success").Inc()
		metrics.ArchiveExtractDuration.WithLabelValues(string(format)).Observe(time.Since(start).Seconds())
		m.extract.put(key, data)
		return data, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no reader for %s", ErrUnsupportedFormat, path)
	}
	return nil, lastErr
}

// ExtractToTemp writes an entry's bytes to a new temp file whose
// extension mirrors the inner path, registers the file for sweeping and
// returns its path. Callers may delete the file early; SweepTemp
// reclaims anything they leave behind.
func (m *Manager) ExtractToTemp(ctx context.Context, path, inner string) (string, error) {
	data, err := m.Extract(ctx, path, inner)
	if err != nil {
		return "", err
	}
	return m.temp.create(inner, data)
}

// SweepTemp deletes issued temp files older than the configured TTL.
// Call it periodically from the service loop.
func (m *Manager) SweepTemp() {
	m.temp.sweep()
}

// DeleteEntry removes one entry from a zip archive by rewriting every
// other entry into a sibling temp archive and atomically replacing the
// original. A failure mid-rewrite leaves the original untouched.
// Non-zip formats fail fast with ErrUnsupportedFormat.
func (m *Manager) DeleteEntry(ctx context.Context, path, inner string) error {
	if DetectFormat(path) != FormatZip {
		return fmt.Errorf("%w: delete requires a zip archive: %s", ErrUnsupportedFormat, path)
	}
	inner = normalizeInner(inner)

	// Work from a fresh reader: the cached handle may predate external
	// mutations, and the rewrite must see the file as it is now.
	src, err := zip.OpenReader(path)
	if err != nil {
		return mapOpenErr(path, err)
	}
	defer src.Close()

	found := false
	for _, f := range src.File {
		if normalizeInner(f.Name) == inner {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s in %s", ErrNotFound, inner, path)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".neoview-rewrite-*.zip")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			logging.Warn("archive: removing rewrite temp %s: %v", tmpPath, err)
		}
	}

	zw := zip.NewWriter(tmp)
	for _, f := range src.File {
		if normalizeInner(f.Name) == inner {
			continue
		}
		if err := copyZipEntry(zw, f); err != nil {
			cleanup()
			return fmt.Errorf("rewriting %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}

	// The cached handle points at the old inode; drop it before the
	// replace so the next read opens the rewritten archive.
	m.handles.evict(path)

	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return err
	}

	m.index.Remove(path)
	m.extract.purgePrefix(path + "::")
	return nil
}

func copyZipEntry(zw *zip.Writer, f *zip.File) error {
	hdr := &zip.FileHeader{
		Name:     f.Name,
		Method:   f.Method,
		Modified: f.Modified,
	}
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	r, err := f.Open()
	if err != nil {
		return err
	}
	defer r.Close()
	_, err = io.Copy(w, r)
	return err
}

// Invalidate drops all cached state for one archive: its listing, its
// open handle and every extract-cache entry prefixed "{path}::".
func (m *Manager) Invalidate(path string) {
	m.index.Remove(path)
	m.handles.evict(path)
	m.extract.purgePrefix(path + "::")
}

// InvalidateAll clears all three cache layers.
func (m *Manager) InvalidateAll() {
	m.index.Purge()
	m.handles.evictAll()
	m.extract.purgeAll()
}

// CacheStats describes the resident cache state.
type CacheStats struct {
	IndexedArchives int   `json:"indexedArchives"`
	ExtractEntries  int   `json:"extractEntries"`
	ExtractBytes    int64 `json:"extractBytes"`
}

// Stats reports the current cache occupancy.
func (m *Manager) Stats() CacheStats {
	return CacheStats{
		IndexedArchives: m.index.Len(),
		ExtractEntries:  m.extract.len(),
		ExtractBytes:    m.extract.residentBytes(),
	}
}

// Close releases every open handle and reclaims all issued temp files.
func (m *Manager) Close() {
	m.handles.evictAll()
	m.temp.purgeAll()
}
