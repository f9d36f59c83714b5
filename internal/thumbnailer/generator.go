package thumbnailer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"neoview/internal/archive"
	"neoview/internal/database"
	"neoview/internal/logging"
	"neoview/internal/mediatypes"
	"neoview/internal/metrics"
	"neoview/internal/workers"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMaxSize bounds the longer edge of generated thumbnails.
	DefaultMaxSize = 256
	// DefaultWorkers caps the generation pool.
	DefaultWorkers = 4
)

// Options configures a Generator. Zero values select defaults.
type Options struct {
	MaxSize   int
	VideoSeek time.Duration
	Workers   int
}

// Generator produces thumbnails through the persistent store. Every
// request first consults the store with the source's (size, mtime)
// validity token, then the failure table, and only then decodes. CPU
// work runs on a small fixed worker pool so a burst of requests cannot
// decode more than a handful of images at once.
type Generator struct {
	store     *database.Store
	archives  *archive.Manager
	maxSize   int
	videoSeek time.Duration
	workers   int

	jobs      chan func()
	wg        sync.WaitGroup
	closeOnce sync.Once

	decodes atomic.Int64
}

// NewGenerator creates a Generator and starts its worker pool.
func NewGenerator(store *database.Store, archives *archive.Manager, opts Options) *Generator {
	g := &Generator{
		store:     store,
		archives:  archives,
		maxSize:   opts.MaxSize,
		videoSeek: opts.VideoSeek,
		workers:   opts.Workers,
	}
	if g.maxSize <= 0 {
		g.maxSize = DefaultMaxSize
	}
	if g.videoSeek <= 0 {
		g.videoSeek = DefaultVideoSeek
	}
	if g.workers <= 0 {
		g.workers = workers.ForCPU(DefaultWorkers)
	}

	g.jobs = make(chan func(), 4*g.workers)
	for i := 0; i < g.workers; i++ {
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			for job := range g.jobs {
				job()
			}
		}()
	}

	logging.Debug("Thumbnail generator: %d workers, max size %d", g.workers, g.maxSize)
	return g
}

// Close drains the worker pool. Queued jobs still run to completion.
func (g *Generator) Close() {
	g.closeOnce.Do(func() {
		close(g.jobs)
		g.wg.Wait()
	})
}

// DecodeCount returns how many source decodes have run. Cache hits and
// failure short-circuits do not decode.
func (g *Generator) DecodeCount() int64 {
	return g.decodes.Load()
}

type genResult struct {
	data []byte
	err  error
}

// Get returns the thumbnail for path (or for an entry inside an
// archive when inner is non-empty), generating and persisting it on a
// cache miss. maxSize bounds the longer edge of a freshly generated
// thumbnail; zero selects the generator default. Missing sources return
// archive.ErrNotFound; sources that cannot yield a thumbnail return
// ErrNoThumbnail.
func (g *Generator) Get(ctx context.Context, path, inner string, maxSize int) ([]byte, error) {
	key := thumbKey(path, inner)
	if maxSize <= 0 {
		maxSize = g.maxSize
	}

	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", archive.ErrNotFound, path)
		}
		return nil, err
	}

	// Validity token: a folder's byte size is meaningless, so folders
	// key on mtime alone.
	size := fi.Size()
	if fi.IsDir() {
		size = 0
	}
	date := fi.ModTime().Unix()
	category := g.categoryFor(path, inner, fi.IsDir())

	data, ok, err := g.store.GetThumbnailIfValid(ctx, key, size, date)
	if err != nil {
		logging.Warn("Thumbnail cache lookup failed for %s: %v", key, err)
	} else if ok {
		metrics.ThumbnailRequestsTotal.WithLabelValues(category, "hit").Inc()
		return data, nil
	}

	failure, err := g.store.GetFailure(ctx, key)
	if err != nil {
		logging.Warn("Failure lookup failed for %s: %v", key, err)
	}
	if failure != nil {
		if failure.Permanent() {
			metrics.ThumbnailRequestsTotal.WithLabelValues(category, "skipped").Inc()
			return nil, fmt.Errorf("%w: %s permanently failed after %d attempts (%s)",
				ErrNoThumbnail, key, failure.RetryCount, failure.Reason)
		}
		if failure.InCooldown(time.Now()) {
			metrics.ThumbnailRequestsTotal.WithLabelValues(category, "skipped").Inc()
			return nil, fmt.Errorf("%w: %s in retry cooldown (%s)",
				ErrNoThumbnail, key, failure.Reason)
		}
	}

	// Generation survives caller cancellation: once a slow decode has
	// started, finishing and persisting it is cheaper than redoing it
	// on the next request.
	genCtx := context.WithoutCancel(ctx)
	resCh := make(chan genResult, 1)

	metrics.ThumbnailQueueDepth.Inc()
	job := func() {
		metrics.ThumbnailQueueDepth.Dec()
		data, err := g.generate(genCtx, key, path, inner, category, size, date, maxSize)
		resCh <- genResult{data: data, err: err}
	}

	select {
	case g.jobs <- job:
	case <-ctx.Done():
		metrics.ThumbnailQueueDepth.Dec()
		return nil, ctx.Err()
	}

	select {
	case res := <-resCh:
		return res.data, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// generate runs the decode/resize/encode/persist path on a pool worker.
func (g *Generator) generate(ctx context.Context, key, path, inner, category string, size, date int64, maxSize int) ([]byte, error) {
	start := time.Now()

	img, _, err := g.resolve(ctx, path, inner, maxSize)
	var thumb []byte
	if err == nil {
		thumb, err = renderThumbnail(img, maxSize)
	}

	if err != nil {
		metrics.ThumbnailRequestsTotal.WithLabelValues(category, "failed").Inc()
		reason := failureReason(err)
		if merr := g.store.MarkFailed(ctx, key, reason, err.Error()); merr != nil {
			logging.Warn("Failed to record thumbnail failure for %s: %v", key, merr)
		}
		logging.Debug("Thumbnail generation failed for %s (%s): %v", key, reason, err)
		if errors.Is(err, ErrNoThumbnail) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrNoThumbnail, err)
	}

	if err := g.store.SaveThumbnail(ctx, key, thumb, size, date, category); err != nil {
		// Still serve the bytes; the next request regenerates.
		logging.Warn("Failed to persist thumbnail for %s: %v", key, err)
	} else if err := g.store.ClearFailure(ctx, key); err != nil {
		logging.Warn("Failed to clear failure record for %s: %v", key, err)
	}

	metrics.ThumbnailRequestsTotal.WithLabelValues(category, "generated").Inc()
	metrics.ThumbnailGenerationDuration.WithLabelValues(category).Observe(time.Since(start).Seconds())
	return thumb, nil
}

// Batch generates thumbnails for several paths concurrently and
// reports per-path success. Individual failures never abort the batch.
func (g *Generator) Batch(ctx context.Context, paths []string, maxSize int) map[string]bool {
	results := make(map[string]bool, len(paths))
	var mu sync.Mutex

	eg := new(errgroup.Group)
	eg.SetLimit(2 * g.workers)
	for _, p := range paths {
		p := p
		eg.Go(func() error {
			_, err := g.Get(ctx, p, "", maxSize)
			mu.Lock()
			results[p] = err == nil
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

// thumbKey is the store key for a source: the path itself, or
// path::inner for archive entries. The same shape DeleteByPath matches
// with its prefix pattern.
func thumbKey(path, inner string) string {
	if inner == "" {
		return path
	}
	return path + "::" + inner
}

func (g *Generator) categoryFor(path, inner string, isDir bool) string {
	if inner != "" {
		return CategoryArchive
	}
	if isDir {
		return CategoryFolder
	}
	switch mediatypes.GetFileType(strings.ToLower(filepath.Ext(path))) {
	case mediatypes.FileTypeArchive, mediatypes.FileTypeEpub:
		return CategoryArchive
	case mediatypes.FileTypeVideo:
		return CategoryVideo
	}
	return CategoryFile
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrDecodeFailure):
		return "decode"
	case errors.Is(err, ErrNoThumbnail):
		return "no_image"
	case errors.Is(err, archive.ErrCorruptArchive),
		errors.Is(err, archive.ErrUnsupportedFormat),
		errors.Is(err, archive.ErrNotFound):
		return "extract"
	}
	return "io"
}
