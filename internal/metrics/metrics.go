package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Archive access metrics
var (
	ArchiveListTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neoview_archive_list_total",
			Help: "Total number of archive listing operations",
		},
		[]string{"format", "status"},
	)

	ArchiveExtractTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neoview_archive_extract_total",
			Help: "Total number of archive entry extractions",
		},
		[]string{"format", "backend", "status"},
	)

	ArchiveExtractDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "neoview_archive_extract_duration_seconds",
			Help:    "Archive entry extraction duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"format"},
	)

	ArchiveCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neoview_archive_cache_hits_total",
			Help: "Archive cache hits by cache layer (index, handle, extract)",
		},
		[]string{"cache"},
	)

	ArchiveCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neoview_archive_cache_misses_total",
			Help: "Archive cache misses by cache layer (index, handle, extract)",
		},
		[]string{"cache"},
	)

	ExtractCacheBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "neoview_extract_cache_resident_bytes",
			Help: "Bytes currently resident in the extract cache",
		},
	)

	ExtractCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "neoview_extract_cache_evictions_total",
			Help: "Total number of extract cache evictions",
		},
	)
)

// Thumbnail pipeline metrics
var (
	ThumbnailRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neoview_thumbnail_requests_total",
			Help: "Thumbnail requests by outcome (hit, generated, failed, skipped)",
		},
		[]string{"category", "outcome"},
	)

	ThumbnailGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "neoview_thumbnail_generation_duration_seconds",
			Help:    "Thumbnail generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"category"},
	)

	ThumbnailQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "neoview_thumbnail_queue_depth",
			Help: "Number of thumbnail jobs waiting for a worker",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neoview_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "neoview_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBThumbnailBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "neoview_db_thumbnail_bytes",
			Help: "Total bytes of thumbnail blobs in the store",
		},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neoview_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "neoview_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "neoview_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)
)
