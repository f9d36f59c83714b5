package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"neoview/internal/archive"
	"neoview/internal/database"
	"neoview/internal/handlers"
	"neoview/internal/logging"
	"neoview/internal/middleware"
	"neoview/internal/startup"
	"neoview/internal/thumbnailer"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Initialize thumbnail store
	storeStart := time.Now()
	store, err := database.Open(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize thumbnail store: %v", err)
	}
	defer store.Close()
	startup.LogDatabaseInit(time.Since(storeStart))

	// Initialize archive manager
	archives := archive.NewManager(archive.Config{
		TempDir: config.TempDir,
	})
	defer archives.Close()

	// Watch the media tree so external edits to archives drop stale
	// cache state
	var watcher *archive.Watcher
	if config.WatchMedia {
		watcher, err = archive.NewWatcher(archives, config.MediaDir)
		if err != nil {
			logging.Warn("Media watcher unavailable: %v", err)
		} else {
			defer watcher.Close()
		}
	}

	// Initialize thumbnailer
	startup.LogThumbnailerInit()
	if err := thumbnailer.InitVips(); err != nil {
		logging.Warn("libvips unavailable, using pure-Go decoding: %v", err)
	}
	defer thumbnailer.ShutdownVips()

	thumbs := thumbnailer.NewGenerator(store, archives, thumbnailer.Options{})
	defer thumbs.Close()

	// Periodic maintenance: temp sweep, store aging, failure record
	// cleanup
	maintenanceDone := make(chan struct{})
	go runMaintenance(config, store, archives, maintenanceDone)

	// Initialize handlers
	h := handlers.New(store, archives, thumbs, config)

	// Setup router
	router := setupRouter(h)

	// Log routes dynamically
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	// Apply metrics middleware
	var handler http.Handler = router
	if config.MetricsEnabled {
		handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)
	}

	// Apply logging middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler = middleware.Logger(loggingConfig)(handler)

	// Apply compression middleware
	handler = middleware.Compression(middleware.DefaultCompressionConfig())(handler)

	// Create server
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Metrics server on its own port
	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:         ":" + config.MetricsPort,
			Handler:      metricsMux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, metricsSrv, thumbs, archives, maintenanceDone)

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Archive access
	api.HandleFunc("/archive/entries", h.ListArchive).Methods("GET")
	api.HandleFunc("/archive/entry", h.GetArchiveEntry).Methods("GET")
	api.HandleFunc("/archive/entry", h.DeleteArchiveEntry).Methods("DELETE")
	api.HandleFunc("/archive/entry/temp", h.ExtractToTemp).Methods("POST")
	api.HandleFunc("/archive/invalidate", h.InvalidateArchive).Methods("POST")
	api.HandleFunc("/archive/stats", h.ArchiveStats).Methods("GET")

	// Thumbnails
	api.HandleFunc("/thumbnail", h.GetThumbnail).Methods("GET")
	api.HandleFunc("/thumbnail", h.DeleteThumbnails).Methods("DELETE")
	api.HandleFunc("/thumbnail/batch", h.BatchThumbnails).Methods("POST")
	api.HandleFunc("/thumbnail/clear", h.ClearThumbnails).Methods("POST")
	api.HandleFunc("/thumbnail/stats", h.ThumbnailStats).Methods("GET")

	// Sidecar metadata
	api.HandleFunc("/sidecar", h.GetSidecar).Methods("GET")
	api.HandleFunc("/sidecar", h.SetSidecar).Methods("PUT")
	api.HandleFunc("/sidecar", h.DeleteSidecar).Methods("DELETE")

	return r
}

// runMaintenance periodically sweeps issued temp files, ages out cold
// thumbnails and drops stale failure records.
func runMaintenance(config *startup.Config, store *database.Store, archives *archive.Manager, done chan struct{}) {
	ticker := time.NewTicker(config.MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		archives.SweepTemp()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		if removed, err := store.DeleteOld(ctx, config.ThumbnailMaxAge, config.ThumbnailMaxCount); err != nil {
			logging.Warn("Maintenance: thumbnail aging failed: %v", err)
		} else if removed > 0 {
			logging.Info("Maintenance: removed %d cold thumbnails", removed)
		}
		if removed, err := store.CleanupFailures(ctx, config.FailureMaxAge); err != nil {
			logging.Warn("Maintenance: failure cleanup failed: %v", err)
		} else if removed > 0 {
			logging.Info("Maintenance: removed %d stale failure records", removed)
		}
		cancel()
	}
}

func handleShutdown(srv, metricsSrv *http.Server, thumbs *thumbnailer.Generator, archives *archive.Manager, maintenanceDone chan struct{}) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	close(maintenanceDone)

	startup.LogShutdownStep("Draining thumbnail workers")
	thumbs.Close()
	startup.LogShutdownStepComplete("Thumbnail workers drained")

	startup.LogShutdownStep("Releasing archive handles and temp files")
	archives.Close()
	startup.LogShutdownStepComplete("Archive caches released")

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}

	startup.LogShutdownComplete()
}
