package handlers

import (
	"net/http"
	"runtime"
	"time"

	"neoview/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	// Store summary
	Thumbnails   int64 `json:"thumbnails"`
	FailedCount  int64 `json:"failedThumbnails"`
	StoreBytes   int64 `json:"storeBytes"`
	CachedLists  int   `json:"cachedListings"`
	ExtractBytes int64 `json:"extractCacheBytes"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	cacheStats := h.archives.Stats()

	response := HealthResponse{
		Status:       statusHealthy,
		Ready:        true,
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		CachedLists:  cacheStats.IndexedArchives,
		ExtractBytes: cacheStats.ExtractBytes,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	storeStats, err := h.store.Stats(r.Context())
	if err != nil {
		// The store is required; a failing store means degraded, not
		// dead.
		response.Status = statusDegraded
	} else {
		response.Thumbnails = storeStats.Count
		response.FailedCount = storeStats.Failed
		response.StoreBytes = storeStats.TotalBytes
	}

	w.Header().Set("Content-Type", "application/json")
	if response.Status == statusDegraded {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the store answers queries
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := h.store.Stats(r.Context()); err == nil {
		w.WriteHeader(http.StatusOK)
		writeJSON(w, map[string]string{
			"status": "ready",
		})
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{
			"status": "not_ready",
		})
	}
}
