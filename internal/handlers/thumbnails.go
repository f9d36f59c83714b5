package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"neoview/internal/archive"
	"neoview/internal/logging"
	"neoview/internal/thumbnailer"
)

// GetThumbnail serves the thumbnail for a file, folder, video, archive,
// or archive entry.
// GET /api/thumbnail?path=<rel>&inner=<entry>&maxSize=<px>
//
// Sources that cannot yield a thumbnail answer 204 so the client shows
// its placeholder icon without logging an error.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	path, err := h.resolveMediaPath(r.URL.Query().Get("path"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	inner := r.URL.Query().Get("inner")
	maxSize := parseMaxSize(r)

	data, err := h.thumbs.Get(r.Context(), path, inner, maxSize)
	if err != nil {
		switch {
		case errors.Is(err, thumbnailer.ErrNoThumbnail):
			logging.Debug("GetThumbnail %s: %v", path, err)
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, archive.ErrNotFound):
			writeJSONError(w, "not found", http.StatusNotFound)
		case errors.Is(err, r.Context().Err()):
			// Client went away; nothing sensible to write.
		default:
			logging.Error("GetThumbnail %s: %v", path, err)
			writeJSONError(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	logging.Debug("GetThumbnail %s served %d bytes in %v", path, len(data), time.Since(start))

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	if _, err := w.Write(data); err != nil {
		logging.Debug("GetThumbnail write failed: %v", err)
	}
}

// BatchThumbnails pre-generates thumbnails for a list of paths and
// reports per-path success.
// POST /api/thumbnail/batch  {"paths": ["a.jpg", "comics/b.cbz"], "maxSize": 256}
func (h *Handlers) BatchThumbnails(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Paths   []string `json:"paths"`
		MaxSize int      `json:"maxSize"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Paths) == 0 {
		writeJSONError(w, "paths is required", http.StatusBadRequest)
		return
	}

	// Resolve up front so one bad path does not waste pool time.
	resolved := make(map[string]string, len(req.Paths))
	results := make(map[string]bool, len(req.Paths))
	abs := make([]string, 0, len(req.Paths))
	for _, rel := range req.Paths {
		p, err := h.resolveMediaPath(rel)
		if err != nil {
			results[rel] = false
			continue
		}
		resolved[p] = rel
		abs = append(abs, p)
	}

	for p, ok := range h.thumbs.Batch(r.Context(), abs, req.MaxSize) {
		results[resolved[p]] = ok
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]interface{}{"results": results})
}

// DeleteThumbnails drops cached thumbnails and failure records for a
// path, including entries inside it when it is an archive.
// DELETE /api/thumbnail?path=<rel>
func (h *Handlers) DeleteThumbnails(w http.ResponseWriter, r *http.Request) {
	path, err := h.resolveMediaPath(r.URL.Query().Get("path"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.store.DeleteByPath(r.Context(), path); err != nil {
		logging.Error("DeleteThumbnails %s: %v", path, err)
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, "deleted")
}

// ClearThumbnails empties the thumbnail cache, optionally limited to
// one source category. Clearing everything also resets failure records.
// POST /api/thumbnail/clear?category=<file|folder|archive|video>
func (h *Handlers) ClearThumbnails(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	if err := h.store.ClearCache(r.Context(), category); err != nil {
		logging.Error("ClearThumbnails (category=%q): %v", category, err)
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}

	logging.Info("Thumbnail cache cleared (category=%q)", category)
	writeJSONStatus(w, "cleared")
}

// ThumbnailStats reports store occupancy grouped by category.
// GET /api/thumbnail/stats
func (h *Handlers) ThumbnailStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		logging.Error("ThumbnailStats: %v", err)
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, stats)
}

// parseMaxSize reads the optional maxSize query parameter. Zero means
// the generator default; junk values fall back the same way.
func parseMaxSize(r *http.Request) int {
	if v, err := strconv.Atoi(r.URL.Query().Get("maxSize")); err == nil && v > 0 {
		return v
	}
	return 0
}
