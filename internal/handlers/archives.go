package handlers

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"neoview/internal/logging"
	"neoview/internal/mediatypes"
)

// ListArchive returns the sorted entry listing for an archive.
// GET /api/archive/entries?path=<rel>&cache=<bool>
func (h *Handlers) ListArchive(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	path, err := h.resolveMediaPath(r.URL.Query().Get("path"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	useCache := true
	if v, err := strconv.ParseBool(r.URL.Query().Get("cache")); err == nil {
		useCache = v
	}

	entries, err := h.archives.ListEntries(r.Context(), path, useCache)
	if err != nil {
		logging.Error("ListArchive %s: %v", path, err)
		writeArchiveError(w, err)
		return
	}

	logging.Debug("ListArchive %s: %d entries in %v", path, len(entries), time.Since(start))

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]interface{}{
		"path":    r.URL.Query().Get("path"),
		"count":   len(entries),
		"entries": entries,
	})
}

// GetArchiveEntry extracts a single entry and serves its bytes.
// GET /api/archive/entry?path=<rel>&inner=<entry>
func (h *Handlers) GetArchiveEntry(w http.ResponseWriter, r *http.Request) {
	path, err := h.resolveMediaPath(r.URL.Query().Get("path"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	inner := r.URL.Query().Get("inner")
	if inner == "" {
		writeJSONError(w, "inner is required", http.StatusBadRequest)
		return
	}

	data, err := h.archives.Extract(r.Context(), path, inner)
	if err != nil {
		logging.Error("GetArchiveEntry %s::%s: %v", path, inner, err)
		writeArchiveError(w, err)
		return
	}

	w.Header().Set("Content-Type", mediatypes.GetMimeType(strings.ToLower(filepath.Ext(inner))))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := w.Write(data); err != nil {
		logging.Debug("GetArchiveEntry write failed: %v", err)
	}
}

// ExtractToTemp materializes an archive entry as a temp file and
// returns its path, for clients that need a real file on disk.
// POST /api/archive/entry/temp?path=<rel>&inner=<entry>
func (h *Handlers) ExtractToTemp(w http.ResponseWriter, r *http.Request) {
	path, err := h.resolveMediaPath(r.URL.Query().Get("path"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	inner := r.URL.Query().Get("inner")
	if inner == "" {
		writeJSONError(w, "inner is required", http.StatusBadRequest)
		return
	}

	tmpPath, err := h.archives.ExtractToTemp(r.Context(), path, inner)
	if err != nil {
		logging.Error("ExtractToTemp %s::%s: %v", path, inner, err)
		writeArchiveError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"tempPath": tmpPath})
}

// DeleteArchiveEntry removes one entry from a zip archive by rewriting
// it, then drops the stale thumbnails for the archive.
// DELETE /api/archive/entry?path=<rel>&inner=<entry>
func (h *Handlers) DeleteArchiveEntry(w http.ResponseWriter, r *http.Request) {
	path, err := h.resolveMediaPath(r.URL.Query().Get("path"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	inner := r.URL.Query().Get("inner")
	if inner == "" {
		writeJSONError(w, "inner is required", http.StatusBadRequest)
		return
	}

	if err := h.archives.DeleteEntry(r.Context(), path, inner); err != nil {
		logging.Error("DeleteArchiveEntry %s::%s: %v", path, inner, err)
		writeArchiveError(w, err)
		return
	}

	// The archive's bytes changed, so every thumbnail keyed under it is
	// stale.
	if err := h.store.DeleteByPath(r.Context(), path); err != nil {
		logging.Warn("DeleteArchiveEntry: failed to drop thumbnails for %s: %v", path, err)
	}

	writeJSONStatus(w, "deleted")
}

// InvalidateArchive drops cached state for one archive, or for all
// archives when no path is given.
// POST /api/archive/invalidate?path=<rel>
func (h *Handlers) InvalidateArchive(w http.ResponseWriter, r *http.Request) {
	rel := r.URL.Query().Get("path")
	if rel == "" {
		h.archives.InvalidateAll()
		writeJSONStatus(w, "invalidated_all")
		return
	}

	path, err := h.resolveMediaPath(rel)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.archives.Invalidate(path)
	writeJSONStatus(w, "invalidated")
}

// ArchiveStats reports cache occupancy for the archive layer.
// GET /api/archive/stats
func (h *Handlers) ArchiveStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.archives.Stats())
}
