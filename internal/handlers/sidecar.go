package handlers

import (
	"encoding/json"
	"net/http"

	"neoview/internal/database"
	"neoview/internal/logging"
)

// GetSidecar returns user metadata (rating, manual tags) for a path.
// GET /api/sidecar?path=<rel>
func (h *Handlers) GetSidecar(w http.ResponseWriter, r *http.Request) {
	path, err := h.resolveMediaPath(r.URL.Query().Get("path"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	sc, err := h.store.GetSidecar(r.Context(), path)
	if err != nil {
		logging.Error("GetSidecar %s: %v", path, err)
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if sc == nil {
		writeJSONError(w, "no sidecar data", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, sc)
}

// SetSidecar upserts user metadata for a path.
// PUT /api/sidecar?path=<rel>  {"rating": "5", "manualTags": "a,b"}
func (h *Handlers) SetSidecar(w http.ResponseWriter, r *http.Request) {
	path, err := h.resolveMediaPath(r.URL.Query().Get("path"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var body struct {
		Rating     string `json:"rating"`
		ManualTags string `json:"manualTags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sc := &database.Sidecar{
		Key:        path,
		Rating:     body.Rating,
		ManualTags: body.ManualTags,
	}
	if err := h.store.SetSidecar(r.Context(), sc); err != nil {
		logging.Error("SetSidecar %s: %v", path, err)
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, "saved")
}

// DeleteSidecar removes user metadata for a path.
// DELETE /api/sidecar?path=<rel>
func (h *Handlers) DeleteSidecar(w http.ResponseWriter, r *http.Request) {
	path, err := h.resolveMediaPath(r.URL.Query().Get("path"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.store.DeleteSidecar(r.Context(), path); err != nil {
		logging.Error("DeleteSidecar %s: %v", path, err)
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, "deleted")
}
