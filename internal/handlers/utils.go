package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"neoview/internal/archive"
	"neoview/internal/logging"
)

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, map[string]string{"error": message})
}

// writeJSONStatus writes a simple status response as JSON.
func writeJSONStatus(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": status})
}

// resolveMediaPath turns a client-supplied relative path into an
// absolute path confined to the media directory.
func (h *Handlers) resolveMediaPath(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("path is required")
	}

	abs, err := filepath.Abs(filepath.Join(h.mediaDir, filepath.FromSlash(rel)))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	if !isSubPath(h.mediaDir, abs) {
		return "", fmt.Errorf("path outside media directory")
	}
	return abs, nil
}

// isSubPath reports whether target lies inside base (or is base itself).
func isSubPath(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "..")
}

// writeArchiveError maps archive layer sentinels to HTTP status codes.
func writeArchiveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, archive.ErrNotFound):
		writeJSONError(w, "not found", http.StatusNotFound)
	case errors.Is(err, archive.ErrUnsupportedFormat):
		writeJSONError(w, "unsupported archive format", http.StatusUnsupportedMediaType)
	case errors.Is(err, archive.ErrCorruptArchive):
		writeJSONError(w, "corrupt archive", http.StatusUnprocessableEntity)
	default:
		writeJSONError(w, "internal error", http.StatusInternalServerError)
	}
}
