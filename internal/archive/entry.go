package archive

import (
	"path"
	"sort"
	"strings"
	"time"

	"neoview/internal/mediatypes"

	"github.com/maruel/natural"
)

// Entry describes one file inside an archive.
type Entry struct {
	// Name is the base name of the entry.
	Name string `json:"name"`
	// Path is the inner path, forward-slash normalized.
	Path string `json:"path"`
	// Size is the uncompressed byte size.
	Size int64 `json:"size"`
	// IsDir reports whether the entry is a directory marker.
	IsDir bool `json:"isDir"`
	// IsImage reports whether the entry looks like an image by extension.
	IsImage bool `json:"isImage"`
	// EntryIndex is the dense 0..N-1 position in natural sort order.
	// Reassigned on every listing.
	EntryIndex int `json:"entryIndex"`
	// Modified is the entry modification time, if the format records one.
	Modified *time.Time `json:"modified,omitempty"`
}

// newEntry builds an Entry from raw reader output. The inner path is
// normalized to forward slashes; EntryIndex is assigned later by
// sortEntries.
func newEntry(innerPath string, size int64, modified time.Time) Entry {
	innerPath = strings.ReplaceAll(innerPath, "\\", "/")
	e := Entry{
		Name:    path.Base(innerPath),
		Path:    innerPath,
		Size:    size,
		IsImage: mediatypes.ImageExtensions[strings.ToLower(path.Ext(innerPath))],
	}
	if !modified.IsZero() {
		m := modified
		e.Modified = &m
	}
	return e
}

// sortEntries orders entries naturally (case-insensitive, numeric-run
// aware) by inner path and reassigns a dense EntryIndex.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return natural.Less(strings.ToLower(entries[i].Path), strings.ToLower(entries[j].Path))
	})
	for i := range entries {
		entries[i].EntryIndex = i
	}
}

// normalizeInner converts inner-path separators to forward slashes.
func normalizeInner(inner string) string {
	return strings.ReplaceAll(inner, "\\", "/")
}
