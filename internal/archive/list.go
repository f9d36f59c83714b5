package archive

import (
	"errors"
	"io"
	"strings"

	"neoview/internal/logging"

	"github.com/bodgit/sevenzip"
	"github.com/nwaples/rardecode/v2"
)

// listZip enumerates non-directory entries of a zip archive through the
// shared handle cache.
func (m *Manager) listZip(path string) ([]Entry, error) {
	rc, err := m.handles.get(path)
	if err != nil {
		return nil, mapOpenErr(path, err)
	}

	entries := make([]Entry, 0, len(rc.File))
	for _, f := range rc.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		entries = append(entries, newEntry(f.Name, int64(f.UncompressedSize64), f.Modified))
	}
	return entries, nil
}

// listSevenZip enumerates non-directory entries of a 7z archive.
func listSevenZip(path string) ([]Entry, error) {
	rc, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, mapOpenErr(path, err)
	}
	defer func() {
		if err := rc.Close(); err != nil {
			logging.Warn("archive: closing 7z reader %s: %v", path, err)
		}
	}()

	entries := make([]Entry, 0, len(rc.File))
	for _, f := range rc.File {
		if f.FileInfo().IsDir() {
			continue
		}
		entries = append(entries, newEntry(f.Name, f.FileInfo().Size(), f.Modified))
	}
	return entries, nil
}

// listRar enumerates non-directory entries of a rar archive. The
// decoder walks headers sequentially without unpacking payloads.
func listRar(path string) ([]Entry, error) {
	rc, err := rardecode.OpenReader(path)
	if err != nil {
		return nil, mapOpenErr(path, err)
	}
	defer func() {
		if err := rc.Close(); err != nil {
			logging.Warn("archive: closing rar reader %s: %v", path, err)
		}
	}()

	var entries []Entry
	for {
		hdr, err := rc.Next()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}
		if hdr.IsDir {
			continue
		}
		entries = append(entries, newEntry(hdr.Name, hdr.UnPackedSize, hdr.ModificationTime))
	}
}
