package archive

import (
	"path/filepath"
	"strings"
)

// Format identifies an archive container format.
type Format string

const (
	// FormatZip covers .zip and .cbz archives, and .epub books, which
	// are zip containers.
	FormatZip Format = "zip"
	// FormatRar covers .rar and .cbr archives.
	FormatRar Format = "rar"
	// FormatSevenZip covers .7z and .cb7 archives.
	FormatSevenZip Format = "7z"
	// FormatUnsupported is returned for everything else.
	FormatUnsupported Format = ""
)

// DetectFormat maps a file extension to its archive format.
// Unsupported paths yield FormatUnsupported; every operation on such a
// path fails with ErrUnsupportedFormat.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip", ".cbz", ".epub":
		return FormatZip
	case ".rar", ".cbr":
		return FormatRar
	case ".7z", ".cb7":
		return FormatSevenZip
	}
	return FormatUnsupported
}
