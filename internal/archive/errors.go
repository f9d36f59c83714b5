package archive

import "errors"

var (
	// ErrNotFound indicates a missing archive file or inner entry.
	ErrNotFound = errors.New("archive or entry not found")

	// ErrUnsupportedFormat indicates the path does not map to a supported
	// archive format, or the operation is not available for the format.
	ErrUnsupportedFormat = errors.New("unsupported archive format")

	// ErrCorruptArchive indicates the archive could not be parsed.
	ErrCorruptArchive = errors.New("corrupt archive")
)
