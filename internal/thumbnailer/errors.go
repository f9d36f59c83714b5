package thumbnailer

import "errors"

var (
	// ErrNoThumbnail means no thumbnail could be produced for the key.
	// It is placeholder-worthy: callers render a generic icon instead of
	// treating it as a hard error, and a batch never aborts on it.
	ErrNoThumbnail = errors.New("no thumbnail available")

	// ErrDecodeFailure indicates the source bytes could not be decoded
	// into an image (or no decodable video frame was found).
	ErrDecodeFailure = errors.New("decode failure")
)
