package thumbnailer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"github.com/disintegration/imaging"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Quality is the fixed JPEG quality for encoded thumbnails.
const Quality = 85

// decodeImage decodes raw source bytes, preferring the vips fast path
// (decode-time shrinking) when available.
func (g *Generator) decodeImage(data []byte, maxSize int) (image.Image, error) {
	g.decodes.Add(1)

	if IsVipsAvailable() {
		if img, err := decodeWithVips(data, maxSize); err == nil {
			return img, nil
		}
		// vips rejects some inputs the pure-Go decoders accept; fall
		// through rather than fail.
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	return img, nil
}

// renderThumbnail turns a decoded image into encoded thumbnail bytes:
// alpha flattened onto an opaque background, longer edge bounded to
// maxSize with aspect preserved, never upscaled, JPEG at fixed quality.
func renderThumbnail(img image.Image, maxSize int) ([]byte, error) {
	img = flatten(img)

	bounds := img.Bounds()
	if bounds.Dx() > maxSize || bounds.Dy() > maxSize {
		img = imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// flatten composites any alpha channel onto a white background.
func flatten(img image.Image) image.Image {
	if opaque, ok := img.(interface{ Opaque() bool }); ok && opaque.Opaque() {
		return img
	}
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, bounds, img, bounds.Min, draw.Over)
	return out
}
