// Package imaging is the caller-side plumbing in front of the fingerprint
// code: decoding uploads and bounding the sample size.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultSampleMaxSide bounds the longer side of the buffer handed to the
// fingerprint aggregator.
const DefaultSampleMaxSide = 192

var ErrUnsupportedFormat = errors.New("unsupported image format")

// Decode returns the image and the registered format name.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty payload", ErrUnsupportedFormat)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, http.DetectContentType(data))
		}
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// Downsample scales img so its longer side is at most maxSide. It never
// upscales and always returns a fresh zero-origin NRGBA with a tight stride.
func Downsample(img image.Image, maxSide int) *image.NRGBA {
	if maxSide <= 0 {
		maxSide = DefaultSampleMaxSide
	}
	b := img.Bounds()
	w, h := TargetSize(b.Dx(), b.Dy(), maxSide)

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// TargetSize keeps the aspect ratio while fitting the longer side into
// maxSide. Each side stays at least one pixel.
func TargetSize(width, height, maxSide int) (int, int) {
	if width <= 0 || height <= 0 {
		return 0, 0
	}
	longer := max(width, height)
	if longer <= maxSide {
		return width, height
	}
	scale := float64(maxSide) / float64(longer)
	w := max(1, int(float64(width)*scale+0.5))
	h := max(1, int(float64(height)*scale+0.5))
	return w, h
}

// DetectMIME trusts a declared image/* content type and sniffs otherwise.
func DetectMIME(data []byte, declared string) string {
	mimeType := strings.TrimSpace(declared)
	if strings.Contains(mimeType, ";") {
		mimeType = strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if strings.Contains(mimeType, ";") {
		mimeType = strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = "image/jpeg"
	}
	return mimeType
}
