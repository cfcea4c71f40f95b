// Package fingerprint reduces a reference image to a compact style summary:
// dominant color, circular-mean hue, saturation, lightness, contrast and
// warm/cool balance. Everything here is a pure function of the pixels.
package fingerprint

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// VisibleAlpha is the normalized alpha a pixel needs to take part in the
// statistics (12.75 / 255).
const VisibleAlpha = 0.05

var (
	ErrNoVisiblePixels = errors.New("no visible pixels")
	ErrInvalidBuffer   = errors.New("invalid pixel buffer")
)

type PixelSample struct {
	R, G, B, A uint8
}

// StyleFingerprint is returned by value and never mutated after Compute.
type StyleFingerprint struct {
	AverageColorHex   string `json:"average_color_hex"`
	HueDegrees        int    `json:"hue_degrees"`
	SaturationPercent int    `json:"saturation_percent"`
	LightnessPercent  int    `json:"lightness_percent"`
	ContrastPercent   int    `json:"contrast_percent"`
	WarmRatioPercent  int    `json:"warm_ratio_percent"`
}

func (f StyleFingerprint) String() string {
	return fmt.Sprintf("#%s hue=%d sat=%d%% light=%d%% contrast=%d%% warm=%d%%",
		f.AverageColorHex, f.HueDegrees, f.SaturationPercent, f.LightnessPercent, f.ContrastPercent, f.WarmRatioPercent)
}

func Compute(pixels []PixelSample) (StyleFingerprint, error) {
	acc := newAccumulator()
	for _, p := range pixels {
		acc.add(p)
	}
	return acc.fingerprint()
}

// ComputeRGBA reads a row-major, non-premultiplied RGBA buffer with 8-bit
// channels. Memory use does not grow with the buffer size.
func ComputeRGBA(pix []byte, width, height int) (StyleFingerprint, error) {
	if width < 0 || height < 0 {
		return StyleFingerprint{}, fmt.Errorf("%w: negative dimensions %dx%d", ErrInvalidBuffer, width, height)
	}
	if width > 0 && height > math.MaxInt/4/width {
		return StyleFingerprint{}, fmt.Errorf("%w: dimensions %dx%d overflow", ErrInvalidBuffer, width, height)
	}
	n := width * height
	if len(pix) < n*4 {
		return StyleFingerprint{}, fmt.Errorf("%w: %d bytes for %dx%d", ErrInvalidBuffer, len(pix), width, height)
	}

	acc := newAccumulator()
	for i := 0; i < n; i++ {
		off := i * 4
		acc.add(PixelSample{R: pix[off], G: pix[off+1], B: pix[off+2], A: pix[off+3]})
	}
	return acc.fingerprint()
}

// FromImage samples every pixel of img through the NRGBA model so that
// translucent pixels keep their straight (non-premultiplied) color.
func FromImage(img image.Image) (StyleFingerprint, error) {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Stride == nrgba.Rect.Dx()*4 {
		return ComputeRGBA(nrgba.Pix, nrgba.Rect.Dx(), nrgba.Rect.Dy())
	}

	b := img.Bounds()
	acc := newAccumulator()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			acc.add(PixelSample{R: c.R, G: c.G, B: c.B, A: c.A})
		}
	}
	return acc.fingerprint()
}

type accumulator struct {
	r, g, b    float64
	sat, light float64
	minL, maxL float64
	warm       int
	count      int
	// unit hue vectors, summed
	sinH, cosH float64
}

func newAccumulator() *accumulator {
	return &accumulator{
		minL: math.Inf(1),
		maxL: math.Inf(-1),
	}
}

func (a *accumulator) add(p PixelSample) {
	if float64(p.A)/255.0 < VisibleAlpha {
		return
	}

	c := colorful.Color{
		R: float64(p.R) / 255.0,
		G: float64(p.G) / 255.0,
		B: float64(p.B) / 255.0,
	}
	h, s, l := c.Hsl()

	a.r += float64(p.R)
	a.g += float64(p.G)
	a.b += float64(p.B)
	a.sat += s
	a.light += l
	a.minL = min(a.minL, l)
	a.maxL = max(a.maxL, l)
	if p.R > p.B {
		a.warm++
	}
	sin, cos := math.Sincos(h * math.Pi / 180.0)
	a.sinH += sin
	a.cosH += cos
	a.count++
}

func (a *accumulator) fingerprint() (StyleFingerprint, error) {
	if a.count == 0 {
		return StyleFingerprint{}, ErrNoVisiblePixels
	}
	n := float64(a.count)

	// atan2 of the summed sin/cos components; an arithmetic mean of degrees
	// breaks across the 0/360 seam.
	meanHue := math.Atan2(a.sinH/n, a.cosH/n) * 180.0 / math.Pi

	return StyleFingerprint{
		AverageColorHex:   fmt.Sprintf("%02X%02X%02X", channel(a.r/n), channel(a.g/n), channel(a.b/n)),
		HueDegrees:        wrapDegrees(int(math.Round(meanHue))),
		SaturationPercent: percent(a.sat / n),
		LightnessPercent:  percent(a.light / n),
		ContrastPercent:   percent(a.maxL - a.minL),
		WarmRatioPercent:  percent(float64(a.warm) / n),
	}, nil
}

func channel(v float64) uint8 {
	return uint8(max(0, min(255, math.Round(v))))
}

func percent(v float64) int {
	return max(0, min(100, int(math.Round(v*100))))
}

func wrapDegrees(d int) int {
	return ((d % 360) + 360) % 360
}
