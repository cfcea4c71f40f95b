package fingerprint

import (
	"errors"
	"image"
	"image/color"
	"math"
	"runtime"
	"testing"
)

func solid(n int, p PixelSample) []PixelSample {
	out := make([]PixelSample, n)
	for i := range out {
		out[i] = p
	}
	return out
}

func TestComputeSolidRed(t *testing.T) {
	fp, err := Compute(solid(16, PixelSample{R: 255, A: 255}))
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	want := StyleFingerprint{
		AverageColorHex:   "FF0000",
		HueDegrees:        0,
		SaturationPercent: 100,
		LightnessPercent:  50,
		ContrastPercent:   0,
		WarmRatioPercent:  100,
	}
	if fp != want {
		t.Errorf("Compute() = %+v, want %+v", fp, want)
	}
}

func TestComputeBlackAndWhite(t *testing.T) {
	pixels := []PixelSample{
		{R: 0, G: 0, B: 0, A: 255},
		{R: 255, G: 255, B: 255, A: 255},
	}
	fp, err := Compute(pixels)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if fp.AverageColorHex != "808080" {
		t.Errorf("AverageColorHex = %q, want %q", fp.AverageColorHex, "808080")
	}
	if fp.SaturationPercent != 0 {
		t.Errorf("SaturationPercent = %d, want 0", fp.SaturationPercent)
	}
	if fp.LightnessPercent != 50 {
		t.Errorf("LightnessPercent = %d, want 50", fp.LightnessPercent)
	}
	if fp.ContrastPercent != 100 {
		t.Errorf("ContrastPercent = %d, want 100", fp.ContrastPercent)
	}
	if fp.WarmRatioPercent != 0 {
		t.Errorf("WarmRatioPercent = %d, want 0", fp.WarmRatioPercent)
	}
}

func TestComputeCircularHueMean(t *testing.T) {
	// (255,0,42) sits near 350 degrees and (255,42,0) near 10 degrees.
	var pixels []PixelSample
	for i := 0; i < 50; i++ {
		pixels = append(pixels,
			PixelSample{R: 255, G: 0, B: 42, A: 255},
			PixelSample{R: 255, G: 42, B: 0, A: 255},
		)
	}
	fp, err := Compute(pixels)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if d := hueDistance(fp.HueDegrees, 0); d > 1 {
		t.Errorf("HueDegrees = %d, want about 0 (naive mean would give 180)", fp.HueDegrees)
	}
}

func TestComputeHueAlwaysInRange(t *testing.T) {
	tests := []PixelSample{
		{R: 255, G: 0, B: 1, A: 255},
		{R: 0, G: 255, B: 0, A: 255},
		{R: 0, G: 0, B: 255, A: 255},
		{R: 200, G: 10, B: 220, A: 255},
	}
	for _, p := range tests {
		fp, err := Compute([]PixelSample{p})
		if err != nil {
			t.Fatalf("Compute(%v) error = %v", p, err)
		}
		if fp.HueDegrees < 0 || fp.HueDegrees >= 360 {
			t.Errorf("Compute(%v).HueDegrees = %d, out of [0,360)", p, fp.HueDegrees)
		}
	}
}

func TestComputeWarmRatio(t *testing.T) {
	tests := []struct {
		name   string
		pixels []PixelSample
		want   int
	}{
		{"all warm", solid(10, PixelSample{R: 200, G: 90, B: 20, A: 255}), 100},
		{"all cool", solid(10, PixelSample{R: 20, G: 90, B: 200, A: 255}), 0},
		{"equal red and blue is not warm", solid(10, PixelSample{R: 90, G: 90, B: 90, A: 255}), 0},
		{"half", append(
			solid(5, PixelSample{R: 200, B: 10, A: 255}),
			solid(5, PixelSample{R: 10, B: 200, A: 255})...,
		), 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp, err := Compute(tt.pixels)
			if err != nil {
				t.Fatalf("Compute() error = %v", err)
			}
			if fp.WarmRatioPercent != tt.want {
				t.Errorf("WarmRatioPercent = %d, want %d", fp.WarmRatioPercent, tt.want)
			}
		})
	}
}

func TestComputeIgnoresTransparentPixels(t *testing.T) {
	pixels := append(
		solid(10, PixelSample{R: 0, G: 0, B: 255, A: 12}),
		PixelSample{R: 255, G: 0, B: 0, A: 13},
	)
	fp, err := Compute(pixels)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if fp.AverageColorHex != "FF0000" {
		t.Errorf("AverageColorHex = %q, want %q", fp.AverageColorHex, "FF0000")
	}
}

func TestComputeNoVisiblePixels(t *testing.T) {
	tests := []struct {
		name   string
		pixels []PixelSample
	}{
		{"empty", nil},
		{"all transparent", solid(8, PixelSample{R: 255, G: 255, B: 255, A: 12})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(tt.pixels)
			if !errors.Is(err, ErrNoVisiblePixels) {
				t.Errorf("Compute() error = %v, want ErrNoVisiblePixels", err)
			}
		})
	}
}

func TestComputeIsIdempotent(t *testing.T) {
	pixels := []PixelSample{
		{R: 12, G: 200, B: 45, A: 255},
		{R: 240, G: 10, B: 100, A: 128},
		{R: 60, G: 60, B: 61, A: 30},
	}
	first, err := Compute(pixels)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	second, err := Compute(pixels)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if first != second {
		t.Errorf("Compute() not idempotent: %+v vs %+v", first, second)
	}
}

func TestComputeRGBA(t *testing.T) {
	pix := []byte{
		255, 0, 0, 255,
		255, 0, 0, 255,
		0, 0, 255, 0,
		0, 0, 255, 0,
	}
	fp, err := ComputeRGBA(pix, 2, 2)
	if err != nil {
		t.Fatalf("ComputeRGBA() error = %v", err)
	}
	if fp.AverageColorHex != "FF0000" {
		t.Errorf("AverageColorHex = %q, want %q", fp.AverageColorHex, "FF0000")
	}

	if _, err := ComputeRGBA(pix, 3, 2); !errors.Is(err, ErrInvalidBuffer) {
		t.Errorf("short buffer error = %v, want ErrInvalidBuffer", err)
	}
	if _, err := ComputeRGBA(pix, -1, 2); !errors.Is(err, ErrInvalidBuffer) {
		t.Errorf("negative width error = %v, want ErrInvalidBuffer", err)
	}
}

func TestFromImageMatchesBufferOpaque(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	colors := []color.NRGBA{
		{R: 10, G: 120, B: 200, A: 255},
		{R: 220, G: 120, B: 20, A: 255},
		{R: 90, G: 90, B: 90, A: 255},
		{R: 0, G: 255, B: 0, A: 255},
		{R: 250, G: 250, B: 240, A: 255},
		{R: 30, G: 10, B: 60, A: 255},
	}
	for i, c := range colors {
		img.SetNRGBA(i%3, i/3, c)
	}

	fromBuffer, err := ComputeRGBA(img.Pix, 3, 2)
	if err != nil {
		t.Fatalf("ComputeRGBA() error = %v", err)
	}

	// Opaque pixels survive premultiplication unchanged, so every field
	// must agree with the straight buffer.
	rgba := image.NewRGBA(img.Bounds())
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			rgba.Set(x, y, img.NRGBAAt(x, y))
		}
	}
	fromImage, err := FromImage(rgba)
	if err != nil {
		t.Fatalf("FromImage() error = %v", err)
	}
	if fromImage != fromBuffer {
		t.Errorf("FromImage() = %+v, want %+v", fromImage, fromBuffer)
	}
}

func TestFromImageTranslucentUsesStraightColor(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(0, 0, 3, 1))
	rgba.Set(0, 0, color.NRGBA{R: 30, G: 10, B: 60, A: 200})
	rgba.Set(1, 0, color.NRGBA{R: 200, G: 40, B: 10, A: 128})
	rgba.Set(2, 0, color.NRGBA{R: 0, G: 255, B: 0, A: 5})

	// The premultiplied store is lossy for translucent pixels; the
	// reference is its own straight-alpha reading, not the original input.
	straight := image.NewNRGBA(rgba.Bounds())
	for x := 0; x < 3; x++ {
		straight.SetNRGBA(x, 0, color.NRGBAModel.Convert(rgba.At(x, 0)).(color.NRGBA))
	}
	want, err := ComputeRGBA(straight.Pix, 3, 1)
	if err != nil {
		t.Fatalf("ComputeRGBA() error = %v", err)
	}

	got, err := FromImage(rgba)
	if err != nil {
		t.Fatalf("FromImage() error = %v", err)
	}
	if got != want {
		t.Errorf("FromImage() = %+v, want %+v", got, want)
	}
}

func TestComputeRGBADimensionOverflow(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
	}{
		{"both huge", math.MaxInt / 2, math.MaxInt / 2},
		{"wide", math.MaxInt/2 + 1, 2},
		{"tall", 1, math.MaxInt/4 + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeRGBA(nil, tt.width, tt.height)
			if !errors.Is(err, ErrInvalidBuffer) {
				t.Errorf("ComputeRGBA(nil, %d, %d) error = %v, want ErrInvalidBuffer", tt.width, tt.height, err)
			}
		})
	}

	if _, err := ComputeRGBA(nil, 0, 0); !errors.Is(err, ErrNoVisiblePixels) {
		t.Errorf("empty buffer error = %v, want ErrNoVisiblePixels", err)
	}
}

func TestComputeRGBAMemoryIndependentOfSize(t *testing.T) {
	const side = 1024
	pix := make([]byte, side*side*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = byte(i), byte(i>>8), byte(i>>16), 255
	}

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	if _, err := ComputeRGBA(pix, side, side); err != nil {
		t.Fatalf("ComputeRGBA() error = %v", err)
	}
	runtime.ReadMemStats(&after)

	// A per-pixel hue slice would need 8 MiB here.
	if grew := after.TotalAlloc - before.TotalAlloc; grew > 1<<20 {
		t.Errorf("ComputeRGBA allocated %d bytes for %d pixels", grew, side*side)
	}
}

func hueDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if d > 180 {
		d = 360 - d
	}
	return d
}
