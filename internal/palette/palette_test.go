package palette

import (
	"image"
	"image/color"
	"testing"
)

func twoTone() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			c := color.NRGBA{R: 200, G: 30, B: 30, A: 255}
			if x >= 30 {
				c = color.NRGBA{R: 20, G: 40, B: 220, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    Method
		wantErr bool
	}{
		{"", MethodDominant, false},
		{"dominant", MethodDominant, false},
		{"KMeans", MethodKMeans, false},
		{"median-cut", MethodDominant, true},
	}
	for _, tt := range tests {
		got, err := ParseMethod(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseMethod(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseMethod(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestExtractKMeansOrdersByWeight(t *testing.T) {
	out := Extract(twoTone(), 2, MethodKMeans)
	if len(out) == 0 || len(out) > 2 {
		t.Fatalf("Extract() returned %d swatches, want 1 or 2", len(out))
	}
	total := 0.0
	for i, s := range out {
		if len(s.Hex) != 6 {
			t.Errorf("swatch hex %q is not six digits", s.Hex)
		}
		if i > 0 && out[i-1].Weight < s.Weight {
			t.Errorf("swatches not ordered by weight: %+v", out)
		}
		total += s.Weight
	}
	if total < 0.999 || total > 1.001 {
		t.Errorf("weights sum to %f, want 1", total)
	}
}

func TestExtractDominant(t *testing.T) {
	out := Extract(twoTone(), 3, MethodDominant)
	if len(out) == 0 {
		t.Fatal("Extract() returned no swatches")
	}
	for _, s := range out {
		if len(s.Hex) != 6 {
			t.Errorf("swatch hex %q is not six digits", s.Hex)
		}
	}
}

func TestExtractZeroK(t *testing.T) {
	if out := Extract(twoTone(), 0, MethodDominant); out != nil {
		t.Errorf("Extract(k=0) = %v, want nil", out)
	}
}

func TestMeanHue(t *testing.T) {
	tests := []struct {
		name     string
		swatches []Swatch
		want     int
		ok       bool
	}{
		{"weighted", []Swatch{{Hex: "FF0000", Weight: 0.75}, {Hex: "00FF00", Weight: 0.25}}, 19, true},
		{"across the seam", []Swatch{{Hex: "FF002B", Weight: 0.5}, {Hex: "FF2B00", Weight: 0.5}}, 0, true},
		{"greys skipped", []Swatch{{Hex: "808080", Weight: 0.9}, {Hex: "0000FF", Weight: 0.1}}, 240, true},
		{"zero weight skipped", []Swatch{{Hex: "00FF00", Weight: 0}, {Hex: "FF0000", Weight: 1}}, 0, true},
		{"only greys", []Swatch{{Hex: "FFFFFF", Weight: 0.5}, {Hex: "000000", Weight: 0.5}}, 0, false},
		{"bad hex", []Swatch{{Hex: "zz", Weight: 1}}, 0, false},
		{"empty", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MeanHue(tt.swatches)
			if ok != tt.ok || got != tt.want {
				t.Errorf("MeanHue() = %d, %v, want %d, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}
