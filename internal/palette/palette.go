// Package palette extracts display swatches from a reference image. The
// swatches are shown next to the fingerprint; they never feed the
// instruction text, so kmeans randomness cannot leak into the prompt.
package palette

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"slices"
	"strings"

	"github.com/cenkalti/dominantcolor"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
	"gonum.org/v1/gonum/stat"
)

// minHueSaturation keeps near-grey swatches, whose hue is noise, out of
// MeanHue.
const minHueSaturation = 0.05

type Method int

const (
	MethodDominant Method = iota
	MethodKMeans
)

func (m Method) String() string {
	switch m {
	case MethodKMeans:
		return "kmeans"
	default:
		return "dominant"
	}
}

func ParseMethod(value string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "dominant", "dominantcolor":
		return MethodDominant, nil
	case "kmeans", "k-means":
		return MethodKMeans, nil
	default:
		return MethodDominant, fmt.Errorf("unknown palette method %q", value)
	}
}

type Swatch struct {
	Hex    string  `json:"hex"`
	Weight float64 `json:"weight"`
}

// Extract returns up to k swatches, heaviest first. KMeans falls back to
// the dominant-color finder when clustering yields nothing.
func Extract(img image.Image, k int, method Method) []Swatch {
	if k <= 0 || img == nil {
		return nil
	}
	if method == MethodKMeans {
		if out := extractKMeans(img, k); len(out) > 0 {
			return out
		}
	}
	return extractDominant(img, k)
}

func extractDominant(img image.Image, k int) []Swatch {
	found := dominantcolor.FindWeight(img, k)
	out := make([]Swatch, 0, len(found))
	for _, c := range found {
		out = append(out, Swatch{Hex: hexOf(c.RGBA), Weight: c.Weight})
	}
	sortByWeight(out)
	return out
}

func extractKMeans(img image.Image, k int) []Swatch {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width == 0 || height == 0 {
		return nil
	}

	// Subsample so clustering stays cheap on full-size uploads.
	const maxSamples = 12000
	step := 1
	if width*height > maxSamples {
		step = int(math.Sqrt(float64(width*height)/float64(maxSamples))) + 1
	}

	dataset := make(clusters.Observations, 0, min(width*height, maxSamples))
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if c.A == 0 {
				continue
			}
			dataset = append(dataset, clusters.Coordinates{
				float64(c.R) / 255.0,
				float64(c.G) / 255.0,
				float64(c.B) / 255.0,
			})
		}
	}
	if len(dataset) == 0 {
		return nil
	}

	cc, err := kmeans.New().Partition(dataset, min(k, len(dataset)))
	if err != nil || len(cc) == 0 {
		return nil
	}

	total := float64(len(dataset))
	out := make([]Swatch, 0, len(cc))
	for _, c := range cc {
		if len(c.Center) < 3 || len(c.Observations) == 0 {
			continue
		}
		col := colorful.Color{R: c.Center[0], G: c.Center[1], B: c.Center[2]}.Clamped()
		out = append(out, Swatch{
			Hex:    strings.ToUpper(strings.TrimPrefix(col.Hex(), "#")),
			Weight: float64(len(c.Observations)) / total,
		})
	}
	sortByWeight(out)
	return out
}

// MeanHue is the weight-averaged circular hue of the swatches in degrees,
// in [0,360). ok is false when no swatch carries a usable hue.
func MeanHue(swatches []Swatch) (deg int, ok bool) {
	hues := make([]float64, 0, len(swatches))
	weights := make([]float64, 0, len(swatches))
	for _, s := range swatches {
		if s.Weight <= 0 {
			continue
		}
		c, err := colorful.Hex("#" + s.Hex)
		if err != nil {
			continue
		}
		h, sat, _ := c.Hsl()
		if sat < minHueSaturation {
			continue
		}
		hues = append(hues, h*math.Pi/180.0)
		weights = append(weights, s.Weight)
	}
	if len(hues) == 0 {
		return 0, false
	}

	d := int(math.Round(stat.CircularMean(hues, weights) * 180.0 / math.Pi))
	return ((d % 360) + 360) % 360, true
}

func sortByWeight(s []Swatch) {
	slices.SortStableFunc(s, func(a, b Swatch) int {
		switch {
		case a.Weight > b.Weight:
			return -1
		case a.Weight < b.Weight:
			return 1
		default:
			return strings.Compare(a.Hex, b.Hex)
		}
	})
}

func hexOf(c color.RGBA) string {
	return fmt.Sprintf("%02X%02X%02X", c.R, c.G, c.B)
}
