// Package aspect buckets image dimensions into the five canonical aspect
// ratios the image model accepts.
package aspect

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
)

type Ratio string

const (
	Square    Ratio = "1:1"
	Landscape Ratio = "4:3"
	Portrait  Ratio = "3:4"
	Wide      Ratio = "16:9"
	Tall      Ratio = "9:16"
)

var ErrInvalidDimensions = errors.New("invalid dimensions")

func All() []Ratio {
	return []Ratio{Square, Landscape, Portrait, Wide, Tall}
}

func (r Ratio) String() string {
	return string(r)
}

// Classify checks the bands in order and returns the first match. The bands
// are deliberately coarse: 1.1 exactly is still square, 1.3 is 4:3.
func Classify(width, height int) (Ratio, error) {
	if width <= 0 || height <= 0 {
		return "", fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}

	r := float64(width) / float64(height)
	switch {
	case r > 1.5:
		return Wide, nil
	case r < 0.6:
		return Tall, nil
	case r > 1.1:
		return Landscape, nil
	case r < 0.9:
		return Portrait, nil
	default:
		return Square, nil
	}
}

func ClassifyImage(img image.Image) (Ratio, error) {
	b := img.Bounds()
	return Classify(b.Dx(), b.Dy())
}

// Parse accepts user overrides like "16:9" or " 3 : 4 ". Only canonical
// labels are returned.
func Parse(value string) (Ratio, bool) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "", false
	}
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return "", false
	}
	a, errA := strconv.Atoi(strings.TrimSpace(parts[0]))
	b, errB := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errA != nil || errB != nil || a <= 0 || b <= 0 {
		return "", false
	}

	candidate := Ratio(fmt.Sprintf("%d:%d", a, b))
	for _, r := range All() {
		if r == candidate {
			return r, true
		}
	}
	return "", false
}
