// Package instruction assembles the natural-language instruction sent to the
// image model. Output depends only on the arguments: the same mode, blend
// weight, fingerprint and sliders always yield the same bytes.
package instruction

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"style-lock-studio/internal/fingerprint"
)

const ProtocolTag = "[PLAN-STYLE-LOCK PROTOCOL v2]"

const (
	minCaptureTarget = 75
	maxCaptureTarget = 99
)

var (
	ErrBlendWeightOutOfRange    = errors.New("blend weight out of range [0,100]")
	ErrSliderOutOfRange         = errors.New("enhance slider out of range [0,100]")
	ErrMissingEnhanceParameters = errors.New("enhance mode requires enhance parameters")
)

// EnhanceParameters are the four quality sliders. Smoothing is carried for
// interface compatibility; no template reads it yet.
type EnhanceParameters struct {
	Texture   int `json:"texture"`
	Smoothing int `json:"smoothing"`
	Detail    int `json:"detail"`
	Light     int `json:"light"`
}

func DefaultEnhanceParameters() EnhanceParameters {
	return EnhanceParameters{Texture: 50, Smoothing: 50, Detail: 50, Light: 50}
}

func (p EnhanceParameters) Validate() error {
	for _, s := range []struct {
		name  string
		value int
	}{
		{"texture", p.Texture},
		{"smoothing", p.Smoothing},
		{"detail", p.Detail},
		{"light", p.Light},
	} {
		if s.value < 0 || s.value > 100 {
			return fmt.Errorf("%w: %s=%d", ErrSliderOutOfRange, s.name, s.value)
		}
	}
	return nil
}

// StyleCaptureTarget maps a blend weight onto the adherence goal quoted in
// the plan protocol. The clamp is part of the protocol.
func StyleCaptureTarget(blendWeight int) int {
	target := int(math.Round(float64(blendWeight)*0.92 + 7))
	return max(minCaptureTarget, min(maxCaptureTarget, target))
}

// Assemble renders the instruction for mode. fp may be nil: the plan
// protocol then carries the fallback telemetry sentence.
func Assemble(mode Mode, blendWeight int, fp *fingerprint.StyleFingerprint, enhance *EnhanceParameters) (string, error) {
	switch mode {
	case ModeEnhance:
		if enhance == nil {
			return "", ErrMissingEnhanceParameters
		}
		if err := enhance.Validate(); err != nil {
			return "", err
		}
		return enhanceInstruction(*enhance), nil
	case ModeSpatialSynthesis:
		if err := validateBlendWeight(blendWeight); err != nil {
			return "", err
		}
		return spatialInstruction(blendWeight), nil
	case ModePlanStyleLock:
		if err := validateBlendWeight(blendWeight); err != nil {
			return "", err
		}
		return planStyleLockInstruction(blendWeight, fp), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}
}

func validateBlendWeight(w int) error {
	if w < 0 || w > 100 {
		return fmt.Errorf("%w: %d", ErrBlendWeightOutOfRange, w)
	}
	return nil
}

func enhanceInstruction(p EnhanceParameters) string {
	return fmt.Sprintf(
		"Enhance the image quality with texture at %d%%, detail at %d%% and light at %d%%, while preserving every architectural line, edge and structural proportion exactly as in the original.",
		p.Texture, p.Detail, p.Light,
	)
}

func spatialInstruction(blendWeight int) string {
	return fmt.Sprintf(
		"Transfer the visual style of the secondary reference image (image 2) onto the primary structural image (image 1) at %d%% blend strength. Keep the layout, geometry and composition of image 1 intact.",
		blendWeight,
	)
}

func planStyleLockInstruction(blendWeight int, fp *fingerprint.StyleFingerprint) string {
	var b strings.Builder
	b.Grow(2048)

	writeLine(&b, ProtocolTag)
	writeLine(&b, "TASK: Render the primary plan image (image 1) in the exact visual style of the secondary reference image (image 2).")
	writeLine(&b, "INSTRUCTION PRIORITY: geometry lock first, colorimetry match second, rendering enhancement third. A lower priority never overrides a higher one.")
	writeLine(&b, "GEOMETRY LOCK: Keep every wall, opening, boundary and line of image 1 in its exact position. Do not translate, rotate, scale, crop or warp any element. Do not add or remove structures, rooms, furniture or annotations.")
	writeLine(&b, "STYLE SOURCE: Image 2 is the sole style authority for palette, materials, lighting and texture. Do not borrow style from previous outputs, earlier generations or session history.")
	writeLine(&b, telemetrySentence(fp))
	writeLine(&b, fmt.Sprintf("STYLE CAPTURE TARGET: Reach %d%% adherence to the style of image 2.", StyleCaptureTarget(blendWeight)))
	writeLine(&b, "REPRODUCIBILITY: Keep variance low. The same inputs must produce visually consistent results on every run.")
	b.WriteString("RENDER QUALITY: Crisp line work, clean edges, even illumination, no noise, no text overlays and no watermarks.")

	return b.String()
}

// TelemetryUnavailable is the sentence used when no fingerprint is supplied.
const TelemetryUnavailable = "STYLE TELEMETRY: Unavailable. Lock colorimetry conservatively to the visible palette of image 2 and avoid any hue drift."

func telemetrySentence(fp *fingerprint.StyleFingerprint) string {
	if fp == nil {
		return TelemetryUnavailable
	}
	return fmt.Sprintf(
		"STYLE TELEMETRY: Reference average color #%s, hue %d degrees, saturation %d%%, lightness %d%%, contrast %d%%, warm ratio %d%%. Match these values in the output.",
		fp.AverageColorHex, fp.HueDegrees, fp.SaturationPercent, fp.LightnessPercent, fp.ContrastPercent, fp.WarmRatioPercent,
	)
}

func writeLine(b *strings.Builder, line string) {
	b.WriteString(line)
	b.WriteString("\n")
}
