package studio

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"

	"style-lock-studio/internal/aspect"
	"style-lock-studio/internal/fingerprint"
	"style-lock-studio/internal/gemini"
	"style-lock-studio/internal/imaging"
	"style-lock-studio/internal/instruction"
	"style-lock-studio/internal/palette"
)

type fakeGenerator struct {
	mu    sync.Mutex
	calls []gemini.Request
	resp  gemini.Response
	err   error
}

func (f *fakeGenerator) Generate(_ context.Context, req gemini.Request) (gemini.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return f.resp, f.err
}

func solidPNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newService(gen Generator) *Service {
	return New(Options{
		Generator:      gen,
		StyleTelemetry: true,
		PaletteSize:    3,
		PaletteMethod:  palette.MethodDominant,
	})
}

func TestAnalyze(t *testing.T) {
	svc := newService(nil)
	data := solidPNG(t, 400, 200, color.NRGBA{R: 255, A: 255})

	got, err := svc.Analyze(context.Background(), Image{Data: data})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.Width != 400 || got.Height != 200 || got.Format != "png" {
		t.Errorf("dims = %dx%d %s", got.Width, got.Height, got.Format)
	}
	if got.AspectRatio != aspect.Wide {
		t.Errorf("aspect = %s, want 16:9", got.AspectRatio)
	}
	if got.Fingerprint.AverageColorHex != "FF0000" {
		t.Errorf("average = %s, want FF0000", got.Fingerprint.AverageColorHex)
	}
	if len(got.Palette) > 3 {
		t.Errorf("palette has %d swatches, want at most 3", len(got.Palette))
	}
	for _, sw := range got.Palette {
		if len(sw.Hex) != 6 {
			t.Errorf("swatch hex = %q", sw.Hex)
		}
	}
}

func TestAnalyzeTransparent(t *testing.T) {
	svc := newService(nil)
	data := solidPNG(t, 10, 10, color.NRGBA{R: 200, G: 10, B: 10, A: 0})

	_, err := svc.Analyze(context.Background(), Image{Data: data})
	if !errors.Is(err, fingerprint.ErrNoVisiblePixels) {
		t.Fatalf("err = %v, want ErrNoVisiblePixels", err)
	}
}

func TestAnalyzeGarbage(t *testing.T) {
	svc := newService(nil)
	_, err := svc.Analyze(context.Background(), Image{Data: []byte("not an image")})
	if !errors.Is(err, imaging.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestRunPlanStyleLock(t *testing.T) {
	gen := &fakeGenerator{resp: gemini.Response{Text: "ok", Images: []string{"data:image/png;base64,AA=="}}}
	svc := newService(gen)

	primary := solidPNG(t, 300, 400, color.NRGBA{G: 255, A: 255})
	reference := solidPNG(t, 50, 50, color.NRGBA{R: 255, A: 255})

	res, err := svc.Run(context.Background(), Request{
		Mode:        instruction.ModePlanStyleLock,
		BlendWeight: 80,
		Primary:     Image{Data: primary, MimeType: "image/png"},
		Reference:   &Image{Data: reference},
		APIKey:      "override",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(gen.calls) != 1 {
		t.Fatalf("generator calls = %d, want 1", len(gen.calls))
	}
	call := gen.calls[0]
	if call.AspectRatio != "3:4" {
		t.Errorf("aspect = %q, want 3:4", call.AspectRatio)
	}
	if call.APIKey != "override" {
		t.Errorf("api key not forwarded: %q", call.APIKey)
	}
	if len(call.Images) != 2 {
		t.Fatalf("images = %d, want 2", len(call.Images))
	}
	if call.Images[0].MimeType != "image/png" || call.Images[1].MimeType != "image/png" {
		t.Errorf("mime types = %q, %q", call.Images[0].MimeType, call.Images[1].MimeType)
	}
	if call.Instruction != res.Instruction {
		t.Errorf("instruction sent differs from result")
	}
	if !strings.Contains(res.Instruction, "#FF0000") {
		t.Errorf("instruction missing reference telemetry:\n%s", res.Instruction)
	}
	if !strings.Contains(res.Instruction, "Reach 81% adherence") {
		t.Errorf("instruction missing capture target:\n%s", res.Instruction)
	}
	if res.Fingerprint == nil || res.Fingerprint.AverageColorHex != "FF0000" {
		t.Errorf("fingerprint = %+v", res.Fingerprint)
	}
	if res.RequestID == "" || res.Text != "ok" || len(res.Images) != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestRunUsesPrecomputedFingerprint(t *testing.T) {
	gen := &fakeGenerator{}
	svc := newService(gen)
	fp := fingerprint.StyleFingerprint{AverageColorHex: "123456", HueDegrees: 210}

	res, err := svc.Run(context.Background(), Request{
		Mode:                 instruction.ModePlanStyleLock,
		BlendWeight:          50,
		Primary:              Image{Data: solidPNG(t, 10, 10, color.NRGBA{A: 255})},
		Reference:            &Image{Data: solidPNG(t, 10, 10, color.NRGBA{R: 255, A: 255})},
		ReferenceFingerprint: &fp,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(res.Instruction, "#123456") {
		t.Errorf("precomputed fingerprint ignored:\n%s", res.Instruction)
	}
}

func TestRunTelemetryDisabled(t *testing.T) {
	gen := &fakeGenerator{}
	svc := New(Options{Generator: gen})

	res, err := svc.Run(context.Background(), Request{
		Mode:        instruction.ModePlanStyleLock,
		BlendWeight: 80,
		Primary:     Image{Data: solidPNG(t, 10, 10, color.NRGBA{A: 255})},
		Reference:   &Image{Data: solidPNG(t, 10, 10, color.NRGBA{R: 255, A: 255})},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Fingerprint != nil {
		t.Errorf("fingerprint = %+v, want nil", res.Fingerprint)
	}
	if !strings.Contains(res.Instruction, instruction.TelemetryUnavailable) {
		t.Errorf("fallback telemetry line missing:\n%s", res.Instruction)
	}
}

func TestRunTransparentReference(t *testing.T) {
	gen := &fakeGenerator{}
	svc := newService(gen)

	_, err := svc.Run(context.Background(), Request{
		Mode:        instruction.ModePlanStyleLock,
		BlendWeight: 80,
		Primary:     Image{Data: solidPNG(t, 10, 10, color.NRGBA{A: 255})},
		Reference:   &Image{Data: solidPNG(t, 10, 10, color.NRGBA{})},
	})
	if !errors.Is(err, fingerprint.ErrNoVisiblePixels) {
		t.Fatalf("err = %v, want ErrNoVisiblePixels", err)
	}
	if len(gen.calls) != 0 {
		t.Errorf("generator called %d times", len(gen.calls))
	}
}

func TestRunEnhance(t *testing.T) {
	gen := &fakeGenerator{}
	svc := newService(gen)
	params := instruction.EnhanceParameters{Texture: 10, Smoothing: 90, Detail: 20, Light: 30}

	res, err := svc.Run(context.Background(), Request{
		Mode:        instruction.ModeEnhance,
		BlendWeight: 500,
		Enhance:     &params,
		Primary:     Image{Data: solidPNG(t, 100, 100, color.NRGBA{B: 255, A: 255})},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(gen.calls[0].Images) != 1 {
		t.Errorf("enhance sent %d images, want 1", len(gen.calls[0].Images))
	}
	if gen.calls[0].AspectRatio != "1:1" {
		t.Errorf("aspect = %q", gen.calls[0].AspectRatio)
	}
	if res.Fingerprint != nil {
		t.Errorf("enhance produced a fingerprint")
	}
}

func TestRunAspectOverride(t *testing.T) {
	gen := &fakeGenerator{}
	svc := newService(gen)
	params := instruction.DefaultEnhanceParameters()

	_, err := svc.Run(context.Background(), Request{
		Mode:        instruction.ModeEnhance,
		Enhance:     &params,
		Primary:     Image{Data: solidPNG(t, 100, 100, color.NRGBA{A: 255})},
		AspectRatio: aspect.Tall,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gen.calls[0].AspectRatio != "9:16" {
		t.Errorf("aspect = %q, want 9:16", gen.calls[0].AspectRatio)
	}
}

func TestRunValidation(t *testing.T) {
	data := solidPNG(t, 10, 10, color.NRGBA{A: 255})
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"no primary", Request{Mode: instruction.ModeEnhance}, ErrMissingPrimary},
		{"no reference", Request{Mode: instruction.ModeSpatialSynthesis, Primary: Image{Data: data}}, ErrMissingReference},
		{"blend range", Request{Mode: instruction.ModeSpatialSynthesis, BlendWeight: 101, Primary: Image{Data: data}, Reference: &Image{Data: data}}, instruction.ErrBlendWeightOutOfRange},
		{"enhance missing", Request{Mode: instruction.ModeEnhance, Primary: Image{Data: data}}, instruction.ErrMissingEnhanceParameters},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{}
			_, err := newService(gen).Run(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if len(gen.calls) != 0 {
				t.Errorf("generator called on invalid request")
			}
		})
	}
}

func TestRunGeneratorError(t *testing.T) {
	apiErr := &gemini.APIError{StatusCode: 500, Status: "500 Internal Server Error"}
	gen := &fakeGenerator{err: apiErr}
	params := instruction.DefaultEnhanceParameters()

	_, err := newService(gen).Run(context.Background(), Request{
		Mode:    instruction.ModeEnhance,
		Enhance: &params,
		Primary: Image{Data: solidPNG(t, 10, 10, color.NRGBA{A: 255})},
	})
	var target *gemini.APIError
	if !errors.As(err, &target) {
		t.Fatalf("err = %v, want *gemini.APIError", err)
	}
	if len(gen.calls) != 1 {
		t.Errorf("calls = %d, want exactly 1", len(gen.calls))
	}
}
