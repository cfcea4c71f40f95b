// Package studio is the boundary between the front ends (web, bot, CLI) and
// the pure style code. It decodes uploads, fingerprints the reference,
// classifies the primary image, assembles the instruction and makes the one
// model call.
package studio

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"style-lock-studio/internal/aspect"
	"style-lock-studio/internal/fingerprint"
	"style-lock-studio/internal/gemini"
	"style-lock-studio/internal/imaging"
	"style-lock-studio/internal/instruction"
	"style-lock-studio/internal/palette"
)

var (
	ErrMissingPrimary   = errors.New("primary image is required")
	ErrMissingReference = errors.New("style reference image is required for this mode")
)

// Generator is the external image model. *gemini.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, req gemini.Request) (gemini.Response, error)
}

type Image struct {
	Data     []byte
	MimeType string
}

type Options struct {
	Generator      Generator
	Logger         *slog.Logger
	SampleMaxSide  int
	StyleTelemetry bool
	PaletteSize    int
	PaletteMethod  palette.Method
}

type Service struct {
	gen            Generator
	logger         *slog.Logger
	sampleMaxSide  int
	styleTelemetry bool
	paletteSize    int
	paletteMethod  palette.Method
}

func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	sampleMaxSide := opts.SampleMaxSide
	if sampleMaxSide <= 0 {
		sampleMaxSide = imaging.DefaultSampleMaxSide
	}

	return &Service{
		gen:            opts.Generator,
		logger:         logger,
		sampleMaxSide:  sampleMaxSide,
		styleTelemetry: opts.StyleTelemetry,
		paletteSize:    opts.PaletteSize,
		paletteMethod:  opts.PaletteMethod,
	}
}

// Analysis describes one uploaded image.
type Analysis struct {
	Width       int                          `json:"width"`
	Height      int                          `json:"height"`
	Format      string                       `json:"format"`
	AspectRatio aspect.Ratio                 `json:"aspect_ratio"`
	Fingerprint fingerprint.StyleFingerprint `json:"fingerprint"`
	Palette     []palette.Swatch             `json:"palette,omitempty"`
	// PaletteHue is nil when the palette is empty or entirely grey.
	PaletteHue *int `json:"palette_hue_degrees,omitempty"`
}

// Analyze fingerprints a single reference upload. A fully transparent image
// fails with fingerprint.ErrNoVisiblePixels.
func (s *Service) Analyze(ctx context.Context, img Image) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	d, err := s.decode(img)
	if err != nil {
		return Analysis{}, err
	}

	fp, err := fingerprint.FromImage(d.sample)
	if err != nil {
		return Analysis{}, err
	}

	out := Analysis{
		Width:       d.width,
		Height:      d.height,
		Format:      d.format,
		AspectRatio: d.ratio,
		Fingerprint: fp,
		Palette:     palette.Extract(d.sample, s.paletteSize, s.paletteMethod),
	}
	if hue, ok := palette.MeanHue(out.Palette); ok {
		out.PaletteHue = &hue
	}
	return out, nil
}

type Request struct {
	Mode        instruction.Mode
	BlendWeight int
	Enhance     *instruction.EnhanceParameters
	Primary     Image
	Reference   *Image
	// ReferenceFingerprint skips re-sampling a reference that was already
	// analyzed (for example when it was uploaded earlier in a session).
	ReferenceFingerprint *fingerprint.StyleFingerprint
	// AspectRatio overrides the ratio classified from the primary image.
	AspectRatio aspect.Ratio
	// APIKey is passed through to the generator untouched.
	APIKey string
}

type Result struct {
	RequestID   string                        `json:"request_id"`
	Mode        string                        `json:"mode"`
	Instruction string                        `json:"instruction"`
	AspectRatio aspect.Ratio                  `json:"aspect_ratio"`
	Fingerprint *fingerprint.StyleFingerprint `json:"fingerprint,omitempty"`
	Text        string                        `json:"text,omitempty"`
	Images      []string                      `json:"images"`
}

func (s *Service) Run(ctx context.Context, req Request) (Result, error) {
	if s.gen == nil {
		return Result{}, errors.New("studio: generator is nil")
	}
	if len(req.Primary.Data) == 0 {
		return Result{}, ErrMissingPrimary
	}
	hasReference := req.Reference != nil && len(req.Reference.Data) > 0
	if req.Mode.NeedsReference() && !hasReference {
		return Result{}, ErrMissingReference
	}

	requestID := uuid.NewString()
	logger := s.logger.With("request_id", requestID, "mode", req.Mode.String())
	start := time.Now()

	var primary, reference decoded
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		d, err := s.decode(req.Primary)
		if err != nil {
			return fmt.Errorf("primary image: %w", err)
		}
		primary = d
		return egCtx.Err()
	})
	if hasReference && req.Mode.NeedsReference() {
		eg.Go(func() error {
			d, err := s.decode(*req.Reference)
			if err != nil {
				return fmt.Errorf("reference image: %w", err)
			}
			reference = d
			return egCtx.Err()
		})
	}
	if err := eg.Wait(); err != nil {
		return Result{}, err
	}

	ratio := primary.ratio
	if req.AspectRatio != "" {
		ratio = req.AspectRatio
	}

	fp, err := s.referenceFingerprint(req, reference)
	if err != nil {
		return Result{}, err
	}

	text, err := instruction.Assemble(req.Mode, req.BlendWeight, fp, req.Enhance)
	if err != nil {
		return Result{}, err
	}

	images := []gemini.ImageInput{toInput(req.Primary)}
	if req.Mode.NeedsReference() {
		images = append(images, toInput(*req.Reference))
	}

	resp, err := s.gen.Generate(ctx, gemini.Request{
		Instruction: text,
		Images:      images,
		AspectRatio: string(ratio),
		APIKey:      req.APIKey,
	})
	if err != nil {
		logger.Error("generation failed", "err", err, "dur_ms", time.Since(start).Milliseconds())
		return Result{}, fmt.Errorf("generate: %w", err)
	}

	logger.Info("generation complete",
		"aspect_ratio", string(ratio),
		"telemetry", fp != nil,
		"images", len(resp.Images),
		"dur_ms", time.Since(start).Milliseconds(),
	)

	return Result{
		RequestID:   requestID,
		Mode:        req.Mode.String(),
		Instruction: text,
		AspectRatio: ratio,
		Fingerprint: fp,
		Text:        resp.Text,
		Images:      resp.Images,
	}, nil
}

// referenceFingerprint returns nil when the mode has no use for telemetry
// or telemetry is switched off; the plan protocol then uses its fallback.
func (s *Service) referenceFingerprint(req Request, reference decoded) (*fingerprint.StyleFingerprint, error) {
	if req.Mode != instruction.ModePlanStyleLock || !s.styleTelemetry {
		return nil, nil
	}
	if req.ReferenceFingerprint != nil {
		fp := *req.ReferenceFingerprint
		return &fp, nil
	}
	fp, err := fingerprint.FromImage(reference.sample)
	if err != nil {
		return nil, fmt.Errorf("reference image: %w", err)
	}
	return &fp, nil
}

type decoded struct {
	width, height int
	format        string
	ratio         aspect.Ratio
	sample        *image.NRGBA
}

func (s *Service) decode(img Image) (decoded, error) {
	src, format, err := imaging.Decode(img.Data)
	if err != nil {
		return decoded{}, err
	}
	b := src.Bounds()
	ratio, err := aspect.Classify(b.Dx(), b.Dy())
	if err != nil {
		return decoded{}, err
	}
	return decoded{
		width:  b.Dx(),
		height: b.Dy(),
		format: format,
		ratio:  ratio,
		sample: imaging.Downsample(src, s.sampleMaxSide),
	}, nil
}

func toInput(img Image) gemini.ImageInput {
	return gemini.ImageInput{
		DataBase64: base64.StdEncoding.EncodeToString(img.Data),
		MimeType:   imaging.DetectMIME(img.Data, img.MimeType),
	}
}
