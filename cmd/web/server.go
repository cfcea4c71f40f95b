package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"style-lock-studio/internal/aspect"
	"style-lock-studio/internal/fingerprint"
	"style-lock-studio/internal/gemini"
	"style-lock-studio/internal/imaging"
	"style-lock-studio/internal/instruction"
	"style-lock-studio/internal/palette"
	"style-lock-studio/internal/studio"
)

const apiKeyHeader = "X-Goog-Api-Key"

type renderer interface {
	Analyze(ctx context.Context, img studio.Image) (studio.Analysis, error)
	Run(ctx context.Context, req studio.Request) (studio.Result, error)
}

type serverOptions struct {
	Studio         renderer
	Logger         *slog.Logger
	MaxUploadBytes int64
	RequestTimeout time.Duration
	Model          string
}

type server struct {
	studio         renderer
	logger         *slog.Logger
	maxUploadBytes int64
	requestTimeout time.Duration
	model          string
}

func newServer(opts serverOptions) *server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 25 << 20
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 240 * time.Second
	}

	return &server{
		studio:         opts.Studio,
		logger:         logger,
		maxUploadBytes: maxUpload,
		requestTimeout: timeout,
		model:          opts.Model,
	}
}

type apiError struct {
	Error string `json:"error"`
}

type fingerprintResponse struct {
	Fingerprint fingerprint.StyleFingerprint `json:"fingerprint"`
	AspectRatio aspect.Ratio                 `json:"aspect_ratio"`
	Palette     []palette.Swatch             `json:"palette"`
	PaletteHue  *int                         `json:"palette_hue_degrees,omitempty"`
	Width       int                          `json:"width"`
	Height      int                          `json:"height"`
}

type generateResponse struct {
	studio.Result
	Warning string `json:"warning,omitempty"`
}

func (s *server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(withLogging(s.logger))

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/fingerprint", s.handleFingerprint).Methods(http.MethodPost)
	api.HandleFunc("/generate", s.handleGenerate).Methods(http.MethodPost)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, apiError{Error: "not found"})
	})
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "model": s.model})
}

func (s *server) handleFingerprint(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}

	img, ok, err := readUpload(r, "image")
	if err != nil {
		s.logger.Warn("upload read failed", "field", "image", "err", err)
		writeJSON(w, http.StatusBadRequest, apiError{Error: "failed to read image"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "missing image"})
		return
	}

	analysis, err := s.studio.Analyze(r.Context(), img)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, fingerprintResponse{
		Fingerprint: analysis.Fingerprint,
		AspectRatio: analysis.AspectRatio,
		Palette:     analysis.Palette,
		PaletteHue:  analysis.PaletteHue,
		Width:       analysis.Width,
		Height:      analysis.Height,
	})
}

func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}

	req, err := generateRequestFromForm(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}

	primary, ok, err := readUpload(r, "primary")
	if err != nil {
		s.logger.Warn("upload read failed", "field", "primary", "err", err)
		writeJSON(w, http.StatusBadRequest, apiError{Error: "failed to read primary image"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "missing primary image"})
		return
	}
	req.Primary = primary

	if ref, ok, err := readUpload(r, "reference"); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "failed to read reference image"})
		return
	} else if ok {
		req.Reference = &ref
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	res, err := s.studio.Run(ctx, req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := generateResponse{Result: res}
	if len(res.Images) == 0 {
		out.Warning = "model returned no image"
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, apiError{Error: "upload too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid multipart form"})
		return false
	}
	return true
}

func generateRequestFromForm(r *http.Request) (studio.Request, error) {
	req := studio.Request{
		Mode:        instruction.ModePlanStyleLock,
		BlendWeight: 80,
		APIKey:      strings.TrimSpace(r.Header.Get(apiKeyHeader)),
	}

	if raw := strings.TrimSpace(r.FormValue("mode")); raw != "" {
		mode, err := instruction.ParseMode(raw)
		if err != nil {
			return studio.Request{}, err
		}
		req.Mode = mode
	}

	var err error
	if req.BlendWeight, err = formInt(r, "blend_weight", req.BlendWeight); err != nil {
		return studio.Request{}, err
	}

	if req.Mode == instruction.ModeEnhance {
		p := instruction.DefaultEnhanceParameters()
		fields := []struct {
			name string
			dst  *int
		}{
			{"texture", &p.Texture},
			{"smoothing", &p.Smoothing},
			{"detail", &p.Detail},
			{"light", &p.Light},
		}
		for _, f := range fields {
			if *f.dst, err = formInt(r, f.name, *f.dst); err != nil {
				return studio.Request{}, err
			}
		}
		req.Enhance = &p
	}

	if raw := strings.TrimSpace(r.FormValue("aspect_ratio")); raw != "" {
		ratio, ok := aspect.Parse(raw)
		if !ok {
			return studio.Request{}, fmt.Errorf("unsupported aspect_ratio %q", raw)
		}
		req.AspectRatio = ratio
	}

	return req, nil
}

func formInt(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSuffix(raw, "%"))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

func readUpload(r *http.Request, field string) (studio.Image, bool, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return studio.Image{}, false, nil
	}
	if err != nil {
		return studio.Image{}, false, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return studio.Image{}, false, err
	}
	if len(data) == 0 {
		return studio.Image{}, false, nil
	}
	return studio.Image{
		Data:     data,
		MimeType: imaging.DetectMIME(data, header.Header.Get("Content-Type")),
	}, true, nil
}

func (s *server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "err", err)
	}

	msg := err.Error()
	var apiErr *gemini.APIError
	if errors.As(err, &apiErr) {
		msg = "image model error: " + apiErr.Status
	}
	writeJSON(w, status, apiError{Error: msg})
}

func statusFor(err error) int {
	var apiErr *gemini.APIError
	switch {
	case errors.Is(err, fingerprint.ErrNoVisiblePixels):
		return http.StatusUnprocessableEntity
	case errors.Is(err, imaging.ErrUnsupportedFormat),
		errors.Is(err, aspect.ErrInvalidDimensions),
		errors.Is(err, studio.ErrMissingPrimary),
		errors.Is(err, studio.ErrMissingReference),
		errors.Is(err, instruction.ErrUnknownMode),
		errors.Is(err, instruction.ErrBlendWeightOutOfRange),
		errors.Is(err, instruction.ErrSliderOutOfRange),
		errors.Is(err, instruction.ErrMissingEnhanceParameters):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func withLogging(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("http",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"dur_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
