package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"style-lock-studio/internal/gemini"
	"style-lock-studio/internal/imaging"
)

type Config struct {
	GeminiAPIKey     string
	GeminiBaseURL    string
	GeminiAPIVersion string
	GeminiImageModel string

	TelegramToken string
	WebAddr       string

	LogLevel string
	Debug    bool

	PreferIPv4 bool

	MediaGroupDebounce time.Duration
	MaxConcurrent      int
	RequestTimeout     time.Duration
	HTTPTimeout        time.Duration
	MaxUploadBytes     int64

	SampleMaxSide  int
	StyleTelemetry bool
	PaletteSize    int
	PaletteMethod  string
}

func Load() (Config, error) {
	cfg := Config{
		GeminiBaseURL:      getEnv("GEMINI_BASE_URL", gemini.DefaultBaseURL),
		GeminiAPIVersion:   getEnv("GEMINI_API_VERSION", gemini.DefaultAPIVersion),
		GeminiImageModel:   getEnv("GEMINI_IMAGE_MODEL", gemini.DefaultImageModel),
		WebAddr:            getEnv("WEB_ADDR", ":8080"),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		Debug:              getEnvBool("DEBUG", false),
		PreferIPv4:         getEnvBool("PREFER_IPV4", true),
		MediaGroupDebounce: time.Duration(getEnvInt("MEDIA_GROUP_DEBOUNCE_MS", 1200)) * time.Millisecond,
		MaxConcurrent:      getEnvInt("MAX_CONCURRENT", 4),
		RequestTimeout:     time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 240)) * time.Second,
		HTTPTimeout:        time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 180)) * time.Second,
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_MB", 25)) << 20,
		SampleMaxSide:      getEnvInt("SAMPLE_MAX_SIDE", imaging.DefaultSampleMaxSide),
		StyleTelemetry:     getEnvBool("STYLE_TELEMETRY", true),
		PaletteSize:        getEnvInt("PALETTE_SIZE", 5),
		PaletteMethod:      strings.ToLower(getEnv("PALETTE_METHOD", "dominant")),
	}

	cfg.GeminiAPIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	cfg.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))

	if cfg.GeminiAPIKey == "" {
		return Config{}, errors.New("GEMINI_API_KEY is required")
	}

	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 240 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 180 * time.Second
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 25 << 20
	}
	if cfg.SampleMaxSide < 16 {
		cfg.SampleMaxSide = imaging.DefaultSampleMaxSide
	}
	if cfg.PaletteSize < 0 {
		cfg.PaletteSize = 0
	}

	return cfg, nil
}

// RequireTelegram is checked by the bot entry point only.
func (c Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
