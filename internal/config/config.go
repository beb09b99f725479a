// Package config handles service configuration from the environment.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"

	apperrors "github.com/lingolens/platform/internal/errors"
)

// Change detector kinds.
const (
	DetectorPixel      = "pixel"
	DetectorPerceptual = "perceptual"
)

type Config struct {
	HTTPAddr    string
	CORSOrigins []string
	LogLevel    string

	// Capture loop
	CaptureInterval time.Duration
	SettleDelay     time.Duration
	QueueCapacity   int
	DebugFramePath  string

	// Change detection
	ChangeDetector      string
	ChangeThreshold     int
	PerceptualMaxDist   int
	SimilarityThreshold float64

	// Recognition
	UpscaleFactor      float64
	BinarizeThreshold  int
	PageSegMode        int
	TessdataPrefix     string
	RecognitionTimeout time.Duration

	// Translation and speech
	GoogleAPIKey       string
	TranslationTimeout time.Duration
	SynthesisTimeout   time.Duration
	VoiceSampleRate    int
	VoiceDevice        string
	ExcludedDevices    []string

	// Session defaults
	SourceLanguage string
	TargetLanguage string
	VoiceEnabled   bool
	LogPath        string

	// Presentation
	HistorySize int
	EventBuffer int
}

func Load() *Config {
	return &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", "127.0.0.1:8000"),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"*"}),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		CaptureInterval: getEnvDuration("CAPTURE_INTERVAL", 3*time.Second),
		SettleDelay:     getEnvDuration("OVERLAY_SETTLE_DELAY", 300*time.Millisecond),
		QueueCapacity:   getEnvInt("QUEUE_CAPACITY", 8),
		DebugFramePath:  getEnv("DEBUG_FRAME_PATH", ""),

		ChangeDetector:      getEnv("CHANGE_DETECTOR", DetectorPixel),
		ChangeThreshold:     getEnvInt("CHANGE_THRESHOLD", 5),
		PerceptualMaxDist:   getEnvInt("PERCEPTUAL_MAX_DISTANCE", 0),
		SimilarityThreshold: getEnvFloat("SIMILARITY_THRESHOLD", 0.8),

		UpscaleFactor:      getEnvFloat("OCR_UPSCALE_FACTOR", 2.0),
		BinarizeThreshold:  getEnvInt("OCR_BINARIZE_THRESHOLD", 128),
		PageSegMode:        getEnvInt("OCR_PAGE_SEG_MODE", 6),
		TessdataPrefix:     getEnv("TESSDATA_PREFIX", ""),
		RecognitionTimeout: getEnvDuration("RECOGNITION_TIMEOUT", 15*time.Second),

		GoogleAPIKey:       getEnv("GOOGLE_API_KEY", ""),
		TranslationTimeout: getEnvDuration("TRANSLATION_TIMEOUT", 10*time.Second),
		SynthesisTimeout:   getEnvDuration("SYNTHESIS_TIMEOUT", 10*time.Second),
		VoiceSampleRate:    getEnvInt("VOICE_SAMPLE_RATE", 24000),
		VoiceDevice:        getEnv("VOICE_OUTPUT_DEVICE", ""),
		ExcludedDevices:    getEnvList("EXCLUDED_AUDIO_DEVICES", nil),

		SourceLanguage: getEnv("SOURCE_LANGUAGE", "eng"),
		TargetLanguage: getEnv("TARGET_LANGUAGE", "en"),
		VoiceEnabled:   getEnvBool("VOICE_ENABLED", false),
		LogPath:        getEnv("TRANSLATION_LOG_PATH", ""),

		HistorySize: getEnvInt("HISTORY_SIZE", 200),
		EventBuffer: getEnvInt("EVENT_BUFFER", 100),
	}
}

// LoadDotEnv loads variables from the given files into the process
// environment without overriding values already set. Missing files are
// skipped; with no arguments ".env" is tried.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return apperrors.Wrapf(err, apperrors.ConfigInvalid, "load %s", p)
		}
	}
	return nil
}

// Validate reports every out-of-range setting.
func (c *Config) Validate() error {
	var result *multierror.Error
	check := func(ok bool, field, msg string) {
		if !ok {
			result = multierror.Append(result, apperrors.New(apperrors.ConfigInvalid, msg).WithMetadata("field", field))
		}
	}

	check(c.CaptureInterval > 0, "CAPTURE_INTERVAL", "capture interval must be positive")
	check(c.SettleDelay >= 0, "OVERLAY_SETTLE_DELAY", "settle delay must not be negative")
	check(c.QueueCapacity > 0, "QUEUE_CAPACITY", "queue capacity must be positive")
	check(c.ChangeDetector == DetectorPixel || c.ChangeDetector == DetectorPerceptual,
		"CHANGE_DETECTOR", "change detector must be pixel or perceptual")
	check(c.ChangeThreshold >= 0 && c.ChangeThreshold <= 255, "CHANGE_THRESHOLD", "change threshold must be within 0..255")
	check(c.PerceptualMaxDist >= 0 && c.PerceptualMaxDist <= 64, "PERCEPTUAL_MAX_DISTANCE", "perceptual distance must be within 0..64")
	check(c.SimilarityThreshold >= 0 && c.SimilarityThreshold <= 1, "SIMILARITY_THRESHOLD", "similarity threshold must be within 0..1")
	check(c.UpscaleFactor >= 1, "OCR_UPSCALE_FACTOR", "upscale factor must be at least 1")
	check(c.BinarizeThreshold >= 0 && c.BinarizeThreshold <= 255, "OCR_BINARIZE_THRESHOLD", "binarize threshold must be within 0..255")
	check(c.PageSegMode >= 0 && c.PageSegMode <= 13, "OCR_PAGE_SEG_MODE", "page segmentation mode must be within 0..13")
	check(c.HistorySize > 0, "HISTORY_SIZE", "history size must be positive")
	check(c.EventBuffer > 0, "EVENT_BUFFER", "event buffer must be positive")
	check(c.VoiceSampleRate > 0, "VOICE_SAMPLE_RATE", "voice sample rate must be positive")

	return result.ErrorOrNil()
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

// getEnvDuration accepts Go durations ("3s", "250ms") or bare seconds ("1.5").
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(f * float64(time.Second))
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}
