package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var allVars = []string{
	"HTTP_ADDR", "CORS_ORIGINS", "LOG_LEVEL", "CAPTURE_INTERVAL", "OVERLAY_SETTLE_DELAY",
	"QUEUE_CAPACITY", "DEBUG_FRAME_PATH", "CHANGE_DETECTOR", "CHANGE_THRESHOLD",
	"PERCEPTUAL_MAX_DISTANCE", "SIMILARITY_THRESHOLD", "OCR_UPSCALE_FACTOR",
	"OCR_BINARIZE_THRESHOLD", "OCR_PAGE_SEG_MODE", "TESSDATA_PREFIX", "RECOGNITION_TIMEOUT",
	"GOOGLE_API_KEY", "TRANSLATION_TIMEOUT", "SYNTHESIS_TIMEOUT", "VOICE_SAMPLE_RATE",
	"SOURCE_LANGUAGE", "TARGET_LANGUAGE", "VOICE_ENABLED", "TRANSLATION_LOG_PATH",
	"HISTORY_SIZE", "EVENT_BUFFER",
}

func TestLoad(t *testing.T) {
	for _, v := range allVars {
		os.Unsetenv(v)
	}

	cfg := Load()

	if cfg.HTTPAddr != "127.0.0.1:8000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, "127.0.0.1:8000")
	}
	if cfg.CaptureInterval != 3*time.Second {
		t.Errorf("CaptureInterval = %v, want 3s", cfg.CaptureInterval)
	}
	if cfg.SettleDelay != 300*time.Millisecond {
		t.Errorf("SettleDelay = %v, want 300ms", cfg.SettleDelay)
	}
	if cfg.ChangeDetector != DetectorPixel {
		t.Errorf("ChangeDetector = %q, want %q", cfg.ChangeDetector, DetectorPixel)
	}
	if cfg.ChangeThreshold != 5 {
		t.Errorf("ChangeThreshold = %d, want 5", cfg.ChangeThreshold)
	}
	if cfg.SimilarityThreshold != 0.8 {
		t.Errorf("SimilarityThreshold = %f, want 0.8", cfg.SimilarityThreshold)
	}
	if cfg.UpscaleFactor != 2.0 {
		t.Errorf("UpscaleFactor = %f, want 2.0", cfg.UpscaleFactor)
	}
	if cfg.BinarizeThreshold != 128 {
		t.Errorf("BinarizeThreshold = %d, want 128", cfg.BinarizeThreshold)
	}
	if cfg.PageSegMode != 6 {
		t.Errorf("PageSegMode = %d, want 6", cfg.PageSegMode)
	}
	if cfg.QueueCapacity != 8 {
		t.Errorf("QueueCapacity = %d, want 8", cfg.QueueCapacity)
	}
	if cfg.SourceLanguage != "eng" || cfg.TargetLanguage != "en" {
		t.Errorf("languages = %q/%q, want eng/en", cfg.SourceLanguage, cfg.TargetLanguage)
	}
	if cfg.VoiceEnabled {
		t.Error("VoiceEnabled should default to false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("CAPTURE_INTERVAL", "1.5")
	t.Setenv("OVERLAY_SETTLE_DELAY", "150ms")
	t.Setenv("CHANGE_DETECTOR", DetectorPerceptual)
	t.Setenv("PERCEPTUAL_MAX_DISTANCE", "4")
	t.Setenv("QUEUE_CAPACITY", "3")
	t.Setenv("TARGET_LANGUAGE", "fr")
	t.Setenv("VOICE_ENABLED", "1")
	t.Setenv("CORS_ORIGINS", "http://localhost:5173, app://overlay")

	cfg := Load()

	if cfg.HTTPAddr != ":9000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9000")
	}
	if cfg.CaptureInterval != 1500*time.Millisecond {
		t.Errorf("CaptureInterval = %v, want 1.5s", cfg.CaptureInterval)
	}
	if cfg.SettleDelay != 150*time.Millisecond {
		t.Errorf("SettleDelay = %v, want 150ms", cfg.SettleDelay)
	}
	if cfg.ChangeDetector != DetectorPerceptual || cfg.PerceptualMaxDist != 4 {
		t.Errorf("detector = %q/%d, want perceptual/4", cfg.ChangeDetector, cfg.PerceptualMaxDist)
	}
	if cfg.QueueCapacity != 3 {
		t.Errorf("QueueCapacity = %d, want 3", cfg.QueueCapacity)
	}
	if cfg.TargetLanguage != "fr" {
		t.Errorf("TargetLanguage = %q, want fr", cfg.TargetLanguage)
	}
	if !cfg.VoiceEnabled {
		t.Error("VoiceEnabled should be true")
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "app://overlay" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.QueueCapacity = 0
	cfg.SimilarityThreshold = 1.5
	cfg.ChangeDetector = "md5"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	for _, field := range []string{"QUEUE_CAPACITY", "SIMILARITY_THRESHOLD", "CHANGE_DETECTOR"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("Validate() error %q missing %s", err, field)
		}
	}
}

func TestLoadDotEnv(t *testing.T) {
	const key = "LINGOLENS_DOTENV_CHECK"
	os.Unsetenv(key)
	t.Cleanup(func() { os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(key+"=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv() = %v", err)
	}
	if got := os.Getenv(key); got != "from-file" {
		t.Errorf("%s = %q, want from-file", key, got)
	}
}

func TestLoadDotEnvKeepsExisting(t *testing.T) {
	const key = "LINGOLENS_DOTENV_EXISTING"
	t.Setenv(key, "from-env")

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(key+"=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() = %v", err)
	}
	if got := os.Getenv(key); got != "from-env" {
		t.Errorf("%s = %q, want from-env", key, got)
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STRING", "hello")
	if v := getEnv("TEST_STRING", "default"); v != "hello" {
		t.Errorf("getEnv = %q, want %q", v, "hello")
	}
	if v := getEnv("NONEXISTENT", "default"); v != "default" {
		t.Errorf("getEnv = %q, want %q", v, "default")
	}

	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_INT_INVALID", "not-a-number")
	if v := getEnvInt("TEST_INT", 0); v != 42 {
		t.Errorf("getEnvInt = %d, want %d", v, 42)
	}
	if v := getEnvInt("TEST_INT_INVALID", 100); v != 100 {
		t.Errorf("getEnvInt with invalid = %d, want %d", v, 100)
	}

	t.Setenv("TEST_FLOAT", "3.14")
	if v := getEnvFloat("TEST_FLOAT", 0.0); v != 3.14 {
		t.Errorf("getEnvFloat = %f, want %f", v, 3.14)
	}

	t.Setenv("TEST_BOOL_ONE", "1")
	t.Setenv("TEST_BOOL_FALSE", "false")
	if !getEnvBool("TEST_BOOL_ONE", false) {
		t.Error("getEnvBool should return true for '1'")
	}
	if getEnvBool("TEST_BOOL_FALSE", true) {
		t.Error("getEnvBool should return false for 'false'")
	}

	tests := []struct {
		val  string
		want time.Duration
	}{
		{"2s", 2 * time.Second},
		{"0.25", 250 * time.Millisecond},
		{"soon", time.Minute},
	}
	for _, tt := range tests {
		t.Setenv("TEST_DURATION", tt.val)
		if got := getEnvDuration("TEST_DURATION", time.Minute); got != tt.want {
			t.Errorf("getEnvDuration(%q) = %v, want %v", tt.val, got, tt.want)
		}
	}
}
