// Package tesseract recognizes text with libtesseract through gosseract.
package tesseract

import (
	"context"
	"image"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	apperrors "github.com/lingolens/platform/internal/errors"
	"github.com/lingolens/platform/internal/ocr"
	"github.com/lingolens/platform/internal/trace"
)

// DefaultPageSegMode treats the region as one uniform block of text.
const DefaultPageSegMode = int(gosseract.PSM_SINGLE_BLOCK)

// Config configures the engine.
type Config struct {
	PageSegMode    int
	TessdataPrefix string
}

// ErrBusy is returned while an earlier call still holds the client, which
// happens when a recognition outlived its timeout.
var ErrBusy = apperrors.New(apperrors.Unavailable, "recognition engine busy")

// Engine wraps one gosseract client. The client is not safe for concurrent
// use; calls are serialized.
type Engine struct {
	mu     sync.Mutex
	client *gosseract.Client
	lang   string
}

// New creates a long-lived engine.
func New(cfg Config) (*Engine, error) {
	client := gosseract.NewClient()
	if cfg.TessdataPrefix != "" {
		client.TessdataPrefix = cfg.TessdataPrefix
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(cfg.PageSegMode)); err != nil {
		client.Close()
		return nil, apperrors.Wrap(err, apperrors.OCRInitFailed, "set page segmentation mode")
	}
	return &Engine{client: client}, nil
}

// Recognize runs OCR with lang, a Tesseract code or "+"-joined codes.
// It does not observe ctx; callers bound it with resilience.Timeout. A call
// that times out keeps running in cgo, and later calls fail fast with
// ErrBusy until it returns.
func (e *Engine) Recognize(ctx context.Context, img image.Image, lang string) (string, error) {
	if img.Bounds().Empty() {
		return "", nil
	}
	data, err := ocr.EncodePNG(img)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.OCRFailed, "encode frame")
	}

	if !e.mu.TryLock() {
		return "", ErrBusy
	}
	defer e.mu.Unlock()

	if lang != e.lang {
		if err := e.client.SetLanguage(strings.Split(lang, "+")...); err != nil {
			return "", apperrors.Wrap(err, apperrors.OCRFailed, "set language").WithMetadata("lang", lang)
		}
		e.lang = lang
	}
	if err := e.client.SetImageFromBytes(data); err != nil {
		return "", apperrors.Wrap(err, apperrors.OCRFailed, "set image")
	}
	text, err := e.client.Text()
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.OCRFailed, "recognize").WithMetadata("lang", lang)
	}
	trace.Logger(ctx).Debug("tesseract recognized", "lang", lang, "chars", len(text))
	return text, nil
}

// Close releases the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client.Close()
}
