package speech

import (
	"context"
	"encoding/base64"
	"os"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/texttospeech/v1"

	apperrors "github.com/lingolens/platform/internal/errors"
	"github.com/lingolens/platform/internal/resilience"
	"github.com/lingolens/platform/internal/trace"
)

// Synthesizer defaults.
const (
	DefaultSampleRate = 24000
	DefaultTimeout    = 10 * time.Second
)

// GoogleConfig configures the Cloud Text-to-Speech synthesizer.
type GoogleConfig struct {
	APIKey     string
	SampleRate int
	Timeout    time.Duration
	Dir        string // temp dir for clips; os.TempDir() when empty
	Retry      resilience.RetryConfig
	Options    []option.ClientOption
}

// GoogleSynthesizer renders LINEAR16 WAV clips with Cloud Text-to-Speech.
type GoogleSynthesizer struct {
	svc        *texttospeech.Service
	sampleRate int
	timeout    time.Duration
	dir        string
	retry      resilience.RetryConfig
	breaker    *resilience.Breaker
}

// NewGoogleSynthesizer creates a synthesizer.
func NewGoogleSynthesizer(ctx context.Context, cfg GoogleConfig) (*GoogleSynthesizer, error) {
	opts := append([]option.ClientOption(nil), cfg.Options...)
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	svc, err := texttospeech.NewService(ctx, opts...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ConfigInvalid, "create text-to-speech service")
	}

	s := &GoogleSynthesizer{
		svc:        svc,
		sampleRate: cfg.SampleRate,
		timeout:    cfg.Timeout,
		dir:        cfg.Dir,
		retry:      cfg.Retry,
		breaker:    resilience.New("synthesis", resilience.EngineConfig()),
	}
	if s.sampleRate <= 0 {
		s.sampleRate = DefaultSampleRate
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.retry.MaxRetries == 0 {
		s.retry = resilience.EngineRetryConfig()
	}
	return s, nil
}

// Synthesize writes the spoken text to a temp WAV file.
func (s *GoogleSynthesizer) Synthesize(ctx context.Context, text, lang string) (Clip, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := &texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: &texttospeech.VoiceSelectionParams{LanguageCode: VoiceTag(lang)},
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding:   "LINEAR16",
			SampleRateHertz: int64(s.sampleRate),
		},
	}

	audio, err := resilience.ExecuteWithResult(s.breaker, func() ([]byte, error) {
		return resilience.RetryWithResult(ctx, s.retry, func() ([]byte, error) {
			resp, err := s.svc.Text.Synthesize(req).Context(ctx).Do()
			if err != nil {
				return nil, apperrors.Wrap(err, apperrors.SynthesisFailed, "synthesize").WithMetadata("voice", req.Voice.LanguageCode)
			}
			data, err := base64.StdEncoding.DecodeString(resp.AudioContent)
			if err != nil {
				return nil, apperrors.Wrap(err, apperrors.SynthesisFailed, "decode audio content")
			}
			return data, nil
		})
	})
	if err != nil {
		return Clip{}, err
	}

	f, err := os.CreateTemp(s.dir, "lingolens-voice-*.wav")
	if err != nil {
		return Clip{}, apperrors.Wrap(err, apperrors.SynthesisFailed, "create clip file")
	}
	clip := Clip{Path: f.Name()}
	if _, err := f.Write(audio); err != nil {
		f.Close()
		_ = clip.Remove()
		return Clip{}, apperrors.Wrap(err, apperrors.SynthesisFailed, "write clip file")
	}
	if err := f.Close(); err != nil {
		_ = clip.Remove()
		return Clip{}, apperrors.Wrap(err, apperrors.SynthesisFailed, "close clip file")
	}

	trace.Logger(ctx).Debug("synthesized voice clip", "voice", req.Voice.LanguageCode, "bytes", len(audio))
	return clip, nil
}

// Breaker exposes the breaker for status reporting.
func (s *GoogleSynthesizer) Breaker() *resilience.Breaker { return s.breaker }
