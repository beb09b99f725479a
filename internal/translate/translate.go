// Package translate translates recognized text through the Google
// Translate v2 API.
package translate

import (
	"context"
	"strings"
	"time"

	"google.golang.org/api/option"
	translatev2 "google.golang.org/api/translate/v2"

	apperrors "github.com/lingolens/platform/internal/errors"
	"github.com/lingolens/platform/internal/resilience"
	"github.com/lingolens/platform/internal/trace"
)

// DefaultTimeout bounds one translation including retries.
const DefaultTimeout = 10 * time.Second

// Translator degrades instead of failing: on any error the input comes back.
type Translator interface {
	Translate(ctx context.Context, text, target string) string
}

// Config configures the client.
type Config struct {
	APIKey  string
	Timeout time.Duration
	Retry   resilience.RetryConfig
	Options []option.ClientOption // extra client options, e.g. an endpoint override
}

// Client calls Google Translate with a timeout, retries and a breaker.
type Client struct {
	svc     *translatev2.Service
	timeout time.Duration
	retry   resilience.RetryConfig
	breaker *resilience.Breaker
}

// New creates a client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	opts := append([]option.ClientOption(nil), cfg.Options...)
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	svc, err := translatev2.NewService(ctx, opts...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ConfigInvalid, "create translate service")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = resilience.EngineRetryConfig()
	}
	return &Client{
		svc:     svc,
		timeout: timeout,
		retry:   retry,
		breaker: resilience.New("translation", resilience.EngineConfig()),
	}, nil
}

// Translate returns text in the target language. Blank input is returned
// as is, and any failure is logged and yields the input unchanged.
func (c *Client) Translate(ctx context.Context, text, target string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	ctx, span := trace.StartSpan(ctx, "translate")
	defer span.End()
	span.SetAttr("target", target)
	span.SetAttr("chars", len(text))

	out, err := c.TranslateErr(ctx, text, target)
	if err != nil {
		span.SetAttr("error", err.Error())
		trace.Logger(ctx).Warn("translation failed, showing recognized text", "target", target, "error", err)
		return text
	}
	return out
}

// TranslateErr is Translate without the fallback.
func (c *Client) TranslateErr(ctx context.Context, text, target string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return resilience.ExecuteWithResult(c.breaker, func() (string, error) {
		return resilience.RetryWithResult(ctx, c.retry, func() (string, error) {
			resp, err := c.svc.Translations.List([]string{text}, APICode(target)).
				Format("text").
				Context(ctx).
				Do()
			if err != nil {
				return "", apperrors.Wrap(err, apperrors.TranslationFailed, "translate").WithMetadata("target", target)
			}
			if len(resp.Translations) == 0 {
				return "", apperrors.New(apperrors.TranslationFailed, "empty translation response")
			}
			return resp.Translations[0].TranslatedText, nil
		})
	})
}

// Breaker exposes the breaker for status reporting.
func (c *Client) Breaker() *resilience.Breaker { return c.breaker }

// APICode maps a table code onto the API's casing: "zh-cn" becomes "zh-CN".
func APICode(code string) string {
	base, region, ok := strings.Cut(code, "-")
	if !ok {
		return strings.ToLower(code)
	}
	return strings.ToLower(base) + "-" + strings.ToUpper(region)
}
