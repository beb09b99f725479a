package ocr

import (
	"context"
	"image"
	"time"

	"github.com/lingolens/platform/internal/resilience"
)

// Guarded bounds every call to a Recognizer with a timeout and trips a
// circuit breaker on repeated failures. Recognition is never retried; the
// next changed frame is the retry. A timed-out call is abandoned, not
// interrupted: the engine must refuse overlapping calls on its own.
type Guarded struct {
	next    Recognizer
	timeout time.Duration
	breaker *resilience.Breaker
}

// NewGuarded wraps next.
func NewGuarded(next Recognizer, timeout time.Duration) *Guarded {
	return &Guarded{
		next:    next,
		timeout: timeout,
		breaker: resilience.New("recognition", resilience.EngineConfig()),
	}
}

func (g *Guarded) Recognize(ctx context.Context, img image.Image, lang string) (string, error) {
	return resilience.ExecuteWithResult(g.breaker, func() (string, error) {
		return resilience.Timeout(ctx, g.timeout, func(ctx context.Context) (string, error) {
			return g.next.Recognize(ctx, img, lang)
		})
	})
}

// Breaker exposes the breaker for status reporting.
func (g *Guarded) Breaker() *resilience.Breaker { return g.breaker }
