package screen

import (
	"context"
	"image"
	"strconv"
	"sync"

	"github.com/kbinani/screenshot"

	apperrors "github.com/lingolens/platform/internal/errors"
	"github.com/lingolens/platform/internal/trace"
)

// displays is the slice of the screenshot library the capturer uses.
type displays interface {
	NumActiveDisplays() int
	GetDisplayBounds(index int) image.Rectangle
	CaptureRect(rect image.Rectangle) (*image.RGBA, error)
}

type systemDisplays struct{}

func (systemDisplays) NumActiveDisplays() int { return screenshot.NumActiveDisplays() }

func (systemDisplays) GetDisplayBounds(index int) image.Rectangle {
	return screenshot.GetDisplayBounds(index)
}

func (systemDisplays) CaptureRect(rect image.Rectangle) (*image.RGBA, error) {
	return screenshot.CaptureRect(rect)
}

// DisplayCapturer captures regions of attached monitors.
type DisplayCapturer struct {
	mu       sync.Mutex
	displays displays
}

// NewDisplayCapturer creates a capturer backed by the OS screenshot APIs.
func NewDisplayCapturer() *DisplayCapturer {
	return &DisplayCapturer{displays: systemDisplays{}}
}

// Monitors lists the active displays; index 0 is the primary one.
func (c *DisplayCapturer) Monitors() []Monitor {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.displays.NumActiveDisplays()
	out := make([]Monitor, 0, n)
	for i := 0; i < n; i++ {
		b := c.displays.GetDisplayBounds(i)
		out = append(out, Monitor{
			Index:   i,
			X:       b.Min.X,
			Y:       b.Min.Y,
			Width:   b.Dx(),
			Height:  b.Dy(),
			Primary: i == 0,
		})
	}
	return out
}

// Absolute returns r in desktop coordinates, clamped to the monitor.
func (c *DisplayCapturer) Absolute(monitor int, r Region) (image.Rectangle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.absolute(monitor, r)
}

func (c *DisplayCapturer) absolute(monitor int, r Region) (image.Rectangle, error) {
	if n := c.displays.NumActiveDisplays(); monitor < 0 || monitor >= n {
		return image.Rectangle{}, apperrors.Newf(apperrors.InvalidArgument, "monitor %d out of range", monitor).
			WithMetadata("displays", strconv.Itoa(n))
	}
	return Clamp(r, c.displays.GetDisplayBounds(monitor)), nil
}

// Capture grabs the region now. A region that falls outside the monitor
// yields an empty image rather than an error.
func (c *DisplayCapturer) Capture(ctx context.Context, monitor int, r Region) (*image.RGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rect, err := c.absolute(monitor, r)
	if err != nil {
		return nil, err
	}
	if rect.Empty() {
		trace.Logger(ctx).Debug("capture region outside monitor", "monitor", monitor, "region", r)
		return image.NewRGBA(image.Rectangle{}), nil
	}

	img, err := c.displays.CaptureRect(rect)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CaptureFailed, "capture %v", rect)
	}
	return img, nil
}
