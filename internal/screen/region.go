// Package screen captures rectangular regions of attached monitors.
package screen

import (
	"context"
	"image"
)

// Region is a rectangle in the coordinate space of one monitor, origin at
// the monitor's top-left corner.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether the region covers no pixels.
func (r Region) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Rect returns the region as a monitor-relative rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Monitor describes one active display in virtual-desktop coordinates.
type Monitor struct {
	Index   int  `json:"index"`
	X       int  `json:"x"`
	Y       int  `json:"y"`
	Width   int  `json:"width"`
	Height  int  `json:"height"`
	Primary bool `json:"primary"`
}

// Bounds returns the monitor rectangle in virtual-desktop coordinates.
func (m Monitor) Bounds() image.Rectangle {
	return image.Rect(m.X, m.Y, m.X+m.Width, m.Y+m.Height)
}

// Capturer returns the current pixels of a region.
type Capturer interface {
	Capture(ctx context.Context, monitor int, r Region) (*image.RGBA, error)
}

// Locator converts monitor-relative regions into desktop rectangles.
type Locator interface {
	Absolute(monitor int, r Region) (image.Rectangle, error)
}

// Clamp offsets r by the monitor origin and intersects it with the monitor.
// The result may be empty.
func Clamp(r Region, monitor image.Rectangle) image.Rectangle {
	return r.Rect().Add(monitor.Min).Intersect(monitor)
}
