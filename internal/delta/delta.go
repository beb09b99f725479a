// Package delta decides whether a captured frame differs enough from the
// baseline to be worth recognizing again.
package delta

import (
	"image"
	"image/draw"

	apperrors "github.com/lingolens/platform/internal/errors"
)

// DefaultThreshold is the peak per-pixel difference that still counts as noise.
const DefaultThreshold = 5

// Detector compares a candidate frame against the baseline.
type Detector interface {
	Changed(prev, next *image.Gray) (bool, error)
}

// Stats describes the difference between two frames.
type Stats struct {
	Peak uint8           // largest absolute pixel difference
	Box  image.Rectangle // bounding box of differing pixels, frame-relative; empty when identical
}

// Compare computes the per-pixel absolute difference of two equally sized
// frames. Frames of different size yield a DIMENSION_MISMATCH error.
func Compare(prev, next *image.Gray) (Stats, error) {
	if prev == nil || next == nil {
		return Stats{}, apperrors.New(apperrors.InvalidArgument, "nil frame")
	}
	pb, nb := prev.Bounds(), next.Bounds()
	if pb.Dx() != nb.Dx() || pb.Dy() != nb.Dy() {
		return Stats{}, apperrors.Newf(apperrors.DimensionMismatch,
			"baseline %dx%d, candidate %dx%d", pb.Dx(), pb.Dy(), nb.Dx(), nb.Dy())
	}

	var s Stats
	w, h := pb.Dx(), pb.Dy()
	for y := 0; y < h; y++ {
		pr := prev.Pix[prev.PixOffset(pb.Min.X, pb.Min.Y+y):][:w]
		nr := next.Pix[next.PixOffset(nb.Min.X, nb.Min.Y+y):][:w]
		for x := 0; x < w; x++ {
			d := absDiff(pr[x], nr[x])
			if d == 0 {
				continue
			}
			if d > s.Peak {
				s.Peak = d
			}
			s.Box = s.Box.Union(image.Rect(x, y, x+1, y+1))
		}
	}
	return s, nil
}

// Changed reports whether next differs from prev: some pixel must differ and
// the peak difference must strictly exceed threshold.
func Changed(prev, next *image.Gray, threshold uint8) (bool, error) {
	s, err := Compare(prev, next)
	if err != nil {
		return false, err
	}
	if s.Box.Empty() {
		return false, nil
	}
	return s.Peak > threshold, nil
}

// PixelDetector applies Changed with a fixed threshold.
type PixelDetector struct {
	Threshold uint8
}

// NewPixelDetector creates a detector with the given noise threshold.
func NewPixelDetector(threshold uint8) *PixelDetector {
	return &PixelDetector{Threshold: threshold}
}

func (d *PixelDetector) Changed(prev, next *image.Gray) (bool, error) {
	return Changed(prev, next, d.Threshold)
}

// ToGray reduces img to 8-bit luma with its origin at (0, 0).
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok && b.Min == (image.Point{}) {
		return g
	}
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}
