package delta

import (
	"image"
	"sync"

	"github.com/corona10/goimagehash"

	apperrors "github.com/lingolens/platform/internal/errors"
)

// PerceptualDetector treats frames as changed when their perception hashes
// are more than MaxDistance bits apart. It tolerates rendering jitter that
// the pixel detector would report, at the cost of missing one-glyph edits.
type PerceptualDetector struct {
	MaxDistance int

	mu       sync.Mutex
	lastImg  *image.Gray
	lastHash *goimagehash.ImageHash
}

// NewPerceptualDetector creates a detector with the given Hamming distance tolerance.
func NewPerceptualDetector(maxDistance int) *PerceptualDetector {
	return &PerceptualDetector{MaxDistance: maxDistance}
}

func (d *PerceptualDetector) Changed(prev, next *image.Gray) (bool, error) {
	if prev == nil || next == nil {
		return false, apperrors.New(apperrors.InvalidArgument, "nil frame")
	}
	pb, nb := prev.Bounds(), next.Bounds()
	if pb.Dx() != nb.Dx() || pb.Dy() != nb.Dy() {
		return false, apperrors.Newf(apperrors.DimensionMismatch,
			"baseline %dx%d, candidate %dx%d", pb.Dx(), pb.Dy(), nb.Dx(), nb.Dy())
	}
	if pb.Empty() {
		return false, nil
	}

	prevHash, err := d.hashOf(prev)
	if err != nil {
		return false, err
	}
	nextHash, err := goimagehash.PerceptionHash(next)
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.Internal, "perception hash")
	}

	d.mu.Lock()
	d.lastImg, d.lastHash = next, nextHash
	d.mu.Unlock()

	dist, err := prevHash.Distance(nextHash)
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.Internal, "hash distance")
	}
	return dist > d.MaxDistance, nil
}

// hashOf reuses the hash computed for the previous candidate when the
// baseline is that same frame.
func (d *PerceptualDetector) hashOf(img *image.Gray) (*goimagehash.ImageHash, error) {
	d.mu.Lock()
	if d.lastImg == img && d.lastHash != nil {
		h := d.lastHash
		d.mu.Unlock()
		return h, nil
	}
	d.mu.Unlock()

	h, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "perception hash")
	}
	return h, nil
}
