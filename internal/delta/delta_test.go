package delta

import (
	"errors"
	"image"
	"image/color"
	"testing"

	apperrors "github.com/lingolens/platform/internal/errors"
)

func solid(w, h int, v uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

func TestChanged(t *testing.T) {
	tests := []struct {
		name      string
		prev      *image.Gray
		next      *image.Gray
		threshold uint8
		want      bool
	}{
		{"identical", solid(8, 8, 120), solid(8, 8, 120), DefaultThreshold, false},
		{"every pixel above threshold", solid(8, 8, 100), solid(8, 8, 106), DefaultThreshold, true},
		{"every pixel exactly threshold", solid(8, 8, 100), solid(8, 8, 105), DefaultThreshold, false},
		{"darker counts too", solid(8, 8, 200), solid(8, 8, 10), DefaultThreshold, true},
		{"zero threshold any difference", solid(4, 4, 0), solid(4, 4, 1), 0, true},
		{"empty frames", solid(0, 0, 0), solid(0, 0, 0), DefaultThreshold, false},
	}

	for _, tt := range tests {
		got, err := Changed(tt.prev, tt.next, tt.threshold)
		if err != nil {
			t.Errorf("%s: Changed() error = %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: Changed() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestChangedSinglePixel(t *testing.T) {
	prev := solid(10, 10, 50)
	next := solid(10, 10, 50)
	next.SetGray(7, 3, color.Gray{Y: 200})

	got, err := Changed(prev, next, DefaultThreshold)
	if err != nil || !got {
		t.Errorf("Changed() = (%v, %v), want (true, nil)", got, err)
	}

	s, _ := Compare(prev, next)
	if s.Peak != 150 {
		t.Errorf("Peak = %d, want 150", s.Peak)
	}
	if want := image.Rect(7, 3, 8, 4); s.Box != want {
		t.Errorf("Box = %v, want %v", s.Box, want)
	}
}

func TestChangedDimensionMismatch(t *testing.T) {
	_, err := Changed(solid(10, 10, 0), solid(10, 11, 0), DefaultThreshold)
	if !errors.Is(err, apperrors.ErrDimensionMismatch) {
		t.Errorf("Changed() error = %v, want DIMENSION_MISMATCH", err)
	}
}

func TestChangedOffsetBounds(t *testing.T) {
	// SubImage keeps parent coordinates; comparison must be origin-independent.
	big := solid(20, 20, 30)
	sub := big.SubImage(image.Rect(5, 5, 15, 15)).(*image.Gray)

	got, err := Changed(solid(10, 10, 30), sub, DefaultThreshold)
	if err != nil || got {
		t.Errorf("Changed() = (%v, %v), want (false, nil)", got, err)
	}
}

func TestPixelDetector(t *testing.T) {
	d := NewPixelDetector(10)
	if got, _ := d.Changed(solid(4, 4, 0), solid(4, 4, 10)); got {
		t.Error("difference equal to threshold should not count")
	}
	if got, _ := d.Changed(solid(4, 4, 0), solid(4, 4, 11)); !got {
		t.Error("difference above threshold should count")
	}
}

func TestToGray(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(100, 100, 102, 101))
	rgba.Set(100, 100, color.RGBA{R: 255, A: 255})
	rgba.Set(101, 100, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	g := ToGray(rgba)
	if g.Bounds() != image.Rect(0, 0, 2, 1) {
		t.Fatalf("Bounds() = %v, want origin-based 2x1", g.Bounds())
	}
	if got := g.GrayAt(0, 0).Y; got != 76 {
		t.Errorf("red luma = %d, want 76", got)
	}
	if got := g.GrayAt(1, 0).Y; got != 255 {
		t.Errorf("white luma = %d, want 255", got)
	}
}

func halves(vertical bool) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if (vertical && x < 32) || (!vertical && y < 32) {
				g.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return g
}

func TestPerceptualDetector(t *testing.T) {
	d := NewPerceptualDetector(0)

	a := halves(true)
	if got, err := d.Changed(a, halves(true)); err != nil || got {
		t.Errorf("same layout: Changed() = (%v, %v), want (false, nil)", got, err)
	}

	b := halves(false)
	if got, err := d.Changed(a, b); err != nil || !got {
		t.Errorf("rotated layout: Changed() = (%v, %v), want (true, nil)", got, err)
	}

	// b is now cached as the last candidate and becomes the baseline.
	if got, err := d.Changed(b, halves(false)); err != nil || got {
		t.Errorf("cached baseline: Changed() = (%v, %v), want (false, nil)", got, err)
	}
}

func TestPerceptualDetectorDimensionMismatch(t *testing.T) {
	d := NewPerceptualDetector(4)
	if _, err := d.Changed(solid(8, 8, 0), solid(9, 8, 0)); !apperrors.IsCode(err, apperrors.DimensionMismatch) {
		t.Errorf("Changed() error = %v, want DIMENSION_MISMATCH", err)
	}
}
