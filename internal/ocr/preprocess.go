// Package ocr turns captured frames into text.
package ocr

import (
	"bytes"
	"image"
	"image/draw"
	"image/png"

	"github.com/nfnt/resize"
)

// Preprocess defaults.
const (
	DefaultUpscale   = 2.0
	DefaultThreshold = 128
)

// Preprocess upscales a grayscale frame by factor with Lanczos resampling,
// then binarizes it: pixels below threshold become black, the rest white.
// Small UI text recognizes far better after both steps.
func Preprocess(img *image.Gray, factor float64, threshold uint8) *image.Gray {
	b := img.Bounds()
	if b.Empty() {
		return image.NewGray(image.Rectangle{})
	}
	if factor < 1 {
		factor = 1
	}

	var scaled image.Image = img
	if factor > 1 {
		w := uint(float64(b.Dx())*factor + 0.5)
		h := uint(float64(b.Dy())*factor + 0.5)
		scaled = resize.Resize(w, h, img, resize.Lanczos3)
	}

	out := toGray(scaled)
	Binarize(out, threshold)
	return out
}

// Binarize thresholds g in place.
func Binarize(g *image.Gray, threshold uint8) {
	for i, v := range g.Pix {
		if v < threshold {
			g.Pix[i] = 0
		} else {
			g.Pix[i] = 255
		}
	}
}

// EncodePNG serializes img for engines that take encoded bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// toGray returns an owned, origin-based copy so Binarize never touches the
// caller's frame.
func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}
