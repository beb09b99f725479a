package ocr

import (
	"context"
	"image"
)

// Recognizer extracts text from a preprocessed frame. lang is a recognition
// code such as "eng" or "jpn+eng".
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image, lang string) (string, error)
}
