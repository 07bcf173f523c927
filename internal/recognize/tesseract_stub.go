//go:build !ocr

package recognize

import (
	"context"
	"fmt"
	"image"
)

// Tesseract is unavailable in builds without the ocr tag.
type Tesseract struct{}

// NewTesseract reports ErrEngineUnavailable; build with -tags ocr to enable it.
func NewTesseract(string) (*Tesseract, error) {
	return nil, fmt.Errorf("%w: tesseract support not compiled in (build with -tags ocr)", ErrEngineUnavailable)
}

// Recognize implements Recognizer.
func (*Tesseract) Recognize(context.Context, image.Image) (Result, error) {
	return Result{}, ErrEngineUnavailable
}
