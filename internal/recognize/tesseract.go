//go:build ocr

package recognize

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract recognizes text with a local Tesseract installation.
type Tesseract struct {
	languages []string
	psm       gosseract.PageSegMode
}

// NewTesseract returns a Tesseract recognizer for a "+"-joined language hint
// such as "eng+ara".
func NewTesseract(language string) (*Tesseract, error) {
	if language == "" {
		language = DefaultLanguage
	}
	return &Tesseract{
		languages: strings.Split(language, "+"),
		psm:       gosseract.PSM_AUTO,
	}, nil
}

// Recognize implements Recognizer.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Result{}, fmt.Errorf("failed to encode image: %w", err)
	}

	client := gosseract.NewClient()
	defer func() { _ = client.Close() }()

	if err := client.SetLanguage(t.languages...); err != nil {
		return Result{}, fmt.Errorf("failed to set language %v: %w", t.languages, err)
	}
	if err := client.SetPageSegMode(t.psm); err != nil {
		return Result{}, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return Result{}, fmt.Errorf("failed to load image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return Result{}, fmt.Errorf("tesseract: %w", err)
	}

	var confidence float64
	if boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD); err == nil && len(boxes) > 0 {
		for _, b := range boxes {
			confidence += b.Confidence
		}
		confidence /= float64(len(boxes))
	}

	return Result{Text: text, Confidence: confidence}, nil
}
