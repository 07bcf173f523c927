//go:build ocr

package recognize

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

func TestTesseractRecognizesPrintedLine(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 400, 60))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	d := &font.Drawer{Dst: img, Src: &image.Uniform{C: color.Black}, Face: basicfont.Face7x13, Dot: fixed.P(10, 35)}
	d.DrawString("INVOICE 12345")

	r, err := NewTesseract("eng")
	require.NoError(t, err)

	res, err := r.Recognize(context.Background(), img)
	require.NoError(t, err)
	assert.True(t, strings.Contains(res.Text, "12345"), "got %q", res.Text)
	assert.Greater(t, res.Confidence, 0.0)
}
