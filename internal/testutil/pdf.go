package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	pageWidth   = 612
	pageHeight  = 792
	lineSpacing = 14
	glyphWidth  = 556
)

var pdfEscaper = strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)

// TextPDF builds a PDF whose pages carry the given lines as real text, one
// text object per line, top to bottom.
func TextPDF(pages [][]string) []byte {
	n := len(pages)
	fontObj := 3 + 2*n

	kids := make([]string, n)
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}

	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n),
	}
	for i, lines := range pages {
		var content strings.Builder
		for j, line := range lines {
			fmt.Fprintf(&content, "BT /F1 10 Tf 40 %d Td (%s) Tj ET\n", pageHeight-40-j*lineSpacing, pdfEscaper.Replace(line))
		}
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Contents %d 0 R /Resources << /Font << /F1 %d 0 R >> >> >>",
				pageWidth, pageHeight, 4+2*i, fontObj),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()),
		)
	}
	widths := strings.TrimSpace(strings.Repeat(fmt.Sprintf("%d ", glyphWidth), 95))
	objs = append(objs, fmt.Sprintf(
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding /FirstChar 32 /LastChar 126 /Widths [%s] >>", widths))

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, obj := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return b.Bytes()
}

// TextImage draws lines onto a white bitmap with a fixed-width face.
func TextImage(lines []string) *image.RGBA {
	face := basicfont.Face7x13
	lineHeight := face.Metrics().Height.Ceil() + 4

	width := 40
	for _, line := range lines {
		if w := font.MeasureString(face, line).Ceil() + 40; w > width {
			width = w
		}
	}
	img := image.NewRGBA(image.Rect(0, 0, width, 20+len(lines)*lineHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	drawer := &font.Drawer{Dst: img, Src: &image.Uniform{C: color.Black}, Face: face}
	for i, line := range lines {
		drawer.Dot = fixed.P(20, 10+(i+1)*lineHeight)
		drawer.DrawString(line)
	}
	return img
}

// ScanPDF builds an image-only PDF with one rendered page per entry, the way
// a scanner produces it.
func ScanPDF(t *testing.T, pages [][]string) []byte {
	t.Helper()
	dir := t.TempDir()

	files := make([]string, len(pages))
	for i, lines := range pages {
		files[i] = filepath.Join(dir, fmt.Sprintf("scan-%d.png", i+1))
		require.NoError(t, imaging.Save(TextImage(lines), files[i]))
	}

	out := filepath.Join(dir, "scan.pdf")
	require.NoError(t, api.ImportImagesFile(files, out, nil, nil))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	return data
}
