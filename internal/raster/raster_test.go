package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScan(width, height int) *image.NRGBA {
	img := imaging.New(width, height, color.White)
	for x := 10; x < width-10; x++ {
		img.Set(x, height/2, color.Black)
	}
	return img
}

// writeTestPDF builds a PDF with one scanned image per page.
func writeTestPDF(t *testing.T, pages int) []byte {
	t.Helper()
	dir := t.TempDir()

	files := make([]string, 0, pages)
	for i := 0; i < pages; i++ {
		path := filepath.Join(dir, fmt.Sprintf("scan-%d.png", i+1))
		require.NoError(t, imaging.Save(testScan(200+i*10, 280), path))
		files = append(files, path)
	}

	out := filepath.Join(dir, "invoice.pdf")
	require.NoError(t, api.ImportImagesFile(files, out, nil, nil))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	return data
}

func TestDetectKind(t *testing.T) {
	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, testScan(20, 20)))

	tests := []struct {
		name string
		data []byte
		want Kind
	}{
		{"pdf", []byte("%PDF-1.7\n..."), KindPDF},
		{"pdf after whitespace", []byte("\n %PDF-1.4"), KindPDF},
		{"png", pngBuf.Bytes(), KindImage},
		{"text", []byte("hello"), KindUnknown},
		{"empty", nil, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectKind(tt.data))
		})
	}
	assert.Equal(t, "pdf", KindPDF.String())
	assert.Equal(t, "unknown", KindUnknown.String())
}

func TestOpenRejectsGarbage(t *testing.T) {
	_, err := Open([]byte("%PDF-1.4 not really"), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreadableDocument)
}

func TestDocumentRender(t *testing.T) {
	data := writeTestPDF(t, 2)

	doc, err := Open(data, Options{TempDir: t.TempDir()})
	require.NoError(t, err)
	defer func() { _ = doc.Close() }()

	assert.Equal(t, 2, doc.PageCount())

	for page := 1; page <= doc.PageCount(); page++ {
		width, height, err := doc.PageSize(page)
		require.NoError(t, err)

		img, err := doc.Render(context.Background(), page)
		require.NoError(t, err)
		assert.Equal(t, width, img.Bounds().Dx())
		assert.Equal(t, height, img.Bounds().Dy())
	}
}

func TestDocumentZoomScalesSize(t *testing.T) {
	data := writeTestPDF(t, 1)

	single, err := Open(data, Options{Zoom: 1})
	require.NoError(t, err)
	defer func() { _ = single.Close() }()

	double, err := Open(data, Options{})
	require.NoError(t, err)
	defer func() { _ = double.Close() }()

	w1, h1, err := single.PageSize(1)
	require.NoError(t, err)
	w2, h2, err := double.PageSize(1)
	require.NoError(t, err)

	assert.InDelta(t, 2*w1, w2, 1)
	assert.InDelta(t, 2*h1, h2, 1)
}

func TestDocumentRenderErrors(t *testing.T) {
	doc, err := Open(writeTestPDF(t, 1), Options{})
	require.NoError(t, err)
	defer func() { _ = doc.Close() }()

	_, err = doc.Render(context.Background(), 0)
	assert.ErrorIs(t, err, ErrPageOutOfRange)
	_, err = doc.Render(context.Background(), 2)
	assert.ErrorIs(t, err, ErrPageOutOfRange)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = doc.Render(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCloseRemovesScratch(t *testing.T) {
	doc, err := Open(writeTestPDF(t, 1), Options{TempDir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, doc.Close())
	_, err = os.Stat(doc.dir)
	assert.True(t, os.IsNotExist(err))
}

func TestDecodeImage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testScan(30, 40)))

	img, format, err := DecodeImage(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, image.Rect(0, 0, 30, 40), img.Bounds())

	_, _, err = DecodeImage([]byte("nope"))
	assert.Error(t, err)
}

func TestEnhanceKeepsBounds(t *testing.T) {
	src := testScan(64, 48)
	out := Enhance(src)
	assert.Equal(t, src.Bounds().Size(), out.Bounds().Size())

	r, g, b, _ := out.At(0, 0).RGBA()
	assert.Equal(t, r, g)
	assert.Equal(t, g, b)
}
