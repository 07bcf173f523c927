// Package raster turns PDF pages and uploaded images into bitmaps for text
// recognition.
package raster

import (
	"bytes"
	"errors"
	"image"
)

// DefaultZoom scales a page's natural point size into pixels.
const DefaultZoom = 2.0

var (
	// ErrUnreadableDocument is returned when the document cannot be parsed.
	ErrUnreadableDocument = errors.New("unreadable document")
	// ErrNoPageImage is returned when a page carries no raster image to render.
	ErrNoPageImage = errors.New("page has no raster image")
	// ErrPageOutOfRange is returned for page numbers outside 1..PageCount.
	ErrPageOutOfRange = errors.New("page out of range")
)

// Kind classifies raw input bytes.
type Kind int

const (
	KindUnknown Kind = iota
	KindPDF
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindImage:
		return "image"
	default:
		return "unknown"
	}
}

var pdfMagic = []byte("%PDF")

// DetectKind sniffs data for the PDF header or a decodable image header.
func DetectKind(data []byte) Kind {
	if bytes.HasPrefix(bytes.TrimLeft(data[:min(len(data), 1024)], "\x00\t\r\n "), pdfMagic) {
		return KindPDF
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		return KindImage
	}
	return KindUnknown
}

// Options configures rendering.
type Options struct {
	// Zoom multiplies the page's natural size. Zero means DefaultZoom.
	Zoom float64
	// TempDir is where page images are unpacked. Empty means os.TempDir.
	TempDir string
}

func (o Options) zoom() float64 {
	if o.Zoom <= 0 {
		return DefaultZoom
	}
	return o.Zoom
}
