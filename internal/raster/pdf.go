package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Document is a parsed PDF whose pages can be rendered one at a time.
// It is not safe for concurrent use.
type Document struct {
	opts  Options
	conf  *model.Configuration
	dir   string
	path  string
	dims  []types.Dim
	pages int
}

// Open validates data as a PDF and prepares it for rendering. Callers must
// Close the document to release its scratch directory.
func Open(data []byte, opts Options) (*Document, error) {
	conf := model.NewDefaultConfiguration()

	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableDocument, err)
	}
	dims, err := pdfCtx.PageDims()
	if err != nil {
		return nil, fmt.Errorf("%w: page dimensions: %w", ErrUnreadableDocument, err)
	}

	dir, err := os.MkdirTemp(opts.TempDir, "petalscan-raster-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	path := filepath.Join(dir, "document.pdf")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to stage document: %w", err)
	}

	return &Document{
		opts:  opts,
		conf:  conf,
		dir:   dir,
		path:  path,
		dims:  dims,
		pages: pdfCtx.PageCount,
	}, nil
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return d.pages }

// PageSize returns the pixel size a page renders to.
func (d *Document) PageSize(page int) (int, int, error) {
	if page < 1 || page > d.pages || page > len(d.dims) {
		return 0, 0, fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, page, d.pages)
	}
	dim := d.dims[page-1]
	zoom := d.opts.zoom()
	return int(math.Round(dim.Width * zoom)), int(math.Round(dim.Height * zoom)), nil
}

// Render returns page (1-based) as a bitmap sized to the page's natural
// dimensions times the zoom factor. The bitmap is the largest raster image
// placed on the page, which for scanned invoices is the scan itself.
func (d *Document) Render(ctx context.Context, page int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	width, height, err := d.PageSize(page)
	if err != nil {
		return nil, err
	}

	pageDir, err := os.MkdirTemp(d.dir, "page-"+strconv.Itoa(page)+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create page directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(pageDir) }()

	if err := api.ExtractImagesFile(d.path, pageDir, []string{strconv.Itoa(page)}, d.conf); err != nil {
		return nil, fmt.Errorf("%w: page %d: %w", ErrUnreadableDocument, page, err)
	}

	img, err := largestImage(pageDir)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", page, err)
	}
	return imaging.Resize(img, width, height, imaging.Lanczos), nil
}

// Close removes the scratch directory.
func (d *Document) Close() error {
	return os.RemoveAll(d.dir)
}

func largestImage(dir string) (image.Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var best image.Image
	bestArea := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		img, err := loadImageFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			// pdfcpu also writes formats we cannot decode (JPX, CCITT).
			continue
		}
		if area := img.Bounds().Dx() * img.Bounds().Dy(); area > bestArea {
			best, bestArea = img, area
		}
	}
	if best == nil {
		return nil, ErrNoPageImage
	}
	return best, nil
}
